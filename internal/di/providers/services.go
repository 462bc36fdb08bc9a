package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/readalong/internal/config"
	"github.com/listenupapp/readalong/internal/logger"
	"github.com/listenupapp/readalong/internal/pdfservice"
	"github.com/listenupapp/readalong/internal/ratelimit"
)

// PDFServiceHandle wraps the processing service client.
type PDFServiceHandle struct {
	*pdfservice.Service
}

// ProvidePDFService provides the client for the PDF processing service.
// An unreachable service is not an error; its endpoints report it per request.
func ProvidePDFService(i do.Injector) (*PDFServiceHandle, error) {
	cfg := do.MustInvoke[*config.ServerConfig](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc, err := pdfservice.New(pdfservice.Config{
		URL:     cfg.PDFService.URL,
		Timeout: cfg.PDFService.Timeout,
		Logger:  log.Component("pdfservice"),
	})
	if err != nil {
		return nil, err
	}

	log.Info("PDF service configured", "url", svc.URL())
	return &PDFServiceHandle{Service: svc}, nil
}

// RateLimiterHandle wraps the processing rate limiter so its sweeper stops on shutdown.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideProcessLimiter provides the per-client limiter for processing requests.
func ProvideProcessLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.ServerConfig](i)
	return &RateLimiterHandle{
		KeyedRateLimiter: ratelimit.PerMinute(cfg.RateLimit.ProcessPerMinute, cfg.RateLimit.ProcessBurst),
	}, nil
}
