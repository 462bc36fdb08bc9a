// Package main provides the interactive headless read-along player.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/listenupapp/readalong/internal/client"
	"github.com/listenupapp/readalong/internal/config"
	"github.com/listenupapp/readalong/internal/document"
	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/engine"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/logger"
	"github.com/listenupapp/readalong/internal/session"
	"github.com/listenupapp/readalong/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "readalong: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadPlayerConfig(os.Args[1:])
	if err != nil {
		return err
	}

	// Logs go to stderr so page output on stdout stays readable.
	log := logger.New(logger.Config{
		Writer:      os.Stderr,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		Environment: cfg.App.Environment,
	})

	api, err := client.New(client.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		Logger:            log.Component("client"),
	})
	if err != nil {
		return err
	}

	prefs, err := store.New(filepath.Join(cfg.Store.Path, "prefs"), log.Component("store"))
	if err != nil {
		return err
	}
	defer prefs.Close() //nolint:errcheck // best effort on exit

	mode := domain.ModeSingle
	if cfg.Player.Sequenced {
		mode = domain.ModeSequenced
	}
	sess, err := session.New(api, prefs, session.Options{
		Engine:      engine.Kind(cfg.Player.Engine),
		SampleHz:    cfg.Player.SampleHz,
		Mode:        mode,
		Rate:        cfg.Player.Rate,
		Volume:      cfg.Player.Volume,
		ClickToSeek: cfg.Player.ClickToSeek,
		Container: document.Viewport{
			Width:  float64(cfg.Player.ScreenWidth),
			Height: float64(cfg.Player.ScreenHeight),
		},
		Output:            os.Stdout,
		PollInterval:      cfg.Poll.Interval,
		PollMaxIterations: cfg.Poll.MaxIterations,
		PollBackoff:       cfg.Poll.Backoff,
	}, log.Logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.Initialize(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sess.Destroy(context.Background()); err != nil {
			log.Warn("session teardown failed", "error", err)
		}
	}()

	r := newREPL(sess, api, os.Stdout, cfg.Player.Source)
	r.watch()

	if last, err := prefs.LastBook(ctx); err == nil && last != "" {
		fmt.Fprintf(os.Stdout, "resuming %s\n", last)
		if err := sess.OpenBook(ctx, last); err != nil {
			fmt.Fprintf(os.Stdout, "error: %s\n", message(err))
		}
	} else if err != nil && !errors.Is(err, errors.ErrNotFound) {
		log.Warn("reading last book failed", "error", err)
	}

	return r.run(ctx, os.Stdin)
}
