package document

import (
	"github.com/listenupapp/readalong/internal/domain"
)

// Zoom limits and steps.
const (
	MinScale    = 0.5
	MaxScale    = 3.0
	ZoomInStep  = 1.25
	ZoomOutStep = 0.75
)

// Viewport is the size of the container pages are fitted into.
type Viewport struct {
	Width  float64
	Height float64
}

// View is the zoom state. A nil scale means fit to the container.
type View struct {
	scale   *float64
	fit     domain.FitMode
	applied float64
}

// NewView creates a view that fits pages to the container width.
func NewView() *View {
	return &View{fit: domain.FitWidth, applied: 1}
}

// Scale returns the explicit scale, or nil in fit mode.
func (v *View) Scale() *float64 {
	if v.scale == nil {
		return nil
	}
	s := *v.scale
	return &s
}

// FitMode returns the fit strategy used when no explicit scale is set.
func (v *View) FitMode() domain.FitMode {
	return v.fit
}

// ZoomIn multiplies the scale by ZoomInStep, leaving fit mode.
func (v *View) ZoomIn() float64 {
	return v.zoom(ZoomInStep)
}

// ZoomOut multiplies the scale by ZoomOutStep, leaving fit mode.
func (v *View) ZoomOut() float64 {
	return v.zoom(ZoomOutStep)
}

func (v *View) zoom(step float64) float64 {
	base := v.applied
	if v.scale != nil {
		base = *v.scale
	}
	s := clampScale(base * step)
	v.scale = &s
	return s
}

// SetScale sets an explicit scale, clamped to [MinScale, MaxScale].
func (v *View) SetScale(scale float64) float64 {
	s := clampScale(scale)
	v.scale = &s
	return s
}

// Fit returns to fit mode.
func (v *View) Fit(mode domain.FitMode) {
	v.scale = nil
	v.fit = mode
}

// Resolve computes the scale for a page of the given size in container c.
// Fit mode falls back to 1 when either size is unknown.
func (v *View) Resolve(pageWidth, pageHeight float64, c Viewport) float64 {
	s := 1.0
	switch {
	case v.scale != nil:
		s = *v.scale
	case v.fit == domain.FitHeight && pageHeight > 0 && c.Height > 0:
		s = c.Height / pageHeight
	case v.fit == domain.FitWidth && pageWidth > 0 && c.Width > 0:
		s = c.Width / pageWidth
	}
	v.applied = s
	return s
}

func clampScale(s float64) float64 {
	return max(MinScale, min(MaxScale, s))
}
