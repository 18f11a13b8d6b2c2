package mockup

import "tti-balder/internal/design"

const (
	// OverlayWidthRatio is the overlay width as a fraction of the base width.
	OverlayWidthRatio = 0.30
	// DragDamping scales pointer deltas (pixels) into anchor percentage points.
	DragDamping = 0.25
)

// Box is the rendered size of the base image in the shopper's viewport.
type Box struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Placement is the overlay position state of one mockup view.
type Placement struct {
	Placement design.Placement `json:"placement"`
	Anchor    design.Anchor    `json:"anchor"`
	Dragging  bool             `json:"dragging"`
	lastX     float64
	lastY     float64
}

func NewPlacement(p design.Placement) Placement {
	return Placement{Placement: p, Anchor: design.DefaultAnchor(p)}
}

// Reset returns to the placement's default anchor and ends any drag.
func (p *Placement) Reset(to design.Placement) {
	*p = NewPlacement(to)
}

// OverlayRect returns the overlay rectangle inside box for an overlay of the
// given aspect ratio (height / width).
func OverlayRect(box Box, anchor design.Anchor, aspect float64) (x0, y0, x1, y1 float64) {
	if aspect <= 0 {
		aspect = 1
	}
	w := box.Width * OverlayWidthRatio
	h := w * aspect
	cx := box.Width * anchor.Left / 100
	cy := box.Height * anchor.Top / 100
	return cx - w/2, cy - h/2, cx + w/2, cy + h/2
}

// Down starts a drag when the pointer is over the overlay and reports
// whether it did.
func (p *Placement) Down(box Box, aspect, x, y float64) bool {
	x0, y0, x1, y1 := OverlayRect(box, p.Anchor, aspect)
	if x < x0 || x > x1 || y < y0 || y > y1 {
		return false
	}
	p.Dragging = true
	p.lastX, p.lastY = x, y
	return true
}

// Move translates the anchor by the damped pointer delta while dragging.
func (p *Placement) Move(x, y float64) {
	if !p.Dragging {
		return
	}
	p.Anchor.Left = clampPercent(p.Anchor.Left + (x-p.lastX)*DragDamping)
	p.Anchor.Top = clampPercent(p.Anchor.Top + (y-p.lastY)*DragDamping)
	p.lastX, p.lastY = x, y
}

// End stops the drag on pointer-up or pointer-leave.
func (p *Placement) End() {
	p.Dragging = false
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
