package design

import (
	"errors"
	"strings"
	"time"
)

type Placement string

const (
	PlacementCenter    Placement = "center"
	PlacementLeftChest Placement = "left-chest"
	PlacementBottom    Placement = "bottom"
)

type BlendStyle string

const (
	BlendFade     BlendStyle = "fade"
	BlendGradient BlendStyle = "gradient"
	BlendCircle   BlendStyle = "circle"
	BlendSquare   BlendStyle = "square"
	BlendNone     BlendStyle = "none"
)

var (
	ErrUnknownPlacement = errors.New("unknown placement")
	ErrUnknownBlend     = errors.New("unknown blend style")
)

// Anchor is a position in percent of the base image box: Top from the top
// edge, Left from the left edge.
type Anchor struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

var defaultAnchors = map[Placement]Anchor{
	PlacementCenter:    {Top: 38, Left: 50},
	PlacementLeftChest: {Top: 32, Left: 33},
	PlacementBottom:    {Top: 70, Left: 50},
}

// Design is a generated artwork. It is never mutated after creation.
type Design struct {
	ID        string     `json:"id"`
	ImageURL  string     `json:"imageUrl"`
	Prompt    string     `json:"prompt"`
	Placement Placement  `json:"placement"`
	Blend     BlendStyle `json:"blend"`
	CreatedAt time.Time  `json:"createdAt"`
}

func Placements() []Placement {
	return []Placement{PlacementCenter, PlacementLeftChest, PlacementBottom}
}

func BlendStyles() []BlendStyle {
	return []BlendStyle{BlendFade, BlendGradient, BlendCircle, BlendSquare, BlendNone}
}

func ParsePlacement(value string) (Placement, error) {
	p := Placement(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := defaultAnchors[p]; !ok {
		return "", ErrUnknownPlacement
	}
	return p, nil
}

func ParseBlend(value string) (BlendStyle, error) {
	b := BlendStyle(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range BlendStyles() {
		if b == known {
			return b, nil
		}
	}
	return "", ErrUnknownBlend
}

// DefaultAnchor returns the anchor a placement starts from. Unknown values
// fall back to the center anchor.
func DefaultAnchor(p Placement) Anchor {
	if a, ok := defaultAnchors[p]; ok {
		return a
	}
	return defaultAnchors[PlacementCenter]
}

// Label is the human-readable placement sent to the cart.
func (p Placement) Label() string {
	if p == PlacementLeftChest {
		return "left chest (logo)"
	}
	return "centered (large)"
}
