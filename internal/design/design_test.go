package design

import "testing"

func TestDefaultAnchor(t *testing.T) {
	tests := []struct {
		placement Placement
		want      Anchor
	}{
		{PlacementCenter, Anchor{Top: 38, Left: 50}},
		{PlacementLeftChest, Anchor{Top: 32, Left: 33}},
		{PlacementBottom, Anchor{Top: 70, Left: 50}},
	}

	for _, tt := range tests {
		t.Run(string(tt.placement), func(t *testing.T) {
			if got := DefaultAnchor(tt.placement); got != tt.want {
				t.Errorf("DefaultAnchor(%s) = %+v, want %+v", tt.placement, got, tt.want)
			}
		})
	}

	if got := DefaultAnchor("shoulder"); got != (Anchor{Top: 38, Left: 50}) {
		t.Errorf("unknown placement should use center anchor, got %+v", got)
	}
}

func TestParsePlacement(t *testing.T) {
	for _, p := range Placements() {
		got, err := ParsePlacement(" " + string(p) + " ")
		if err != nil || got != p {
			t.Errorf("ParsePlacement(%q) = %q, %v", p, got, err)
		}
	}
	if _, err := ParsePlacement("back"); err != ErrUnknownPlacement {
		t.Errorf("expected ErrUnknownPlacement, got %v", err)
	}
}

func TestParseBlend(t *testing.T) {
	if got, err := ParseBlend("CIRCLE"); err != nil || got != BlendCircle {
		t.Errorf("ParseBlend(CIRCLE) = %q, %v", got, err)
	}
	if _, err := ParseBlend("sepia"); err != ErrUnknownBlend {
		t.Errorf("expected ErrUnknownBlend, got %v", err)
	}
}

func TestPlacementLabel(t *testing.T) {
	if got := PlacementLeftChest.Label(); got != "left chest (logo)" {
		t.Errorf("left-chest label = %q", got)
	}
	for _, p := range []Placement{PlacementCenter, PlacementBottom} {
		if got := p.Label(); got != "centered (large)" {
			t.Errorf("%s label = %q", p, got)
		}
	}
}
