package widget

import (
	"tti-balder/internal/design"
	"tti-balder/internal/prompt"
)

type PlacementOption struct {
	Value  design.Placement `json:"value"`
	Label  string           `json:"label"`
	Anchor design.Anchor    `json:"anchor"`
}

// Choices lists everything the design form offers.
type Choices struct {
	Styles     []prompt.NamedOption `json:"styles"`
	Moods      []prompt.NamedOption `json:"moods"`
	Tags       []string             `json:"tags"`
	Placements []PlacementOption    `json:"placements"`
	Blends     []design.BlendStyle  `json:"blends"`
	Colors     []string             `json:"colors"`
	Sizes      []string             `json:"sizes"`
	CartMode   CartMode             `json:"cartMode"`
}

func (s *Service) Choices() Choices {
	placements := make([]PlacementOption, 0, len(design.Placements()))
	for _, p := range design.Placements() {
		placements = append(placements, PlacementOption{Value: p, Label: p.Label(), Anchor: design.DefaultAnchor(p)})
	}

	return Choices{
		Styles:     prompt.Styles(),
		Moods:      prompt.Moods(),
		Tags:       prompt.PopularTags(),
		Placements: placements,
		Blends:     design.BlendStyles(),
		Colors:     append([]string(nil), s.colors...),
		Sizes:      append([]string(nil), defaultSizes...),
		CartMode:   s.cartMode,
	}
}
