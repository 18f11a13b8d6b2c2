package cart

import (
	"encoding/json"
	"strings"
)

// Variant is one purchasable (color, size) combination supplied by the host.
type Variant struct {
	ID    string `json:"id" yaml:"id"`
	Color string `json:"color" yaml:"color"`
	Size  string `json:"size" yaml:"size"`
}

// UnmarshalJSON accepts the widget form {id, color, size} and the Shopify
// variant form {id, option1, option2}, with numeric or string ids.
func (v *Variant) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      json.RawMessage `json:"id"`
		Color   string          `json:"color"`
		Size    string          `json:"size"`
		Option1 string          `json:"option1"`
		Option2 string          `json:"option2"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	v.ID = ""
	if id := strings.TrimSpace(string(raw.ID)); id != "" && id != "null" {
		v.ID = strings.Trim(id, `"`)
	}
	v.Color = raw.Color
	if v.Color == "" {
		v.Color = raw.Option1
	}
	v.Size = raw.Size
	if v.Size == "" {
		v.Size = raw.Option2
	}
	return nil
}

// Catalog is the flat variant list most recently received from the host.
type Catalog []Variant

// Lookup returns the id of the first variant whose color and size labels
// match exactly.
func (c Catalog) Lookup(hostColor, size string) (string, bool) {
	for _, v := range c {
		if v.Color == hostColor && v.Size == size && v.ID != "" {
			return v.ID, true
		}
	}
	return "", false
}

// Sizes lists the distinct sizes in catalog order.
func (c Catalog) Sizes() []string {
	seen := make(map[string]struct{}, len(c))
	var out []string
	for _, v := range c {
		if _, ok := seen[v.Size]; ok || v.Size == "" {
			continue
		}
		seen[v.Size] = struct{}{}
		out = append(out, v.Size)
	}
	return out
}
