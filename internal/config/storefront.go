package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tti-balder/internal/cart"
	"tti-balder/internal/mockup"
)

// Storefront describes the shop the widget is embedded in.
type Storefront struct {
	HostOrigin     string         `yaml:"host_origin"`
	StoreOrigin    string         `yaml:"store_origin"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	ImageHosts     []string       `yaml:"image_hosts"`
	Colors         []Color        `yaml:"colors"`
	Catalog        []cart.Variant `yaml:"catalog"`
}

// Color is one garment color: its widget label, the host's label for it and
// the mockup base image.
type Color struct {
	Name      string `yaml:"name"`
	HostLabel string `yaml:"host_label"`
	Image     string `yaml:"image"`
	Fill      string `yaml:"fill"`
}

func DefaultStorefront() Storefront {
	return Storefront{
		Colors: []Color{
			{Name: "White", HostLabel: "Hvid", Fill: "#f4f4f2"},
			{Name: "Black", HostLabel: "Sort", Fill: "#1b1b1d"},
		},
	}
}

// LoadStorefront reads a YAML storefront file. Relative image paths are
// resolved against the file's directory.
func LoadStorefront(path string) (Storefront, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Storefront{}, fmt.Errorf("read storefront config: %w", err)
	}

	var sf Storefront
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		return Storefront{}, fmt.Errorf("parse storefront config %s: %w", path, err)
	}
	if len(sf.Colors) == 0 {
		sf.Colors = DefaultStorefront().Colors
	}

	dir := filepath.Dir(path)
	seen := make(map[string]struct{}, len(sf.Colors))
	for i, c := range sf.Colors {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return Storefront{}, fmt.Errorf("storefront config %s: color %d has no name", path, i)
		}
		if _, dup := seen[c.Name]; dup {
			return Storefront{}, fmt.Errorf("storefront config %s: duplicate color %q", path, c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Image != "" && !filepath.IsAbs(c.Image) {
			c.Image = filepath.Join(dir, c.Image)
		}
		sf.Colors[i] = c
	}
	return sf, nil
}

func (s Storefront) ColorNames() []string {
	out := make([]string, 0, len(s.Colors))
	for _, c := range s.Colors {
		out = append(out, c.Name)
	}
	return out
}

func (s Storefront) ColorTable() cart.ColorTable {
	t := make(cart.ColorTable, len(s.Colors))
	for _, c := range s.Colors {
		if c.HostLabel != "" {
			t[c.Name] = c.HostLabel
		}
	}
	return t
}

func (s Storefront) Bases() map[string]mockup.Base {
	out := make(map[string]mockup.Base, len(s.Colors))
	for _, c := range s.Colors {
		out[c.Name] = mockup.Base{Path: c.Image, Fill: c.Fill}
	}
	return out
}

// Origins lists every origin trusted for inbound bridge messages.
func (s Storefront) Origins() []string {
	out := append([]string(nil), s.AllowedOrigins...)
	if s.HostOrigin != "" {
		out = append(out, s.HostOrigin)
	}
	return out
}
