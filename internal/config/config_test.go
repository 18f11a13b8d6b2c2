package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"IMAGE_PROVIDER", "OPENAI_API_KEY", "GEMINI_API_KEY", "CART_MODE", "STORE_ORIGIN", "HOST_ORIGIN",
		"STOREFRONT_CONFIG", "IMAGE_HOSTS", "PUBLIC_BASE_URL", "OPENAI_RPS", "GENERATION_TIMEOUT_SECONDS", "MAX_CONCURRENT", "SESSION_TTL_MINUTES",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("STORE_ORIGIN", "https://shop.example.com")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ImageProvider != ProviderOpenAI || cfg.CartMode != "redirect" {
		t.Errorf("provider/mode = %q/%q", cfg.ImageProvider, cfg.CartMode)
	}
	if cfg.GenerationTimeout != 120*time.Second || cfg.OpenAIRPS != 2 || cfg.MaxConcurrent != 4 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Storefront.StoreOrigin != "https://shop.example.com" {
		t.Errorf("store origin = %q", cfg.Storefront.StoreOrigin)
	}
	if got := cfg.Storefront.ColorTable()["White"]; got != "Hvid" {
		t.Errorf("White maps to %q", got)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing openai key", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("OPENAI_API_KEY", "")
		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("gemini provider", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("IMAGE_PROVIDER", "gemini")
		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
			t.Errorf("err = %v", err)
		}
		t.Setenv("GEMINI_API_KEY", "g-key")
		if _, err := Load(); err != nil {
			t.Errorf("Load: %v", err)
		}
	})

	t.Run("unknown cart mode", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CART_MODE", "mail")
		if _, err := Load(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("store origin required in redirect mode", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("STORE_ORIGIN", "")
		if _, err := Load(); err == nil {
			t.Error("expected error")
		}
		t.Setenv("CART_MODE", "delegate")
		if _, err := Load(); err != nil {
			t.Errorf("delegate mode: %v", err)
		}
	})

	t.Run("ajax is the delegate mode", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("STORE_ORIGIN", "")
		t.Setenv("CART_MODE", "ajax")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.CartMode != "delegate" {
			t.Errorf("cart mode = %q", cfg.CartMode)
		}
	})

	t.Run("bad numbers fall back", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("MAX_CONCURRENT", "lots")
		t.Setenv("SESSION_TTL_MINUTES", "-5")
		cfg, err := Load()
		if err != nil {
			t.Fatal(err)
		}
		if cfg.MaxConcurrent != 4 || cfg.SessionTTL != 60*time.Minute {
			t.Errorf("max=%d ttl=%s", cfg.MaxConcurrent, cfg.SessionTTL)
		}
	})
}

const storefrontYAML = `
host_origin: https://shop.example.com
allowed_origins:
  - https://preview.shop.example.com
image_hosts:
  - "*.shopifycdn.com"
colors:
  - name: White
    host_label: Hvid
    image: bases/white.png
  - name: Navy
    fill: "#1f2a44"
catalog:
  - id: "111"
    color: Hvid
    size: M
  - id: "112"
    color: Navy
    size: L
`

func TestLoadPublicURLAndImageHosts(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PUBLIC_BASE_URL", "https://widget.example.com/")
	t.Setenv("IMAGE_HOSTS", " cdn.example.com, ,*.shopifycdn.com ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PublicBaseURL != "https://widget.example.com" {
		t.Errorf("public base url = %q", cfg.PublicBaseURL)
	}
	hosts := cfg.Storefront.ImageHosts
	if len(hosts) != 2 || hosts[0] != "cdn.example.com" || hosts[1] != "*.shopifycdn.com" {
		t.Errorf("image hosts = %q", hosts)
	}
}

func TestLoadStorefront(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")
	if err := os.WriteFile(path, []byte(storefrontYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	sf, err := LoadStorefront(path)
	if err != nil {
		t.Fatalf("LoadStorefront: %v", err)
	}
	if len(sf.Catalog) != 2 || sf.Catalog[0].ID != "111" || sf.Catalog[1].Color != "Navy" {
		t.Errorf("catalog = %+v", sf.Catalog)
	}
	if names := sf.ColorNames(); len(names) != 2 || names[1] != "Navy" {
		t.Errorf("colors = %v", names)
	}
	table := sf.ColorTable()
	if table.HostLabel("White") != "Hvid" || table.HostLabel("Navy") != "Navy" {
		t.Errorf("color table = %v", table)
	}
	bases := sf.Bases()
	if bases["White"].Path != filepath.Join(dir, "bases/white.png") || bases["Navy"].Fill != "#1f2a44" {
		t.Errorf("bases = %+v", bases)
	}
	if origins := sf.Origins(); len(origins) != 2 {
		t.Errorf("origins = %v", origins)
	}
	if len(sf.ImageHosts) != 1 || sf.ImageHosts[0] != "*.shopifycdn.com" {
		t.Errorf("image hosts = %v", sf.ImageHosts)
	}

	setBaseEnv(t)
	t.Setenv("STORE_ORIGIN", "")
	t.Setenv("STOREFRONT_CONFIG", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storefront.StoreOrigin != "https://shop.example.com" {
		t.Errorf("store origin should default to host origin, got %q", cfg.Storefront.StoreOrigin)
	}
}

func TestLoadStorefrontErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadStorefront(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	dup := filepath.Join(dir, "dup.yaml")
	os.WriteFile(dup, []byte("colors:\n  - name: White\n  - name: White\n"), 0o644)
	if _, err := LoadStorefront(dup); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("err = %v", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("colors: [\n"), 0o644)
	if _, err := LoadStorefront(bad); err == nil {
		t.Error("expected parse error")
	}
}
