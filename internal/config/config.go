package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	ImageProvider string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIChatModel  string
	OpenAIImageModel string
	OpenAIRPS        float64

	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiAPIVersion string

	TelegramToken string

	WebAddr       string
	PublicBaseURL string
	LogLevel      string
	Debug    bool

	PreferIPv4        bool
	HTTPTimeout       time.Duration
	GenerationTimeout time.Duration
	RequestTimeout    time.Duration
	SessionTTL        time.Duration
	MaxConcurrent     int

	CartMode             string
	ProductPageURL       string
	BridgeAllowBroadcast bool

	Storefront Storefront
}

func Load() (Config, error) {
	cfg := Config{
		ImageProvider:        strings.ToLower(getEnv("IMAGE_PROVIDER", ProviderOpenAI)),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIChatModel:      getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIImageModel:     getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		OpenAIRPS:            getEnvFloat("OPENAI_RPS", 2),
		GeminiBaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiAPIVersion:     getEnv("GEMINI_API_VERSION", "v1beta"),
		WebAddr:              getEnv("WEB_ADDR", ":8080"),
		PublicBaseURL:        strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Debug:                getEnvBool("DEBUG", false),
		PreferIPv4:           getEnvBool("PREFER_IPV4", true),
		HTTPTimeout:          time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		GenerationTimeout:    time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 120)) * time.Second,
		RequestTimeout:       time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
		SessionTTL:           time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		MaxConcurrent:        getEnvInt("MAX_CONCURRENT", 4),
		CartMode:             strings.ToLower(getEnv("CART_MODE", "redirect")),
		ProductPageURL:       getEnv("PRODUCT_PAGE_URL", ""),
		BridgeAllowBroadcast: getEnvBool("BRIDGE_ALLOW_BROADCAST", false),
	}

	cfg.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))

	switch cfg.ImageProvider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return Config{}, errors.New("OPENAI_API_KEY is required")
		}
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return Config{}, errors.New("GEMINI_API_KEY is required")
		}
	default:
		return Config{}, fmt.Errorf("IMAGE_PROVIDER %q is not supported", cfg.ImageProvider)
	}

	switch cfg.CartMode {
	case "redirect", "delegate":
	case "ajax":
		cfg.CartMode = "delegate"
	default:
		return Config{}, fmt.Errorf("CART_MODE %q is not supported", cfg.CartMode)
	}

	sf := DefaultStorefront()
	if path := getEnv("STOREFRONT_CONFIG", ""); path != "" {
		loaded, err := LoadStorefront(path)
		if err != nil {
			return Config{}, err
		}
		sf = loaded
	}
	if v := getEnv("STORE_ORIGIN", ""); v != "" {
		sf.StoreOrigin = v
	}
	if v := getEnv("HOST_ORIGIN", ""); v != "" {
		sf.HostOrigin = v
	}
	if v := getEnv("IMAGE_HOSTS", ""); v != "" {
		sf.ImageHosts = splitList(v)
	}
	if sf.StoreOrigin == "" {
		sf.StoreOrigin = sf.HostOrigin
	}
	if cfg.CartMode == "redirect" && sf.StoreOrigin == "" {
		return Config{}, errors.New("STORE_ORIGIN is required for the redirect cart mode")
	}
	cfg.Storefront = sf

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.OpenAIRPS <= 0 {
		cfg.OpenAIRPS = 2
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 120 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 60 * time.Minute
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
