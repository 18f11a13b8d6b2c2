package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"tti-balder/internal/cart"
)

const (
	TypeReady           = "balder:ready"
	TypeVariants        = "shopify:variants"
	TypeVariantChange   = "variant_change"
	TypeDesignGenerated = "design_generated"
	TypeAddToCart       = "TTI_BALDER_ADD_TO_CART"
)

var (
	ErrUntrustedOrigin = errors.New("message origin is not allowed")
	ErrUnknownType     = errors.New("unknown message type")
	ErrMalformed       = errors.New("malformed message")
)

// Message is the envelope exchanged with the host page. Only the fields of
// the given Type are set.
type Message struct {
	Type     string         `json:"type"`
	Variants []cart.Variant `json:"variants,omitempty"`
	Option   string         `json:"option,omitempty"`
	Value    string         `json:"value,omitempty"`
	ImageURL string         `json:"imageUrl,omitempty"`
	Payload  *CartPayload   `json:"payload,omitempty"`
}

// CartPayload asks the host to add a line item itself.
type CartPayload struct {
	VariantID string  `json:"variantId"`
	ImageURL  string  `json:"imageUrl"`
	Placement string  `json:"placement"`
	Prompt    string  `json:"prompt"`
	Scale     float64 `json:"scale"`
}

func Ready() Message {
	return Message{Type: TypeReady}
}

func VariantChange(color string) Message {
	return Message{Type: TypeVariantChange, Option: "Color", Value: color}
}

func DesignGenerated() Message {
	return Message{Type: TypeDesignGenerated}
}

func AddToCart(p CartPayload) Message {
	return Message{Type: TypeAddToCart, Payload: &p}
}

// Validator accepts inbound messages from an allow-list of host origins.
type Validator struct {
	origins map[string]struct{}
}

func NewValidator(origins ...string) Validator {
	v := Validator{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o = normalizeOrigin(o); o != "" {
			v.origins[o] = struct{}{}
		}
	}
	return v
}

func (v Validator) Trusted(origin string) bool {
	origin = normalizeOrigin(origin)
	if origin == "" {
		return false
	}
	_, ok := v.origins[origin]
	return ok
}

// Decode checks origin before looking at the payload. Only host→widget
// message types are accepted.
func (v Validator) Decode(origin string, raw []byte) (Message, error) {
	if !v.Trusted(origin) {
		return Message{}, ErrUntrustedOrigin
	}

	var env struct {
		Type     string          `json:"type"`
		Variants json.RawMessage `json:"variants"`
		ImageURL string          `json:"imageUrl"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeVariants:
		if len(env.Variants) == 0 || string(env.Variants) == "null" {
			return Message{}, fmt.Errorf("%w: variants missing", ErrMalformed)
		}
		var variants []cart.Variant
		if err := json.Unmarshal(env.Variants, &variants); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Message{Type: TypeVariants, Variants: variants}, nil

	case TypeDesignGenerated:
		imageURL := strings.TrimSpace(env.ImageURL)
		if !validImageURL(imageURL) {
			return Message{}, fmt.Errorf("%w: imageUrl", ErrMalformed)
		}
		return Message{Type: TypeDesignGenerated, ImageURL: imageURL}, nil

	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func validImageURL(value string) bool {
	if strings.HasPrefix(value, "data:image/") {
		return true
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "https" || u.Scheme == "http"
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}
