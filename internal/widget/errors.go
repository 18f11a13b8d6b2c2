package widget

import (
	"errors"
	"fmt"

	"tti-balder/internal/design"
	"tti-balder/internal/generation"
	"tti-balder/internal/session"
	"tti-balder/internal/upstream"
)

var (
	ErrSubjectRequired = errors.New("subject is required")
	ErrSizeRequired    = errors.New("size is required")
	ErrNoDesign        = errors.New("no active design")
	ErrDesignNotFound  = errors.New("design not found")
	ErrVariantNotFound = errors.New("no variant for color and size")
	ErrUnknownColor    = errors.New("unknown color")
	ErrUnknownSize     = errors.New("unknown size")
	ErrUnknownDrag     = errors.New("unknown drag event")
	ErrDesignNotHosted = errors.New("design image has no hosted url")
	ErrSessionNotFound = session.ErrNotFound
)

// Code is a stable machine-readable name for err.
func Code(err error) string {
	var upErr *upstream.Error

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSubjectRequired):
		return "subject_required"
	case errors.Is(err, ErrSizeRequired):
		return "size_required"
	case errors.Is(err, ErrNoDesign):
		return "no_design"
	case errors.Is(err, ErrDesignNotFound):
		return "design_not_found"
	case errors.Is(err, ErrVariantNotFound):
		return "variant_not_found"
	case errors.Is(err, ErrDesignNotHosted):
		return "design_not_hosted"
	case errors.Is(err, ErrUnknownColor), errors.Is(err, ErrUnknownSize), errors.Is(err, ErrUnknownDrag),
		errors.Is(err, design.ErrUnknownPlacement), errors.Is(err, design.ErrUnknownBlend):
		return "invalid_option"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, generation.ErrInFlight):
		return "in_flight"
	case upstream.IsContentPolicy(err):
		return "content_policy"
	case errors.Is(err, upstream.ErrNetwork):
		return "network"
	case errors.As(err, &upErr):
		return "upstream_rejected"
	default:
		return "internal"
	}
}

// UserMessage is the blocking message shown to the shopper for err.
func UserMessage(err error) string {
	var upErr *upstream.Error

	switch Code(err) {
	case "":
		return ""
	case "subject_required":
		return "Describe what your design should show before generating."
	case "size_required":
		return "Please select a size first."
	case "no_design":
		return "Generate or select a design first."
	case "design_not_found":
		return "That design is no longer in your gallery."
	case "variant_not_found":
		return "This color and size combination is not available. Please choose another."
	case "design_not_hosted":
		return "This design cannot be sent to the store. Please generate it again."
	case "invalid_option":
		return "That option is not available."
	case "session_not_found":
		return "Your session has expired. Please reload the page."
	case "in_flight":
		return "A design is already being generated. Please wait."
	case "content_policy":
		return "The image service rejected this description under its content policy. Please try a different description."
	case "network":
		return "Could not reach the service. Check your connection and try again."
	case "upstream_rejected":
		errors.As(err, &upErr)
		return fmt.Sprintf("Image generation failed due to a technical error (status %d). Please try again.", upErr.Status)
	default:
		return "Something went wrong. Please try again."
	}
}
