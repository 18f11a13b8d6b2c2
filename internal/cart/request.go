package cart

import (
	"net/url"
	"sort"
	"strings"

	"tti-balder/internal/design"
)

const (
	PropertyDesignURL = "Design URL"
	PropertyPrompt    = "Prompt"
	PropertyPlacement = "Placement"
)

// Request is the cart line built at add time. It is never stored.
type Request struct {
	VariantID  string            `json:"id"`
	Quantity   int               `json:"quantity"`
	Properties map[string]string `json:"properties"`
}

func BuildRequest(variantID string, d design.Design, placement design.Placement) Request {
	return Request{
		VariantID: variantID,
		Quantity:  1,
		Properties: map[string]string{
			PropertyDesignURL: d.ImageURL,
			PropertyPrompt:    d.Prompt,
			PropertyPlacement: placement.Label(),
		},
	}
}

// RedirectURL is the full-page navigation target for the storefront's
// /cart/add endpoint.
func RedirectURL(storeOrigin string, req Request) string {
	q := url.Values{}
	q.Set("id", req.VariantID)
	q.Set("quantity", "1")

	keys := make([]string, 0, len(req.Properties))
	for k := range req.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set("properties["+k+"]", req.Properties[k])
	}

	return strings.TrimRight(storeOrigin, "/") + "/cart/add?" + q.Encode()
}
