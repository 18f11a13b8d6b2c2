package prompt

import (
	"regexp"
	"sort"
	"strings"
)

// Denylist holds the words that make image models draw clothing instead of
// standalone artwork. Multi-word entries match across spaces or hyphens. Any
// other word containing "shirt" is matched as well.
var Denylist = []string{
	"t-shirts", "t-shirt", "tshirts", "tshirt", "t shirts", "t shirt",
	"teeshirts", "teeshirt", "sweatshirts", "sweatshirt", "sweat shirt",
	"undershirts", "undershirt", "overshirt", "nightshirt",
	"shirtless", "shirts", "shirt",
	"tees", "tee",
	"hoodies", "hoodie",
	"garments", "garment",
	"clothing", "clothes", "apparel",
	"fabrics", "fabric", "textile",
	"mockups", "mockup", "mock-up",
	"printed on", "print on",
}

var (
	denyPattern   = compileDenylist(Denylist)
	spacePattern  = regexp.MustCompile(`\s+`)
	orphanPattern = regexp.MustCompile(`\s+([,.;:!?])`)
	repeatPattern = regexp.MustCompile(`([,;:])(\s*[,;:])+`)
	danglePattern = regexp.MustCompile(`[,;:]+\s*([.!?])`)
	emptyArticle  = regexp.MustCompile(`(?i)\b(a|an|the|for|of|on)\s+([,.;:])`)
)

func compileDenylist(words []string) *regexp.Regexp {
	sorted := append([]string(nil), words...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	alts := make([]string, 0, len(sorted))
	for _, w := range sorted {
		parts := strings.FieldsFunc(w, func(r rune) bool { return r == ' ' || r == '-' })
		for i := range parts {
			parts[i] = regexp.QuoteMeta(parts[i])
		}
		alts = append(alts, strings.Join(parts, `[\s-]*`))
	}
	alts = append(alts, `[a-z]*shirt[a-z]*`)
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

// Scrub removes denylisted garment vocabulary and tidies the punctuation left
// behind.
func Scrub(text string) string {
	out := denyPattern.ReplaceAllString(text, " ")
	out = spacePattern.ReplaceAllString(out, " ")
	out = emptyArticle.ReplaceAllString(out, "$2")
	out = orphanPattern.ReplaceAllString(out, "$1")
	out = repeatPattern.ReplaceAllString(out, "$1")
	out = danglePattern.ReplaceAllString(out, "$1")
	out = spacePattern.ReplaceAllString(out, " ")
	return strings.TrimLeft(strings.TrimSpace(out), ",;: ")
}

// ContainsDenied reports whether text still mentions garment vocabulary.
func ContainsDenied(text string) bool {
	return denyPattern.MatchString(text)
}
