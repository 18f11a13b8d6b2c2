package prompt

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const maxSubjectRunes = 300

var ErrEmptySubject = errors.New("subject is empty")

type Input struct {
	Subject string
	Style   string // "realistic" | "cartoon" | "minimalist" | "fantasy"
	Mood    string // "cool" | "dark" | "happy" | "mystical"
	Tags    []string
}

type NamedOption struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type stylePreset struct {
	Name string
	Add  []string
}

var styles = map[string]stylePreset{
	"realistic":  {Name: "Realistic", Add: []string{"detailed shading", "natural proportions"}},
	"cartoon":    {Name: "Cartoon", Add: []string{"bold outlines", "flat vibrant colors"}},
	"minimalist": {Name: "Minimalist", Add: []string{"few shapes", "limited palette", "generous negative space"}},
	"fantasy":    {Name: "Fantasy", Add: []string{"epic atmosphere", "ornate details"}},
}

var moods = map[string]string{
	"cool":     "Cool",
	"dark":     "Dark",
	"happy":    "Happy",
	"mystical": "Mystical",
}

var popularTags = []string{
	"retro",
	"cyberpunk",
	"vintage",
	"abstract",
	"skull",
	"animal",
	"space",
	"nature",
	"japanese",
	"comic",
	"minimalist",
	"psychedelic",
	"typography",
}

var strict = bluemonday.StrictPolicy()

func Styles() []NamedOption {
	return namedOptions([]string{"realistic", "cartoon", "minimalist", "fantasy"}, func(k string) string { return styles[k].Name })
}

func Moods() []NamedOption {
	return namedOptions([]string{"cool", "dark", "happy", "mystical"}, func(k string) string { return moods[k] })
}

func PopularTags() []string {
	return append([]string(nil), popularTags...)
}

func namedOptions(order []string, name func(string) string) []NamedOption {
	out := make([]NamedOption, 0, len(order))
	for _, key := range order {
		out = append(out, NamedOption{Key: key, Name: name(key)})
	}
	return out
}

// ParseTags splits comma separated input and appends the new tags to
// existing, skipping blanks and duplicates.
func ParseTags(input string, existing []string) []string {
	out := append([]string(nil), existing...)
	for _, raw := range strings.Split(input, ",") {
		tag := Sanitize(raw)
		if tag == "" || contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func RemoveTag(tags []string, tag string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == tag {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Sanitize strips markup and collapses whitespace in shopper supplied text.
func Sanitize(value string) string {
	value = html.UnescapeString(strict.Sanitize(value))
	return strings.Join(strings.Fields(value), " ")
}

// Build assembles the raw prompt sent to refinement. The wording describes a
// standalone illustration so the image model is not steered towards
// rendering a garment.
func Build(in Input) (string, error) {
	subject := truncateRunes(Sanitize(in.Subject), maxSubjectRunes)
	if subject == "" {
		return "", ErrEmptySubject
	}

	style, ok := styles[strings.ToLower(strings.TrimSpace(in.Style))]
	if !ok {
		style = styles["realistic"]
	}
	mood, ok := moods[strings.ToLower(strings.TrimSpace(in.Mood))]
	if !ok {
		mood = moods["cool"]
	}

	var tags []string
	for _, t := range in.Tags {
		tags = append(tags, Sanitize(t))
	}
	tags = uniq(tags)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("A %s, %s sticker-style illustration showing %s.", strings.ToLower(style.Name), strings.ToLower(mood), subject))
	if len(tags) > 0 {
		b.WriteString(" Tags: " + strings.Join(tags, ", ") + ".")
	}
	if len(style.Add) > 0 {
		b.WriteString(" Style notes: " + strings.Join(style.Add, ", ") + ".")
	}
	b.WriteString(" Isolated on a plain white background, centered composition, high resolution, no text.")

	return Scrub(b.String()), nil
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
