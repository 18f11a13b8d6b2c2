package prompt

import "testing"

func TestScrub(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dragon shirt design", "dragon design"},
		{"sunset, garment, clothing.", "sunset."},
		{"A bold T-Shirt graphic", "A bold graphic"},
		{"tshirt, wolf howling", "wolf howling"},
		{"no garment words here: a lighthouse", "no words here: a lighthouse"},
		{"teeth of a tiger", "teeth of a tiger"},
		{"Clean vector art", "Clean vector art"},
		{"a dragon sweatshirt", "a dragon"},
		{"shirtless pirate", "pirate"},
		{"teeshirt with a wolf", "with a wolf"},
		{"undershirt, red rose", "red rose"},
		{"a Sweat-Shirt print of a fox", "a print of a fox"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Scrub(tt.in); got != tt.want {
				t.Errorf("Scrub(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestContainsDeniedCompounds(t *testing.T) {
	for _, in := range []string{"sweatshirt", "UNDERSHIRTS", "a shirtless hero", "overshirt", "teeshirt"} {
		if !ContainsDenied(in) {
			t.Errorf("ContainsDenied(%q) = false", in)
		}
	}
	if ContainsDenied("a shire horse") {
		t.Error("shire is not garment vocabulary")
	}
}

func TestScrubRemovesAllDenylisted(t *testing.T) {
	for _, word := range Denylist {
		out := Scrub("a " + word + " with a fox")
		if ContainsDenied(out) {
			t.Errorf("Scrub left %q in %q", word, out)
		}
	}
}
