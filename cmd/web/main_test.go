package main

import (
	"io/fs"
	"strings"
	"testing"
)

func readStatic(t *testing.T, name string) string {
	t.Helper()
	raw, err := fs.ReadFile(staticFS, "static/"+name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(raw)
}

func TestEmbedAddToCartHandlesFailure(t *testing.T) {
	src := readStatic(t, "embed.js")

	start := strings.Index(src, "function addToCart(")
	if start < 0 {
		t.Fatal("embed.js has no addToCart")
	}
	body := src[start:]
	if end := strings.Index(body, "window.addEventListener("); end > 0 {
		body = body[:end]
	}

	for _, want := range []string{`credentials: "same-origin"`, "!res.ok", ".catch(", "window.alert(", "/cart/add.js"} {
		if !strings.Contains(body, want) {
			t.Errorf("addToCart is missing %q", want)
		}
	}

	okCheck := strings.Index(body, "!res.ok")
	navigate := strings.Index(body, `window.location.href = "/cart"`)
	if navigate < 0 || navigate < okCheck {
		t.Error("addToCart must only navigate to /cart after checking the response")
	}

	missing := strings.Index(body, "if (!id)")
	post := strings.Index(body, "fetch(")
	if missing < 0 || missing > post || !strings.Contains(body[missing:post], "window.alert(") {
		t.Error("addToCart must alert when no variant id is known")
	}
}

func TestWidgetFollowsCartRedirect(t *testing.T) {
	src := readStatic(t, "widget.js")
	if !strings.Contains(src, "window.top.location.href = res.redirectUrl") {
		t.Error("widget.js must navigate the page to the cart redirect")
	}
}
