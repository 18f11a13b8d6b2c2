package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"tti-balder/internal/design"
)

func testCatalog() Catalog {
	return Catalog{
		{ID: "111", Color: "Hvid", Size: "M"},
		{ID: "112", Color: "Hvid", Size: "L"},
		{ID: "211", Color: "Sort", Size: "M"},
		{ID: "999", Color: "Hvid", Size: "M"},
	}
}

func TestResolve(t *testing.T) {
	r := Resolver{Colors: DefaultColorTable()}
	cat := testCatalog()

	tests := []struct {
		color, size string
		want        string
		ok          bool
	}{
		{"White", "M", "111", true},
		{"White", "L", "112", true},
		{"Black", "M", "211", true},
		{"Black", "L", "", false},
		{"Red", "M", "", false},
		{"Hvid", "M", "111", true},
		{"White", "m", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.color+"/"+tt.size, func(t *testing.T) {
			got, ok := r.Resolve(cat, tt.color, tt.size)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Resolve(%s, %s) = %q, %v; want %q, %v", tt.color, tt.size, got, ok, tt.want, tt.ok)
			}
		})
	}

	if _, ok := r.Resolve(nil, "White", "M"); ok {
		t.Error("empty catalog must not resolve")
	}
}

func TestResolveEveryCatalogPair(t *testing.T) {
	cat := Catalog{{ID: "1", Color: "Blå", Size: "S"}, {ID: "2", Color: "Grøn", Size: "XL"}}
	r := Resolver{Colors: ColorTable{}}
	for _, v := range cat {
		if got, ok := r.Resolve(cat, v.Color, v.Size); !ok || got != v.ID {
			t.Errorf("Resolve(%s, %s) = %q, %v", v.Color, v.Size, got, ok)
		}
	}
}

func TestVariantUnmarshal(t *testing.T) {
	var cat Catalog
	data := `[{"id":111,"color":"Hvid","size":"M"},{"id":"212","option1":"Sort","option2":"L"}]`
	if err := json.Unmarshal([]byte(data), &cat); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cat[0] != (Variant{ID: "111", Color: "Hvid", Size: "M"}) {
		t.Errorf("first variant = %+v", cat[0])
	}
	if cat[1] != (Variant{ID: "212", Color: "Sort", Size: "L"}) {
		t.Errorf("second variant = %+v", cat[1])
	}
	if got := cat.Sizes(); strings.Join(got, ",") != "M,L" {
		t.Errorf("Sizes = %v", got)
	}
}

func TestVariantWithoutIDNeverResolves(t *testing.T) {
	var cat Catalog
	data := `[{"id":null,"color":"Hvid","size":"M"},{"color":"Hvid","size":"L"},{"id":"","color":"Sort","size":"M"}]`
	if err := json.Unmarshal([]byte(data), &cat); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, v := range cat {
		if v.ID != "" {
			t.Errorf("variant %s/%s id = %q, want empty", v.Color, v.Size, v.ID)
		}
	}
	for _, pair := range [][2]string{{"Hvid", "M"}, {"Hvid", "L"}, {"Sort", "M"}} {
		if id, ok := cat.Lookup(pair[0], pair[1]); ok {
			t.Errorf("Lookup(%s, %s) = %q, want no match", pair[0], pair[1], id)
		}
	}
}

func TestBuildRequestAndRedirect(t *testing.T) {
	d := design.Design{ID: "d1", ImageURL: "https://img.example/a.png?x=1&y=2", Prompt: "a dragon, mystical"}
	req := BuildRequest("111", d, design.PlacementLeftChest)

	if req.VariantID != "111" || req.Quantity != 1 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Properties[PropertyPlacement] != "left chest (logo)" {
		t.Errorf("placement label = %q", req.Properties[PropertyPlacement])
	}

	raw := RedirectURL("https://shop.example/", req)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if u.Host != "shop.example" || u.Path != "/cart/add" {
		t.Errorf("redirect target = %s", raw)
	}
	q := u.Query()
	if q.Get("id") != "111" || q.Get("quantity") != "1" {
		t.Errorf("query = %v", q)
	}
	if q.Get("properties[Design URL]") != d.ImageURL || q.Get("properties[Prompt]") != d.Prompt || q.Get("properties[Placement]") != "left chest (logo)" {
		t.Errorf("properties = %v", q)
	}
}

func TestDiscoverVariantID(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
		ok   bool
	}{
		{
			name: "hidden input",
			page: `<form action="/cart/add" method="post"><input type="hidden" name="id" value="4242"></form>`,
			want: "4242", ok: true,
		},
		{
			name: "selected option",
			page: `<form action="/cart/add"><select name="id"><option value="1">S</option><option value="2" selected>M</option></select></form>`,
			want: "2", ok: true,
		},
		{
			name: "first option when none selected",
			page: `<form action="/cart/add/"><select name="id"><option value="7">S</option><option value="8">M</option></select></form>`,
			want: "7", ok: true,
		},
		{
			name: "other forms are ignored",
			page: `<form action="/search"><input name="id" value="5"></form>`,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := DiscoverVariantID(strings.NewReader("<html><body>" + tt.page + "</body></html>"))
			if err != nil {
				t.Fatalf("DiscoverVariantID: %v", err)
			}
			if got != tt.want || ok != tt.ok {
				t.Errorf("got %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestProductVariantID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><form action="/cart/add"><input name="id" value="77"></form></body></html>`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{StoreOrigin: srv.URL, HTTPClient: srv.Client()})
	id, err := c.ProductVariantID(context.Background(), srv.URL+"/products/tee")
	if err != nil || id != "77" {
		t.Fatalf("ProductVariantID = %q, %v", id, err)
	}

	id, err = c.ProductVariantID(context.Background(), "/products/tee")
	if err != nil || id != "77" {
		t.Fatalf("relative ProductVariantID = %q, %v", id, err)
	}
}

func TestProductVariantIDWithoutForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>sold out</p></body></html>`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{StoreOrigin: srv.URL, HTTPClient: srv.Client()})
	if _, err := c.ProductVariantID(context.Background(), "/products/tee"); !errors.Is(err, ErrNoProductForm) {
		t.Fatalf("expected ErrNoProductForm, got %v", err)
	}
}
