package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const host = "https://shop.example.com"

func TestDecode(t *testing.T) {
	v := NewValidator(host)

	t.Run("variants from host", func(t *testing.T) {
		msg, err := v.Decode(host+"/", []byte(`{"type":"shopify:variants","variants":[{"id":111,"color":"Hvid","size":"M"},{"id":"112","option1":"Sort","option2":"L"}]}`))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if msg.Type != TypeVariants || len(msg.Variants) != 2 {
			t.Fatalf("unexpected message: %+v", msg)
		}
		if msg.Variants[0].ID != "111" || msg.Variants[1].Color != "Sort" || msg.Variants[1].Size != "L" {
			t.Errorf("variants = %+v", msg.Variants)
		}
	})

	t.Run("design pushed by host", func(t *testing.T) {
		msg, err := v.Decode(host, []byte(`{"type":"design_generated","imageUrl":"https://cdn.example.com/a.png"}`))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if msg.ImageURL != "https://cdn.example.com/a.png" {
			t.Errorf("imageUrl = %q", msg.ImageURL)
		}
	})

	cases := []struct {
		name   string
		origin string
		raw    string
		want   error
	}{
		{"untrusted origin", "https://evil.example.com", `{"type":"shopify:variants","variants":[]}`, ErrUntrustedOrigin},
		{"empty origin", "", `{"type":"shopify:variants","variants":[]}`, ErrUntrustedOrigin},
		{"untrusted origin checked before payload", "https://evil.example.com", `not json`, ErrUntrustedOrigin},
		{"missing type", host, `{"variants":[]}`, ErrUnknownType},
		{"unknown type", host, `{"type":"something_else"}`, ErrUnknownType},
		{"outbound type sent inbound", host, `{"type":"balder:ready"}`, ErrUnknownType},
		{"not json", host, `hello`, ErrMalformed},
		{"variants missing", host, `{"type":"shopify:variants"}`, ErrMalformed},
		{"variants wrong shape", host, `{"type":"shopify:variants","variants":{"id":1}}`, ErrMalformed},
		{"design without url", host, `{"type":"design_generated"}`, ErrMalformed},
		{"design with script url", host, `{"type":"design_generated","imageUrl":"javascript:alert(1)"}`, ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Decode(tc.origin, []byte(tc.raw))
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestOutboundJSON(t *testing.T) {
	raw, err := json.Marshal(VariantChange("Black"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"type":"variant_change","option":"Color","value":"Black"}` {
		t.Errorf("variant_change = %s", raw)
	}

	raw, _ = json.Marshal(DesignGenerated())
	if string(raw) != `{"type":"design_generated"}` {
		t.Errorf("design_generated = %s", raw)
	}

	raw, _ = json.Marshal(AddToCart(CartPayload{VariantID: "111", ImageURL: "u", Placement: "center", Prompt: "p", Scale: 1}))
	if !strings.Contains(string(raw), `"payload":{"variantId":"111"`) {
		t.Errorf("add to cart = %s", raw)
	}
}

func TestTargetOrigin(t *testing.T) {
	if got, ok := NewHub(HubOptions{HostOrigin: host}).TargetOrigin(); !ok || got != host {
		t.Errorf("host origin target = %q %v", got, ok)
	}
	if _, ok := NewHub(HubOptions{}).TargetOrigin(); ok {
		t.Error("no target expected without host origin")
	}
	if got, ok := NewHub(HubOptions{AllowBroadcast: true}).TargetOrigin(); !ok || got != "*" {
		t.Errorf("broadcast target = %q %v", got, ok)
	}
}

func TestPublishWithoutConnection(t *testing.T) {
	h := NewHub(HubOptions{HostOrigin: host})
	if err := h.Publish("nobody", DesignGenerated()); err != nil {
		t.Errorf("Publish: %v", err)
	}
}

func TestHubRelay(t *testing.T) {
	hub := NewHub(HubOptions{HostOrigin: host})
	received := make(chan Message, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, "s1", func(_ context.Context, sessionID string, msg Message) {
			if sessionID == "s1" {
				received <- msg
			}
		})
	}))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ready Outbound
	if err := ws.ReadJSON(&ready); err != nil {
		t.Fatalf("read ready: %v", err)
	}
	if ready.Message.Type != TypeReady || ready.TargetOrigin != host {
		t.Fatalf("ready frame = %+v", ready)
	}

	frames := []string{
		`{"origin":"https://evil.example.com","data":{"type":"shopify:variants","variants":[{"id":1,"color":"Hvid","size":"S"}]}}`,
		`{"origin":"https://shop.example.com","data":{"type":"bogus"}}`,
		`{"origin":"https://shop.example.com","data":{"type":"shopify:variants","variants":[{"id":2,"color":"Sort","size":"M"}]}}`,
	}
	for _, f := range frames {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	select {
	case msg := <-received:
		if msg.Type != TypeVariants || len(msg.Variants) != 1 || msg.Variants[0].ID != "2" {
			t.Errorf("relayed message = %+v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("trusted message was not relayed")
	}
	select {
	case msg := <-received:
		t.Errorf("unexpected extra message %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}

	if !hub.Connected("s1") {
		t.Fatal("session should be connected")
	}
	if err := hub.Publish("s1", VariantChange("White")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	var out Outbound
	if err := ws.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Message.Type != TypeVariantChange || out.Message.Value != "White" || out.TargetOrigin != host {
		t.Errorf("outbound frame = %+v", out)
	}
}
