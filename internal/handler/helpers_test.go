package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeOptionalJSON(t *testing.T) {
	type body struct {
		Visibility string `json:"visibility"`
	}

	t.Run("empty body keeps defaults", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/posts/1/share", strings.NewReader(""))
		var b body
		if err := decodeOptionalJSON(r, &b); err != nil {
			t.Fatalf("empty body: %v", err)
		}
		if b.Visibility != "" {
			t.Errorf("visibility = %q, want zero value", b.Visibility)
		}
	})

	t.Run("valid body decodes", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/posts/1/share", strings.NewReader(`{"visibility":"unlisted"}`))
		var b body
		if err := decodeOptionalJSON(r, &b); err != nil {
			t.Fatalf("valid body: %v", err)
		}
		if b.Visibility != "unlisted" {
			t.Errorf("visibility = %q, want unlisted", b.Visibility)
		}
	})

	t.Run("malformed body is an error", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/posts/1/share", strings.NewReader(`{"visibility":`))
		var b body
		if err := decodeOptionalJSON(r, &b); err == nil {
			t.Fatal("malformed JSON must not pass as an empty body")
		}
	})
}
