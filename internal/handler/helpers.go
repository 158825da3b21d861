package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 40
)

// decodeOptionalJSON decodes a request body into dst. An empty body leaves
// dst at its zero value; malformed JSON is an error.
func decodeOptionalJSON(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// idParam parses a numeric URL parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pageParams reads the cursor and limit query parameters.
func pageParams(r *http.Request) (cursor *string, limit int) {
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	limit = defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return cursor, limit
}

// langPrefs extracts the ordered language preferences from Accept-Language.
// Quality weights are ignored; header order is preference order.
func langPrefs(r *http.Request) []string {
	header := r.Header.Get("Accept-Language")
	if header == "" {
		return nil
	}
	var prefs []string
	for _, part := range strings.Split(header, ",") {
		lang := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if lang != "" && lang != "*" {
			prefs = append(prefs, lang)
		}
	}
	return prefs
}
