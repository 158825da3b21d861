package timeline

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quill/internal/model"
)

// ErrInvalidCursor marks a pagination token that could not be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the pagination position in a timeline: the ordering key of the
// last row the client has seen. Pages resume strictly after it (exclusive),
// so rows are never repeated across pages.
type Cursor struct {
	TS time.Time
	ID int64
}

// Encode renders the cursor as an opaque token. Clients must treat it as a
// black box; the id:timestamp layout is an implementation detail.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d:%d", c.ID, c.TS.UnixMicro())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an opaque cursor token.
func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: bad encoding", ErrInvalidCursor)
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: bad format", ErrInvalidCursor)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad id", ErrInvalidCursor)
	}
	micros, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp", ErrInvalidCursor)
	}
	return &Cursor{TS: time.UnixMicro(micros).UTC(), ID: id}, nil
}

// Score is the cursor's position as a redis sorted-set score.
func (c Cursor) Score() float64 {
	return float64(c.TS.Unix())
}

// Admits reports whether the post's (published_at, id) ordering key sits
// strictly below the cursor, i.e. the post belongs on pages after it. Rows
// sharing the cursor's timestamp are admitted by id.
func (c Cursor) Admits(p *model.Post) bool {
	if p.PublishedAt.Before(c.TS) {
		return true
	}
	return p.PublishedAt.Equal(c.TS) && p.ID < c.ID
}
