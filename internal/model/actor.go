package model

import (
	"errors"
	"fmt"
	"time"
)

// Actor represents a local or remote (federated) identity.
type Actor struct {
	ID          int64     `db:"id" json:"id"`
	URI         string    `db:"uri" json:"uri"`
	Username    string    `db:"username" json:"username"`
	Domain      *string   `db:"domain" json:"domain,omitempty"` // nil for local actors
	DisplayName *string   `db:"display_name" json:"display_name"`
	AvatarURL   *string   `db:"avatar_url" json:"avatar_url"`
	AccountID   *int64    `db:"account_id" json:"-"` // owning local account, nil for remote
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// Joined fields (not in actors table)
	Emojis []CustomEmoji `json:"emojis,omitempty"`
}

// Handle returns the username@host form. Local actors have no domain suffix.
func (a *Actor) Handle() string {
	if a.Domain == nil {
		return a.Username
	}
	return fmt.Sprintf("%s@%s", a.Username, *a.Domain)
}

// Local reports whether the actor belongs to an account on this instance.
func (a *Actor) Local() bool {
	return a.AccountID != nil
}

// CustomEmoji maps a shortcode to an image for an actor's instance.
type CustomEmoji struct {
	ID        string `db:"id" json:"id"`
	Shortcode string `db:"shortcode" json:"shortcode"`
	ImageURL  string `db:"image_url" json:"image_url"`
}

// ActorSummary is a lightweight representation for embedding in posts and lists.
type ActorSummary struct {
	ID          int64   `db:"id" json:"id"`
	Username    string  `db:"username" json:"username"`
	Domain      *string `db:"domain" json:"domain,omitempty"`
	DisplayName *string `db:"display_name" json:"display_name"`
	AvatarURL   *string `db:"avatar_url" json:"avatar_url"`
}

// Actor errors
var (
	ErrActorNotFound = errors.New("actor not found")
)
