package storage

import (
	"time"

	"github.com/google/uuid"
)

// HistoryItem records one successful image search.
type HistoryItem struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	ImageURL  string    `json:"image_url,omitempty"`
}

// NewHistoryItem builds an item with a fresh ID stamped now.
func NewHistoryItem(title, imageURL string) HistoryItem {
	return HistoryItem{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
		ImageURL:  imageURL,
	}
}

// Titles returns the titles of items in order.
func Titles(items []HistoryItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// User is the locally stored profile.
type User struct {
	ID              string  `json:"id" validate:"required,uuid"`
	Name            string  `json:"name" validate:"required,max=100"`
	Email           string  `json:"email" validate:"required,email"`
	ProfileImageURL *string `json:"profile_image_url,omitempty" validate:"omitempty,url"`
}
