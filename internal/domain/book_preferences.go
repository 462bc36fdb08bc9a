package domain

import "time"

// BookPreferences is the player's saved transport and resume position for one audiobook.
type BookPreferences struct {
	BookID string `json:"book_id"`

	PlaybackRate float64 `json:"playback_rate"`
	Volume       float64 `json:"volume"`
	Loop         bool    `json:"loop"`

	ChunkIndex int     `json:"chunk_index"`
	Position   float64 `json:"position"`
	Page       int     `json:"page,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// BookPreferencesID generates the store key: "prefs:bookID".
func BookPreferencesID(bookID string) string {
	return "prefs:" + bookID
}

// NewBookPreferences creates preferences with default transport values.
func NewBookPreferences(bookID string) *BookPreferences {
	return &BookPreferences{
		BookID:       bookID,
		PlaybackRate: 1.0,
		Volume:       1.0,
		UpdatedAt:    time.Now(),
	}
}
