package store

import "github.com/listenupapp/readalong/internal/domain"

// Key layout:
//
//	bookprefs:prefs:{book_id}   domain.BookPreferences
//	session:last_book           lastBook
const (
	bookPreferencesPrefix = "bookprefs:"
	lastBookKey           = "session:last_book"
)

func bookPreferencesKey(bookID string) []byte {
	return []byte(bookPreferencesPrefix + domain.BookPreferencesID(bookID))
}
