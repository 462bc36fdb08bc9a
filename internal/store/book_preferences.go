package store

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
)

// ErrBookPreferencesNotFound is returned when a book has no saved preferences.
var ErrBookPreferencesNotFound = errors.NotFound("book preferences not found")

// GetBookPreferences retrieves the saved preferences of a book.
func (s *Store) GetBookPreferences(ctx context.Context, bookID string) (*domain.BookPreferences, error) {
	key := bookPreferencesKey(bookID)

	var prefs domain.BookPreferences
	if err := s.get(ctx, key, &prefs); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, ErrBookPreferencesNotFound
		}
		return nil, err
	}
	return &prefs, nil
}

// LoadBookPreferences returns the saved preferences, or a copy of defaults
// when none exist. A nil defaults means domain.NewBookPreferences.
func (s *Store) LoadBookPreferences(ctx context.Context, bookID string, defaults *domain.BookPreferences) (*domain.BookPreferences, error) {
	prefs, err := s.GetBookPreferences(ctx, bookID)
	if errors.Is(err, errors.ErrNotFound) {
		if defaults == nil {
			return domain.NewBookPreferences(bookID), nil
		}
		d := *defaults
		d.BookID = bookID
		return &d, nil
	}
	return prefs, err
}

// UpsertBookPreferences creates or updates the preferences of a book.
func (s *Store) UpsertBookPreferences(ctx context.Context, prefs *domain.BookPreferences) error {
	if prefs.BookID == "" {
		return errors.Validation("book id is required")
	}
	if prefs.UpdatedAt.IsZero() {
		prefs.UpdatedAt = time.Now()
	}

	key := bookPreferencesKey(prefs.BookID)
	return s.set(ctx, key, prefs)
}

// DeleteBookPreferences removes the preferences of a book.
func (s *Store) DeleteBookPreferences(ctx context.Context, bookID string) error {
	key := bookPreferencesKey(bookID)
	return s.delete(ctx, key)
}

// RecentBooks returns all saved preferences, most recently updated first.
func (s *Store) RecentBooks(ctx context.Context) ([]*domain.BookPreferences, error) {
	all, err := scan[domain.BookPreferences](ctx, s, []byte(bookPreferencesPrefix))
	if err != nil {
		return nil, err
	}
	slices.SortFunc(all, func(a, b *domain.BookPreferences) int {
		return cmp.Compare(b.UpdatedAt.UnixNano(), a.UpdatedAt.UnixNano())
	})
	return all, nil
}

type lastBook struct {
	BookID string `json:"book_id"`
}

// SetLastBook remembers the book opened most recently.
func (s *Store) SetLastBook(ctx context.Context, bookID string) error {
	return s.set(ctx, []byte(lastBookKey), lastBook{BookID: bookID})
}

// LastBook returns the book opened most recently, or ErrNotFound.
func (s *Store) LastBook(ctx context.Context) (string, error) {
	var v lastBook
	if err := s.get(ctx, []byte(lastBookKey), &v); err != nil {
		return "", err
	}
	return v.BookID, nil
}
