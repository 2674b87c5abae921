package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	domainerrors "github.com/bookhaven/bookhaven-server/internal/errors"
	"github.com/bookhaven/bookhaven-server/internal/store"
)

// SavedService manages a user's shelf of saved books. Each save stores a
// denormalized projection of the book; the propagators keep projections in
// sync with canonical changes afterwards.
type SavedService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewSavedService creates a new saved-books service.
func NewSavedService(s *store.Store, logger *slog.Logger) *SavedService {
	return &SavedService{
		store:  s,
		logger: logger,
	}
}

// Save puts a book on the calling user's shelf. Saving an already saved book
// refreshes the projection from the current canonical document.
func (s *SavedService) Save(ctx context.Context, userID, bookID string) (*domain.SavedBook, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	saved := domain.NewSavedBook(userID, book)
	if err := s.store.SaveBook(ctx, saved); err != nil {
		return nil, fmt.Errorf("save book: %w", err)
	}
	return saved, nil
}

// Unsave takes a book off the calling user's shelf. Unsaving a book that is
// not on the shelf succeeds silently.
func (s *SavedService) Unsave(ctx context.Context, userID, bookID string) error {
	if err := s.store.UnsaveBook(ctx, userID, bookID); err != nil {
		return fmt.Errorf("unsave book: %w", err)
	}
	return nil
}

// Get returns one projection from the calling user's shelf.
func (s *SavedService) Get(ctx context.Context, userID, bookID string) (*domain.SavedBook, error) {
	saved, err := s.store.GetSavedBook(ctx, userID, bookID)
	if err != nil {
		if errors.Is(err, store.ErrSavedBookNotFound) {
			return nil, domainerrors.NotFound("book is not on your shelf")
		}
		return nil, fmt.Errorf("get saved book: %w", err)
	}
	return saved, nil
}

// List returns the calling user's shelf.
func (s *SavedService) List(ctx context.Context, userID string) ([]*domain.SavedBook, error) {
	shelf, err := s.store.ListSavedBooks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list saved books: %w", err)
	}
	return shelf, nil
}
