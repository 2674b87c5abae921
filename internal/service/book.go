package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	domainerrors "github.com/bookhaven/bookhaven-server/internal/errors"
	"github.com/bookhaven/bookhaven-server/internal/id"
	"github.com/bookhaven/bookhaven-server/internal/normalize"
	"github.com/bookhaven/bookhaven-server/internal/store"
)

// BookService handles the canonical book catalogue. Content fields belong to
// the owning author; rating summary fields belong to the aggregator and are
// never writable through this service.
type BookService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(s *store.Store, logger *slog.Logger) *BookService {
	return &BookService{
		store:  s,
		logger: logger,
	}
}

// PublishRequest contains the data for a new book.
type PublishRequest struct {
	Title       string    `json:"title" validate:"required,min=1,max=500"`
	CoverURL    string    `json:"cover_url,omitempty" validate:"omitempty,url"`
	Genre       string    `json:"genre,omitempty" validate:"omitempty,max=100"`
	Tags        []string  `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=50"`
	Description string    `json:"description,omitempty" validate:"omitempty,max=10000"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	PageCount   int       `json:"page_count,omitempty" validate:"omitempty,gt=0"`
}

// EditRequest contains the editable content fields. Nil pointers leave the
// field untouched so a client can patch a single field.
type EditRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	CoverURL    *string    `json:"cover_url,omitempty" validate:"omitempty,url"`
	Genre       *string    `json:"genre,omitempty" validate:"omitempty,max=100"`
	Tags        *[]string  `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=50"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=10000"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	PageCount   *int       `json:"page_count,omitempty" validate:"omitempty,gt=0"`
}

// Publish creates a new book owned by the calling author.
func (s *BookService) Publish(ctx context.Context, author *domain.User, req PublishRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	if !author.IsAuthor() {
		return nil, domainerrors.Forbidden("only authors can publish books")
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	book := &domain.Book{
		Syncable: domain.Syncable{
			ID: bookID,
		},
		Title:       req.Title,
		AuthorID:    author.ID,
		AuthorName:  author.DisplayName,
		CoverURL:    req.CoverURL,
		Genre:       req.Genre,
		Tags:        normalize.Tags(req.Tags),
		Description: req.Description,
		PublishedAt: req.PublishedAt,
		PageCount:   req.PageCount,
	}
	book.InitTimestamps()

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("book published", "book_id", bookID, "author_id", author.ID)
	}
	return book, nil
}

// Edit updates a book's content fields. Only the owning author may edit. The
// ownership check and the field patches run inside the store's transactional
// mutate, so an edit sees the live document and cannot revert rating summary
// fields written between a client's read and its save.
func (s *BookService) Edit(ctx context.Context, userID, bookID string, req EditRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.store.UpdateBook(ctx, bookID, func(b *domain.Book) error {
		if !b.OwnedBy(userID) {
			return domainerrors.Forbidden("only the book's author can edit it")
		}

		if req.Title != nil {
			b.Title = *req.Title
		}
		if req.CoverURL != nil {
			b.CoverURL = *req.CoverURL
		}
		if req.Genre != nil {
			b.Genre = *req.Genre
		}
		if req.Tags != nil {
			b.Tags = normalize.Tags(*req.Tags)
		}
		if req.Description != nil {
			b.Description = *req.Description
		}
		if req.PublishedAt != nil {
			b.PublishedAt = *req.PublishedAt
		}
		if req.PageCount != nil {
			b.PageCount = *req.PageCount
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		var domErr *domainerrors.Error
		if errors.As(err, &domErr) {
			return nil, domErr
		}
		return nil, fmt.Errorf("update book: %w", err)
	}
	return book, nil
}

// Delete removes a book. Only the owning author may delete.
func (s *BookService) Delete(ctx context.Context, userID, bookID string) error {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return domainerrors.NotFound("book not found")
		}
		return fmt.Errorf("get book: %w", err)
	}
	if !book.OwnedBy(userID) {
		return domainerrors.Forbidden("only the book's author can delete it")
	}

	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

// Get retrieves a single book.
func (s *BookService) Get(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// List returns a page of the catalogue.
func (s *BookService) List(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*domain.Book], error) {
	result, err := s.store.ListBooks(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return result, nil
}

// ListByAuthor returns all books owned by an author.
func (s *BookService) ListByAuthor(ctx context.Context, authorID string) ([]*domain.Book, error) {
	books, err := s.store.ListBooksByAuthor(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("list books by author: %w", err)
	}
	return books, nil
}
