package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookhaven/bookhaven-server/internal/domain"
)

func (s *Server) registerShelfRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "saveBook",
		Method:      http.MethodPut,
		Path:        "/api/v1/me/shelf/{bookID}",
		Summary:     "Save a book",
		Description: "Adds a book to the authenticated user's shelf. Saving again refreshes the denormalized snapshot.",
		Tags:        []string{"Shelf"},
	}, s.handleSaveBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "unsaveBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/me/shelf/{bookID}",
		Summary:     "Remove a book from the shelf",
		Description: "Removes a saved book. Removing a book that is not on the shelf succeeds silently.",
		Tags:        []string{"Shelf"},
	}, s.handleUnsaveBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSavedBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/shelf/{bookID}",
		Summary:     "Get a saved book",
		Description: "Returns a single saved book from the authenticated user's shelf",
		Tags:        []string{"Shelf"},
	}, s.handleGetSavedBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "listShelf",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/shelf",
		Summary:     "List the shelf",
		Description: "Returns the authenticated user's saved books",
		Tags:        []string{"Shelf"},
	}, s.handleListShelf)
}

// === DTOs ===

// ShelfBookInput identifies a saved book by path parameter.
type ShelfBookInput struct {
	BookID string `path:"bookID" doc:"Book ID"`
}

// SavedBookResponse contains a denormalized saved book.
type SavedBookResponse struct {
	BookID     string    `json:"book_id" doc:"Book ID"`
	Title      string    `json:"title" doc:"Book title snapshot"`
	AuthorName string    `json:"author_name" doc:"Author display name snapshot"`
	CoverURL   string    `json:"cover_url,omitempty" doc:"Cover image URL snapshot"`
	Genre      string    `json:"genre,omitempty" doc:"Genre snapshot"`
	Tags       []string  `json:"tags,omitempty" doc:"Tag snapshot"`
	AvgRating  float64   `json:"avg_rating" doc:"Average rating snapshot"`
	SavedAt    time.Time `json:"saved_at" doc:"When the book was saved"`
}

// SavedBookOutput wraps a saved book for Huma.
type SavedBookOutput struct {
	Body SavedBookResponse
}

// ShelfResponse lists the user's saved books.
type ShelfResponse struct {
	Items []SavedBookResponse `json:"items" doc:"Saved books"`
}

// ShelfOutput wraps the shelf listing for Huma.
type ShelfOutput struct {
	Body ShelfResponse
}

// === Handlers ===

func (s *Server) handleSaveBook(ctx context.Context, input *ShelfBookInput) (*SavedBookOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	saved, err := s.services.Saved.Save(ctx, userID, input.BookID)
	if err != nil {
		return nil, err
	}

	return &SavedBookOutput{Body: mapSavedBookResponse(saved)}, nil
}

func (s *Server) handleUnsaveBook(ctx context.Context, input *ShelfBookInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Saved.Unsave(ctx, userID, input.BookID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Book removed from shelf"}}, nil
}

func (s *Server) handleGetSavedBook(ctx context.Context, input *ShelfBookInput) (*SavedBookOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	saved, err := s.services.Saved.Get(ctx, userID, input.BookID)
	if err != nil {
		return nil, err
	}

	return &SavedBookOutput{Body: mapSavedBookResponse(saved)}, nil
}

func (s *Server) handleListShelf(ctx context.Context, _ *struct{}) (*ShelfOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	saved, err := s.services.Saved.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := ShelfResponse{Items: make([]SavedBookResponse, 0, len(saved))}
	for _, sb := range saved {
		resp.Items = append(resp.Items, mapSavedBookResponse(sb))
	}

	return &ShelfOutput{Body: resp}, nil
}

// === Helpers ===

func mapSavedBookResponse(sb *domain.SavedBook) SavedBookResponse {
	return SavedBookResponse{
		BookID:     sb.BookID,
		Title:      sb.Title,
		AuthorName: sb.AuthorName,
		CoverURL:   sb.CoverURL,
		Genre:      sb.Genre,
		Tags:       sb.Tags,
		AvgRating:  sb.AvgRating,
		SavedAt:    sb.SavedAt,
	}
}
