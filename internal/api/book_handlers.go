package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	"github.com/bookhaven/bookhaven-server/internal/service"
	"github.com/bookhaven/bookhaven-server/internal/store"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "publishBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books",
		Summary:     "Publish a book",
		Description: "Creates a new book owned by the authenticated author",
		Tags:        []string{"Books"},
	}, s.handlePublishBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns a cursor-paginated page of the catalogue",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a single book including its rating summary",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "editBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{id}",
		Summary:     "Edit book",
		Description: "Updates content fields of a book owned by the authenticated author",
		Tags:        []string{"Books"},
	}, s.handleEditBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{id}",
		Summary:     "Delete book",
		Description: "Removes a book owned by the authenticated author. Saved copies on reader shelves are kept.",
		Tags:        []string{"Books"},
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAuthorBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/authors/{id}/books",
		Summary:     "List an author's books",
		Description: "Returns all books published by the given author",
		Tags:        []string{"Books"},
	}, s.handleListAuthorBooks)
}

// === DTOs ===

// BookResponse contains book data in API responses.
type BookResponse struct {
	ID          string    `json:"id" doc:"Book ID"`
	Title       string    `json:"title" doc:"Book title"`
	AuthorID    string    `json:"author_id" doc:"Owning author's user ID"`
	AuthorName  string    `json:"author_name" doc:"Author display name"`
	CoverURL    string    `json:"cover_url,omitempty" doc:"Cover image URL"`
	Genre       string    `json:"genre,omitempty" doc:"Genre label"`
	Tags        []string  `json:"tags,omitempty" doc:"Normalized tags"`
	Description string    `json:"description,omitempty" doc:"Book description"`
	PublishedAt time.Time `json:"published_at" doc:"Publication date"`
	PageCount   int       `json:"page_count,omitempty" doc:"Page count"`
	AvgRating   float64   `json:"avg_rating" doc:"Average rating"`
	RatingCount int       `json:"rating_count" doc:"Number of ratings"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt   time.Time `json:"updated_at" doc:"Last update timestamp"`
}

// BookOutput wraps a book response for Huma.
type BookOutput struct {
	Body BookResponse
}

// PublishBookRequest is the request body for publishing a book.
type PublishBookRequest struct {
	Title       string    `json:"title" validate:"required,min=1,max=500" doc:"Book title"`
	CoverURL    string    `json:"cover_url,omitempty" validate:"omitempty,url" doc:"Cover image URL"`
	Genre       string    `json:"genre,omitempty" validate:"omitempty,max=100" doc:"Genre label"`
	Tags        []string  `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=50" doc:"Tags"`
	Description string    `json:"description,omitempty" validate:"omitempty,max=10000" doc:"Book description"`
	PublishedAt time.Time `json:"published_at,omitempty" doc:"Publication date"`
	PageCount   int       `json:"page_count,omitempty" validate:"omitempty,gt=0" doc:"Page count"`
}

// PublishBookInput wraps the publish request for Huma.
type PublishBookInput struct {
	Body PublishBookRequest
}

// EditBookRequest carries partial updates; omitted fields stay untouched.
type EditBookRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1,max=500" doc:"Book title"`
	CoverURL    *string    `json:"cover_url,omitempty" validate:"omitempty,url" doc:"Cover image URL"`
	Genre       *string    `json:"genre,omitempty" validate:"omitempty,max=100" doc:"Genre label"`
	Tags        *[]string  `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=50" doc:"Tags"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=10000" doc:"Book description"`
	PublishedAt *time.Time `json:"published_at,omitempty" doc:"Publication date"`
	PageCount   *int       `json:"page_count,omitempty" validate:"omitempty,gt=0" doc:"Page count"`
}

// EditBookInput wraps an edit request for Huma.
type EditBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body EditBookRequest
}

// BookIDInput identifies a book by path parameter.
type BookIDInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// ListBooksInput carries pagination query parameters.
type ListBooksInput struct {
	Limit  int    `query:"limit" doc:"Page size (default 50, max 500)"`
	Cursor string `query:"cursor" doc:"Opaque cursor from a previous page"`
}

// BookListResponse is a cursor-paginated book page.
type BookListResponse struct {
	Items      []BookResponse `json:"items" doc:"Books in this page"`
	NextCursor string         `json:"next_cursor,omitempty" doc:"Cursor for the next page"`
	HasMore    bool           `json:"has_more" doc:"Whether more pages exist"`
}

// BookListOutput wraps a book page for Huma.
type BookListOutput struct {
	Body BookListResponse
}

// AuthorBooksInput identifies an author by path parameter.
type AuthorBooksInput struct {
	ID string `path:"id" doc:"Author user ID"`
}

// AuthorBooksResponse lists an author's books.
type AuthorBooksResponse struct {
	Items []BookResponse `json:"items" doc:"Author's books"`
}

// AuthorBooksOutput wraps an author book list for Huma.
type AuthorBooksOutput struct {
	Body AuthorBooksResponse
}

// === Handlers ===

func (s *Server) handlePublishBook(ctx context.Context, input *PublishBookInput) (*BookOutput, error) {
	author, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Book.Publish(ctx, author, service.PublishRequest{
		Title:       input.Body.Title,
		CoverURL:    input.Body.CoverURL,
		Genre:       input.Body.Genre,
		Tags:        input.Body.Tags,
		Description: input.Body.Description,
		PublishedAt: input.Body.PublishedAt,
		PageCount:   input.Body.PageCount,
	})
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*BookListOutput, error) {
	params := store.DefaultPaginationParams()
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	params.Cursor = input.Cursor
	params.Validate()

	page, err := s.services.Book.List(ctx, params)
	if err != nil {
		return nil, err
	}

	resp := BookListResponse{
		Items:      make([]BookResponse, 0, len(page.Items)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for _, book := range page.Items {
		resp.Items = append(resp.Items, mapBookResponse(book))
	}

	return &BookListOutput{Body: resp}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	book, err := s.services.Book.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleEditBook(ctx context.Context, input *EditBookInput) (*BookOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Book.Edit(ctx, userID, input.ID, service.EditRequest{
		Title:       input.Body.Title,
		CoverURL:    input.Body.CoverURL,
		Genre:       input.Body.Genre,
		Tags:        input.Body.Tags,
		Description: input.Body.Description,
		PublishedAt: input.Body.PublishedAt,
		PageCount:   input.Body.PageCount,
	})
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookIDInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Book.Delete(ctx, userID, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Book deleted"}}, nil
}

func (s *Server) handleListAuthorBooks(ctx context.Context, input *AuthorBooksInput) (*AuthorBooksOutput, error) {
	books, err := s.services.Book.ListByAuthor(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	resp := AuthorBooksResponse{Items: make([]BookResponse, 0, len(books))}
	for _, book := range books {
		resp.Items = append(resp.Items, mapBookResponse(book))
	}

	return &AuthorBooksOutput{Body: resp}, nil
}

// === Helpers ===

func mapBookResponse(book *domain.Book) BookResponse {
	return BookResponse{
		ID:          book.ID,
		Title:       book.Title,
		AuthorID:    book.AuthorID,
		AuthorName:  book.AuthorName,
		CoverURL:    book.CoverURL,
		Genre:       book.Genre,
		Tags:        book.Tags,
		Description: book.Description,
		PublishedAt: book.PublishedAt,
		PageCount:   book.PageCount,
		AvgRating:   book.AvgRating,
		RatingCount: book.RatingCount,
		CreatedAt:   book.CreatedAt,
		UpdatedAt:   book.UpdatedAt,
	}
}
