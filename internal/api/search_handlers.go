package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookhaven/bookhaven-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search books",
		Description: "Full-text search across titles and author names with genre, tag, rating, and year filters",
		Tags:        []string{"Search"},
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindexBooks",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/reindex",
		Summary:     "Rebuild the search index",
		Description: "Drops and rebuilds the search index from the canonical catalogue",
		Tags:        []string{"Search"},
	}, s.handleReindexBooks)
}

// === DTOs ===

// SearchInput carries search query parameters.
type SearchInput struct {
	Query     string   `query:"q" doc:"Search query"`
	Genre     string   `query:"genre" doc:"Filter by exact genre"`
	Tags      []string `query:"tag" doc:"Filter by tags (any match)"`
	MinRating float64  `query:"min_rating" doc:"Minimum average rating"`
	MinYear   int      `query:"min_year" doc:"Minimum publish year"`
	MaxYear   int      `query:"max_year" doc:"Maximum publish year"`
	Limit     int      `query:"limit" doc:"Page size (default 20, max 100)"`
	Offset    int      `query:"offset" doc:"Result offset"`
	SortBy    string   `query:"sort" doc:"Sort order: relevance, title, author, recent, rating"`
	SortOrder string   `query:"order" doc:"Sort direction: asc or desc"`
}

// SearchOutput wraps search results for Huma.
type SearchOutput struct {
	Body search.Result
}

// ReindexResponse reports the reindex outcome.
type ReindexResponse struct {
	BooksIndexed int `json:"books_indexed" doc:"Number of books written to the fresh index"`
}

// ReindexOutput wraps the reindex response for Huma.
type ReindexOutput struct {
	Body ReindexResponse
}

// === Handlers ===

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	params := search.DefaultParams()
	params.Query = input.Query
	params.Genre = input.Genre
	params.Tags = input.Tags
	params.MinRating = input.MinRating
	params.MinYear = input.MinYear
	params.MaxYear = input.MaxYear
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	params.Offset = input.Offset
	if input.SortBy != "" {
		params.SortBy = input.SortBy
	}
	if input.SortOrder != "" {
		params.SortOrder = input.SortOrder
	}

	result, err := s.services.Search.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	return &SearchOutput{Body: *result}, nil
}

func (s *Server) handleReindexBooks(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	// Reindexing drops the whole index, so gate it behind authentication.
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	count, err := s.services.Search.Reindex(ctx)
	if err != nil {
		return nil, err
	}

	return &ReindexOutput{Body: ReindexResponse{BooksIndexed: count}}, nil
}
