package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bookhaven/bookhaven-server/internal/search"
	"github.com/bookhaven/bookhaven-server/internal/store"
)

// SearchService queries the catalogue's full-text index and rebuilds it from
// the canonical store when needed.
type SearchService struct {
	store  *store.Store
	index  *search.Index
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(s *store.Store, index *search.Index, logger *slog.Logger) *SearchService {
	return &SearchService{
		store:  s,
		index:  index,
		logger: logger,
	}
}

// Search runs a query against the index.
func (s *SearchService) Search(ctx context.Context, params search.Params) (*search.Result, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}
	if params.Limit > 100 {
		params.Limit = 100
	}

	result, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return result, nil
}

// DocumentCount returns the number of documents in the index.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}

// Reindex rebuilds the search index from the canonical catalogue.
// Used on startup when the mapping changed and as an operator repair tool.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	if err := s.index.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	total := 0
	params := store.PaginationParams{Limit: 500}
	for {
		page, err := s.store.ListBooks(ctx, params)
		if err != nil {
			return total, fmt.Errorf("list books: %w", err)
		}
		if err := s.index.IndexBooks(page.Items); err != nil {
			return total, fmt.Errorf("index books: %w", err)
		}
		total += len(page.Items)
		if !page.HasMore {
			break
		}
		params.Cursor = page.NextCursor
	}

	if s.logger != nil {
		s.logger.Info("search index rebuilt", "books", total)
	}
	return total, nil
}
