package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	"github.com/bookhaven/bookhaven-server/internal/trigger"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "store-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := New(dbPath, nil, NewNoopEmitter())
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return s, cleanup
}

// captureEmitter records emitted events for assertions.
type captureEmitter struct {
	mu     sync.Mutex
	events []trigger.Event
}

func (c *captureEmitter) Emit(event trigger.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureEmitter) byType(typ trigger.EventType) []trigger.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []trigger.Event
	for _, e := range c.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func setupTestStoreWithEmitter(t *testing.T) (*Store, *captureEmitter, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "store-test-*")
	require.NoError(t, err)

	emitter := &captureEmitter{}
	s, err := New(filepath.Join(tmpDir, "test.db"), nil, emitter)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return s, emitter, cleanup
}

// Helper function to create a test book
func createTestBook(id, authorID string) *domain.Book {
	now := time.Now()
	return &domain.Book{
		Syncable: domain.Syncable{
			ID:        id,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Title:       "Test Book",
		AuthorID:    authorID,
		AuthorName:  "Test Author",
		CoverURL:    "https://covers.example.com/" + id + ".jpg",
		Genre:       "Fiction",
		Tags:        []string{"test", "fiction"},
		Description: "A test book description",
		PublishedAt: now,
	}
}

func TestCreateBook(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("bok-1", "usr-author")

	require.NoError(t, s.CreateBook(ctx, book))

	got, err := s.GetBook(ctx, "bok-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Book", got.Title)
	assert.Equal(t, "usr-author", got.AuthorID)

	// Duplicate IDs are rejected
	err = s.CreateBook(ctx, book)
	assert.ErrorIs(t, err, ErrBookExists)
}

func TestGetBook_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := s.GetBook(context.Background(), "bok-missing")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestUpdateBook_EmitsChangeEvent(t *testing.T) {
	s, emitter, cleanup := setupTestStoreWithEmitter(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("bok-1", "usr-author")
	require.NoError(t, s.CreateBook(ctx, book))

	_, err := s.UpdateBook(ctx, "bok-1", func(b *domain.Book) error {
		b.Genre = "Mystery"
		return nil
	})
	require.NoError(t, err)

	events := emitter.byType(trigger.EventBookUpdated)
	require.Len(t, events, 1)
	assert.Equal(t, "Fiction", events[0].Book.Before.Genre)
	assert.Equal(t, "Mystery", events[0].Book.After.Genre)
}

func TestUpdateBook_KeepsConcurrentlyWrittenAggregate(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("bok-1", "usr-author")
	require.NoError(t, s.CreateBook(ctx, book))

	// A rating aggregate lands after the caller last read the book.
	_, err := s.UpdateBookRating(ctx, "bok-1", func(b *domain.Book) error {
		b.ApplyRating(5, 0, true)
		return nil
	})
	require.NoError(t, err)

	// The edit mutates the live document, not the caller's stale copy.
	updated, err := s.UpdateBook(ctx, "bok-1", func(b *domain.Book) error {
		b.Title = "Renamed"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, 1, updated.RatingCount)
	assert.InDelta(t, 5.0, updated.AvgRating, 1e-9)

	got, err := s.GetBook(ctx, "bok-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, 1, got.RatingCount)
}

func TestUpdateBook_MutateErrorAbortsWrite(t *testing.T) {
	s, emitter, cleanup := setupTestStoreWithEmitter(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("bok-1", "usr-author")
	require.NoError(t, s.CreateBook(ctx, book))

	boom := errors.New("no edit for you")
	_, err := s.UpdateBook(ctx, "bok-1", func(b *domain.Book) error {
		b.Title = "Should not land"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetBook(ctx, "bok-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Book", got.Title)
	assert.Empty(t, emitter.byType(trigger.EventBookUpdated))
}

func TestListBooksByAuthor(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	for i := range 3 {
		book := createTestBook(fmt.Sprintf("bok-%d", i), "usr-a")
		require.NoError(t, s.CreateBook(ctx, book))
	}
	other := createTestBook("bok-other", "usr-b")
	require.NoError(t, s.CreateBook(ctx, other))

	books, err := s.ListBooksByAuthor(ctx, "usr-a")
	require.NoError(t, err)
	assert.Len(t, books, 3)

	books, err = s.ListBooksByAuthor(ctx, "usr-b")
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestUpdateBook_MovesAuthorIndex(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("bok-1", "usr-a")
	require.NoError(t, s.CreateBook(ctx, book))

	_, err := s.UpdateBook(ctx, "bok-1", func(b *domain.Book) error {
		b.AuthorID = "usr-b"
		return nil
	})
	require.NoError(t, err)

	booksA, err := s.ListBooksByAuthor(ctx, "usr-a")
	require.NoError(t, err)
	assert.Empty(t, booksA)

	booksB, err := s.ListBooksByAuthor(ctx, "usr-b")
	require.NoError(t, err)
	require.Len(t, booksB, 1)
	assert.Equal(t, "bok-1", booksB[0].ID)
}

func TestUpdateBookRating_Incremental(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("bok-1", "usr-author")
	book.AvgRating = 4.0
	book.RatingCount = 2
	require.NoError(t, s.CreateBook(ctx, book))

	updated, err := s.UpdateBookRating(ctx, "bok-1", func(b *domain.Book) error {
		b.ApplyRating(2, 0, true)
		return nil
	})
	require.NoError(t, err)
	assert.InDelta(t, 10.0/3.0, updated.AvgRating, 1e-9)
	assert.Equal(t, 3, updated.RatingCount)

	// The write is durable
	got, err := s.GetBook(ctx, "bok-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.RatingCount)
}

func TestUpdateBookRating_ConcurrentWritesAllLand(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("bok-1", "usr-author")
	require.NoError(t, s.CreateBook(ctx, book))

	const writers = 8
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateBookRating(ctx, "bok-1", func(b *domain.Book) error {
				b.ApplyRating(5, 0, true)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetBook(ctx, "bok-1")
	require.NoError(t, err)
	assert.Equal(t, writers, got.RatingCount)
	assert.InDelta(t, 5.0, got.AvgRating, 1e-9)
}

func TestDeleteBook_RemovesRatingsAndEmits(t *testing.T) {
	s, emitter, cleanup := setupTestStoreWithEmitter(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("bok-1", "usr-author")
	require.NoError(t, s.CreateBook(ctx, book))

	_, _, err := s.PutRating(ctx, &domain.Rating{BookID: "bok-1", UserID: "usr-r", Value: 4})
	require.NoError(t, err)

	require.NoError(t, s.DeleteBook(ctx, "bok-1"))

	_, err = s.GetBook(ctx, "bok-1")
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = s.GetRating(ctx, "bok-1", "usr-r")
	assert.ErrorIs(t, err, ErrRatingNotFound)

	events := emitter.byType(trigger.EventBookDeleted)
	require.Len(t, events, 1)
	assert.Equal(t, "bok-1", events[0].BookDeleted.Book.ID)
}

func TestListBooks_Pagination(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	for i := range 5 {
		book := createTestBook(fmt.Sprintf("bok-%d", i), "usr-a")
		require.NoError(t, s.CreateBook(ctx, book))
	}

	page1, err := s.ListBooks(ctx, PaginationParams{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page1.Items, 2)
	assert.True(t, page1.HasMore)
	require.NotEmpty(t, page1.NextCursor)

	page2, err := s.ListBooks(ctx, PaginationParams{Limit: 2, Cursor: page1.NextCursor})
	require.NoError(t, err)
	assert.Len(t, page2.Items, 2)
	assert.True(t, page2.HasMore)

	page3, err := s.ListBooks(ctx, PaginationParams{Limit: 2, Cursor: page2.NextCursor})
	require.NoError(t, err)
	assert.Len(t, page3.Items, 1)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.NextCursor)

	// No overlap across pages
	seen := map[string]bool{}
	for _, page := range []*PaginatedResult[*domain.Book]{page1, page2, page3} {
		for _, b := range page.Items {
			assert.False(t, seen[b.ID], "book %s returned twice", b.ID)
			seen[b.ID] = true
		}
	}
	assert.Len(t, seen, 5)
}

func TestTouchBookAuthorName(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	for i := range 3 {
		book := createTestBook(fmt.Sprintf("bok-%d", i), "usr-a")
		require.NoError(t, s.CreateBook(ctx, book))
	}

	changed, err := s.TouchBookAuthorName(ctx, "usr-a", "New Name")
	require.NoError(t, err)
	assert.Len(t, changed, 3)

	got, err := s.GetBook(ctx, "bok-0")
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.AuthorName)

	// Second pass is a no-op
	changed, err = s.TouchBookAuthorName(ctx, "usr-a", "New Name")
	require.NoError(t, err)
	assert.Empty(t, changed)
}
