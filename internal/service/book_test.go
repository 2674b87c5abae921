package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	domainerrors "github.com/bookhaven/bookhaven-server/internal/errors"
	"github.com/bookhaven/bookhaven-server/internal/store"
)

func setupBookService(t *testing.T) (*BookService, *store.Store) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "service-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	})

	return NewBookService(s, testLogger()), s
}

func testAuthor(id, name string) *domain.User {
	user := &domain.User{
		Syncable:    domain.Syncable{ID: id},
		Email:       id + "@example.com",
		DisplayName: name,
		Role:        domain.RoleAuthor,
	}
	user.InitTimestamps()
	return user
}

func TestPublish(t *testing.T) {
	svc, _ := setupBookService(t)
	author := testAuthor("usr-author", "Alice Moreau")

	book, err := svc.Publish(context.Background(), author, PublishRequest{
		Title: "The Winter Garden",
		Genre: "Fiction",
		Tags:  []string{"Cozy", "cozy", "Slow Burn"},
	})
	require.NoError(t, err)
	assert.Equal(t, "usr-author", book.AuthorID)
	assert.Equal(t, "Alice Moreau", book.AuthorName)
	// Tags are normalized and deduplicated
	assert.Equal(t, []string{"cozy", "slow burn"}, book.Tags)
	assert.Zero(t, book.AvgRating)
	assert.Zero(t, book.RatingCount)
}

func TestPublish_ReadersRejected(t *testing.T) {
	svc, _ := setupBookService(t)
	reader := &domain.User{
		Syncable:    domain.Syncable{ID: "usr-reader"},
		DisplayName: "Reader",
		Role:        domain.RoleReader,
	}

	_, err := svc.Publish(context.Background(), reader, PublishRequest{Title: "Nope"})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeForbidden, domainErr.Code)
}

func TestEdit_OwnerOnly(t *testing.T) {
	svc, _ := setupBookService(t)
	author := testAuthor("usr-author", "Alice Moreau")

	book, err := svc.Publish(context.Background(), author, PublishRequest{Title: "Original"})
	require.NoError(t, err)

	_, err = svc.Edit(context.Background(), "usr-other", book.ID, EditRequest{
		Title: strPtr("Hijacked"),
	})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeForbidden, domainErr.Code)
}

func TestEdit_PreservesRatingSummary(t *testing.T) {
	svc, s := setupBookService(t)
	author := testAuthor("usr-author", "Alice Moreau")

	book, err := svc.Publish(context.Background(), author, PublishRequest{Title: "Original"})
	require.NoError(t, err)

	// Aggregator lands a rating summary
	_, err = s.UpdateBookRating(context.Background(), book.ID, func(b *domain.Book) error {
		b.ApplyRating(5, 0, true)
		return nil
	})
	require.NoError(t, err)

	edited, err := svc.Edit(context.Background(), "usr-author", book.ID, EditRequest{
		Title: strPtr("Retitled"),
		Genre: strPtr("Mystery"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Retitled", edited.Title)
	assert.Equal(t, "Mystery", edited.Genre)
	assert.Equal(t, 5.0, edited.AvgRating)
	assert.Equal(t, 1, edited.RatingCount)
}

func TestEdit_PartialPatch(t *testing.T) {
	svc, _ := setupBookService(t)
	author := testAuthor("usr-author", "Alice Moreau")

	book, err := svc.Publish(context.Background(), author, PublishRequest{
		Title:       "Original",
		Genre:       "Fiction",
		Description: "Keep me",
	})
	require.NoError(t, err)

	edited, err := svc.Edit(context.Background(), "usr-author", book.ID, EditRequest{
		Genre: strPtr("Mystery"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Original", edited.Title)
	assert.Equal(t, "Mystery", edited.Genre)
	assert.Equal(t, "Keep me", edited.Description)
}

func TestDelete_OwnerOnly(t *testing.T) {
	svc, _ := setupBookService(t)
	author := testAuthor("usr-author", "Alice Moreau")

	book, err := svc.Publish(context.Background(), author, PublishRequest{Title: "Doomed"})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "usr-other", book.ID)
	require.Error(t, err)

	require.NoError(t, svc.Delete(context.Background(), "usr-author", book.ID))

	_, err = svc.Get(context.Background(), book.ID)
	require.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := setupBookService(t)

	_, err := svc.Get(context.Background(), "bok-missing")
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeNotFound, domainErr.Code)
}

func strPtr(s string) *string { return &s }
