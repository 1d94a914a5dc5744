package userdata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/userdata"
)

func seededRepo() *userdata.InMemoryRepository {
	repo := userdata.NewInMemoryRepository()
	repo.SeedAccount(userdata.Account{ID: "usr_1", Email: "alice@example.com", DisplayName: "Alice", Locale: "en-GB"})
	repo.SeedAccount(userdata.Account{ID: "usr_2", Email: "bob@example.com", DisplayName: "Bob"})
	repo.SeedComment(userdata.Comment{ID: "cmt_1", AuthorID: "usr_1", Body: "first"})
	repo.SeedComment(userdata.Comment{ID: "cmt_2", AuthorID: "usr_1", Body: "second"})
	repo.SeedComment(userdata.Comment{ID: "cmt_3", AuthorID: "usr_2", Body: "bob's"})
	repo.SeedConsent(userdata.ConsentRecord{ID: "cns_1", UserID: "usr_1", Purpose: "marketing", Granted: true})
	repo.SeedConsent(userdata.ConsentRecord{ID: "cns_2", UserID: "usr_1", Purpose: "analytics", Granted: false})
	return repo
}

func TestInMemoryRepository_FindAccount(t *testing.T) {
	repo := seededRepo()
	ctx := context.Background()

	byID, err := repo.FindAccount(ctx, "usr_1", "")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)

	// Email lookup is case-insensitive and only consulted without a user id.
	byEmail, err := repo.FindAccount(ctx, "", "ALICE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "usr_1", byEmail.ID)

	_, err = repo.FindAccount(ctx, "usr_404", "alice@example.com")
	assert.ErrorIs(t, err, userdata.ErrAccountNotFound)

	_, err = repo.FindAccount(ctx, "", "nobody@example.com")
	assert.ErrorIs(t, err, userdata.ErrAccountNotFound)
}

func TestInMemoryRepository_AnonymizeAccount(t *testing.T) {
	repo := seededRepo()
	ctx := context.Background()

	require.NoError(t, repo.AnonymizeAccount(ctx, "usr_1"))

	a, err := repo.FindAccount(ctx, "usr_1", "")
	require.NoError(t, err)
	assert.True(t, a.Anonymized)
	assert.Equal(t, "anonymized+usr_1@invalid", a.Email)
	assert.Equal(t, "Deleted User", a.DisplayName)
	assert.Empty(t, a.Locale)
	assert.False(t, a.UpdatedAt.IsZero())

	// The original address no longer resolves.
	_, err = repo.FindAccount(ctx, "", "alice@example.com")
	assert.ErrorIs(t, err, userdata.ErrAccountNotFound)

	assert.ErrorIs(t, repo.AnonymizeAccount(ctx, "usr_404"), userdata.ErrAccountNotFound)
}

func TestInMemoryRepository_RedactComments(t *testing.T) {
	repo := seededRepo()
	ctx := context.Background()

	count, err := repo.RedactCommentsByAuthor(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	redacted, err := repo.ListCommentsByAuthor(ctx, "usr_1")
	require.NoError(t, err)
	for _, c := range redacted {
		assert.True(t, c.Redacted)
		assert.Empty(t, c.Body)
	}

	// Redaction is idempotent and scoped to the author.
	count, err = repo.RedactCommentsByAuthor(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	others, err := repo.ListCommentsByAuthor(ctx, "usr_2")
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "bob's", others[0].Body)
}

func TestInMemoryRepository_DeleteConsents(t *testing.T) {
	repo := seededRepo()
	ctx := context.Background()

	count, err := repo.DeleteConsentsByUser(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	remaining, err := repo.ListConsentsByUser(ctx, "usr_1")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	count, err = repo.DeleteConsentsByUser(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
