package dsr_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
)

func seedRequest(t *testing.T, repo *dsr.InMemoryRepository, status dsr.Status) *dsr.Request {
	t.Helper()
	req := &dsr.Request{
		ID:             "dsr_repo0000000000000001",
		Type:           dsr.TypeAccess,
		RequesterEmail: "alice@example.com",
		Regulation:     dsr.RegulationGDPR,
		Status:         status,
		SLADays:        30,
		SLADeadline:    time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
		SubmittedAt:    time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), req))
	return req
}

func TestInMemoryRepository_UpdateStatusIf_StampsCompletedAt(t *testing.T) {
	repo := dsr.NewInMemoryRepository()
	ctx := context.Background()
	req := seedRequest(t, repo, dsr.StatusInProgress)

	completedAt := time.Date(2026, 1, 20, 14, 30, 0, 0, time.UTC)
	updated, err := repo.UpdateStatusIf(ctx, req.ID, dsr.StatusInProgress, dsr.StatusCompleted, &completedAt)
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, completedAt, *updated.CompletedAt)

	// The stamp landed in the same write, not a follow-up.
	stored, err := repo.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, dsr.StatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, completedAt, *stored.CompletedAt)
}

func TestInMemoryRepository_UpdateStatusIf_NilStampLeavesCompletedAt(t *testing.T) {
	repo := dsr.NewInMemoryRepository()
	ctx := context.Background()
	req := seedRequest(t, repo, dsr.StatusPendingVerification)

	updated, err := repo.UpdateStatusIf(ctx, req.ID, dsr.StatusPendingVerification, dsr.StatusVerified, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.CompletedAt)
}

func TestInMemoryRepository_UpdateStatusIf_RejectsStaleExpectation(t *testing.T) {
	repo := dsr.NewInMemoryRepository()
	ctx := context.Background()
	req := seedRequest(t, repo, dsr.StatusVerified)

	_, err := repo.UpdateStatusIf(ctx, req.ID, dsr.StatusPendingVerification, dsr.StatusVerified, nil)
	assert.ErrorIs(t, err, dsr.ErrRequestNotFound)

	stored, err := repo.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, dsr.StatusVerified, stored.Status)
}
