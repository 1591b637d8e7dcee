package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgtutu/internal/model"
	"imgtutu/pkg/store/postgres"
)

func historyRecord(userID, url string) *postgres.HistoryRecord {
	return &postgres.HistoryRecord{UserID: userID, ImageURL: url, Prompt: "p", ModelUsed: "test-model"}
}

func TestCreditService_FirstSightSeedsDefault(t *testing.T) {
	credits := newFakeCreditRepo()
	svc := NewCreditService(credits, 5)

	resp, err := svc.Balance(context.Background(), "newcomer")
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.Credits)
	assert.Equal(t, "newcomer", resp.UserID)

	// Seeding happens once; the grant is not repeated.
	resp, err = svc.Balance(context.Background(), "newcomer")
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.Credits)
}

func TestCreditService_UpdateActions(t *testing.T) {
	credits := newFakeCreditRepo()
	svc := NewCreditService(credits, 5)
	ctx := context.Background()

	resp, err := svc.Update(ctx, "u", &model.CreditUpdateRequest{
		UserID: "u", Action: model.CreditActionAdd, Amount: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), resp.Credits)

	resp, err = svc.Update(ctx, "u", &model.CreditUpdateRequest{
		UserID: "u", Action: model.CreditActionDeduct, Amount: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), resp.Credits)
}

func TestCreditService_DeductBelowZeroRejected(t *testing.T) {
	credits := newFakeCreditRepo()
	svc := NewCreditService(credits, 2)

	_, err := svc.Update(context.Background(), "u", &model.CreditUpdateRequest{
		UserID: "u", Action: model.CreditActionDeduct, Amount: 100,
	})
	assert.ErrorIs(t, err, model.ErrInsufficientCredits)
	// Balance untouched.
	assert.Equal(t, int64(2), credits.balance("u"))
}

func TestCreditService_InvalidInputs(t *testing.T) {
	svc := NewCreditService(newFakeCreditRepo(), 5)
	ctx := context.Background()

	_, err := svc.Update(ctx, "u", &model.CreditUpdateRequest{UserID: "u", Action: model.CreditActionAdd, Amount: 0})
	assert.ErrorIs(t, err, model.ErrInvalidCreditAmount)

	_, err = svc.Update(ctx, "u", &model.CreditUpdateRequest{UserID: "u", Action: "transfer", Amount: 1})
	assert.ErrorIs(t, err, model.ErrInvalidCreditAction)
}

func TestHistoryService_ListAndClear(t *testing.T) {
	history := newFakeHistoryRepo()
	svc := NewHistoryService(history)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, history.Create(ctx, historyRecord("u1", "https://cdn.example.com/a.png")))
	}
	require.NoError(t, history.Create(ctx, historyRecord("u2", "https://cdn.example.com/b.png")))

	records, err := svc.List(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	// Single-record delete is owner-scoped.
	err = svc.Delete(ctx, "u2", records[0].ID)
	assert.ErrorIs(t, err, model.ErrHistoryNotFound)
	require.NoError(t, svc.Delete(ctx, "u1", records[0].ID))

	deleted, err := svc.Clear(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// Other users' rows survive.
	records, err = svc.List(ctx, "u2", 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
