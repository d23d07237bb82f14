package tendering

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/openagora/agora-backend/pkg/db/models"
	"github.com/openagora/agora-backend/pkg/enums"
	"github.com/openagora/agora-backend/pkg/pagination"
)

func setupTenderTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	asks := `
CREATE TABLE IF NOT EXISTS asks (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL,
  requirements TEXT,
  min_budget_cents INTEGER NOT NULL,
  max_budget_cents INTEGER NOT NULL,
  budget_flex_cents INTEGER,
  creator_agent_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  currency TEXT NOT NULL DEFAULT 'USD',
  delivery_data TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	bids := `
CREATE TABLE IF NOT EXISTS bids (
  id TEXT PRIMARY KEY,
  ask_id TEXT NOT NULL,
  bidder_agent_id TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  proposal TEXT,
  estimated_duration_secs INTEGER,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(asks).Error)
	require.NoError(t, db.Exec(bids).Error)
	return db
}

func insertAsk(t *testing.T, db *gorm.DB, status enums.AskStatus, created time.Time) *models.Ask {
	t.Helper()

	ask := &models.Ask{
		ID:             uuid.New(),
		Title:          "classify support tickets",
		Description:    "batch of 500 tickets",
		MinBudgetCents: 10_000,
		MaxBudgetCents: 50_000,
		CreatorAgentID: uuid.New(),
		Status:         status,
		Currency:       enums.CurrencyUSD,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	require.NoError(t, db.Create(ask).Error)
	return ask
}

func insertBid(t *testing.T, db *gorm.DB, askID uuid.UUID, status enums.BidStatus, created time.Time) *models.Bid {
	t.Helper()

	bid := &models.Bid{
		ID:            uuid.New(),
		AskID:         askID,
		BidderAgentID: uuid.New(),
		PriceCents:    20_000,
		Currency:      enums.CurrencyUSD,
		Status:        status,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	require.NoError(t, db.Create(bid).Error)
	return bid
}

// TestRepositoryUpdateAskStatusGuarded drives the compare-and-swap that
// picks exactly one winning accept per ask.
func TestRepositoryUpdateAskStatusGuarded(t *testing.T) {
	db := setupTenderTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	ask := insertAsk(t, db, enums.AskStatusOpen, time.Now().UTC())

	won, err := repo.UpdateAskStatusGuarded(ctx, ask.ID, enums.AskStatusOpen, enums.AskStatusInProgress)
	require.NoError(t, err)
	assert.True(t, won)

	// The row already moved, a second writer loses the race.
	won, err = repo.UpdateAskStatusGuarded(ctx, ask.ID, enums.AskStatusOpen, enums.AskStatusInProgress)
	require.NoError(t, err)
	assert.False(t, won)

	reloaded, err := repo.FindAsk(ctx, ask.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AskStatusInProgress, reloaded.Status)

	// Wrong expected state never flips the row.
	won, err = repo.UpdateAskStatusGuarded(ctx, ask.ID, enums.AskStatusOpen, enums.AskStatusCancelled)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestRepositoryListAsks_cursor(t *testing.T) {
	db := setupTenderTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	oldest := insertAsk(t, db, enums.AskStatusOpen, now.Add(-2*time.Hour))
	middle := insertAsk(t, db, enums.AskStatusOpen, now.Add(-time.Hour))
	newest := insertAsk(t, db, enums.AskStatusOpen, now)
	insertAsk(t, db, enums.AskStatusCancelled, now.Add(-30*time.Minute))

	open := enums.AskStatusOpen
	first, err := repo.ListAsks(ctx, &open, 2, nil)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, newest.ID, first[0].ID)
	assert.Equal(t, middle.ID, first[1].ID)

	rest, err := repo.ListAsks(ctx, &open, 2, &pagination.Cursor{
		CreatedAt: first[1].CreatedAt,
		ID:        first[1].ID,
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, oldest.ID, rest[0].ID)
}

func TestRepositoryRejectPendingBids(t *testing.T) {
	db := setupTenderTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	ask := insertAsk(t, db, enums.AskStatusOpen, now)
	winner := insertBid(t, db, ask.ID, enums.BidStatusPending, now)
	loserA := insertBid(t, db, ask.ID, enums.BidStatusPending, now)
	loserB := insertBid(t, db, ask.ID, enums.BidStatusPending, now)
	accepted := insertBid(t, db, ask.ID, enums.BidStatusAccepted, now)

	ids, err := repo.RejectPendingBids(ctx, ask.ID, winner.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{loserA.ID, loserB.ID}, ids)

	for _, id := range ids {
		b, err := repo.FindBid(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, enums.BidStatusRejected, b.Status)
	}
	kept, err := repo.FindBid(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BidStatusPending, kept.Status)
	untouched, err := repo.FindBid(ctx, accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BidStatusAccepted, untouched.Status)

	// The returned ids are exactly what a failed accept needs to undo.
	require.NoError(t, repo.RestoreBidsToPending(ctx, ids))
	for _, id := range ids {
		b, err := repo.FindBid(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, enums.BidStatusPending, b.Status)
	}
}
