package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEscrowMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_escrow_locks_and_settlements.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS escrow_locks",
		"CONSTRAINT ux_escrow_locks_bid_id UNIQUE (bid_id)",
		"CHECK (total_amount_cents = base_amount_cents + buyer_fee_cents)",
		"CONSTRAINT ux_settlements_escrow_lock_id UNIQUE (escrow_lock_id)",
		"CHECK (payout_cents = base_amount_cents - seller_fee_cents)",
		"CHECK (revenue_cents = buyer_fee_cents + seller_fee_cents)",
		"DROP TABLE IF EXISTS escrow_locks",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestBidsMigrationEnforcesSingleWinner(t *testing.T) {
	content := readMigration(t, "*_create_asks_and_bids.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_bids_single_winner",
		"WHERE status = 'accepted'",
		"CHECK (max_budget_cents >= min_budget_cents)",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestWalletsMigrationSeedsPlatformWallets(t *testing.T) {
	content := readMigration(t, "*_create_wallets.sql")

	checks := []string{
		"CONSTRAINT ux_wallets_agent_id UNIQUE (agent_id)",
		"'11111111-1111-1111-1111-111111111111', NULL, 'escrow', 'active'",
		"'22222222-2222-2222-2222-222222222222', NULL, 'revenue', 'active'",
		"ON CONFLICT (id) DO NOTHING",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestLedgerEntriesMigrationDeduplicatesOnramps(t *testing.T) {
	content := readMigration(t, "*_create_ledger_entries.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_ledger_entries_provider_ref_onramp",
		"WHERE type = 'onramp' AND provider_ref IS NOT NULL",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
