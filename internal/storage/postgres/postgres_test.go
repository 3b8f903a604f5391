package postgres

import (
	"os"
	"testing"

	"github.com/mmynk/roomledger/internal/storage/storagetest"
)

// TestPostgresStore runs the storage conformance suite against a live
// database. Set POSTGRES_TEST_URL to a disposable database to enable it.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}

	store, err := New(url)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	for _, table := range []string{"notifications", "expenses", "expense_cycles", "room_members", "rooms", "users"} {
		if _, err := store.DB().Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}

	storagetest.Run(t, store)
}
