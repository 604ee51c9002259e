package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alemendo/intent-cli/internal/intent"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	tmp := t.TempDir()
	store, err := OpenSQLite(filepath.Join(tmp, "sessions.db"), filepath.Join(tmp, "sessions.lock"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := openTestSQLite(t)
	store.Remember(Session{
		ID:       "s-1",
		Network:  "ethereum",
		Endpoint: "https://rpc.example",
		Intent:   sampleIntent("10000"),
	})

	got, found := store.Read("s-1")
	if !found {
		t.Fatal("session not found after Remember")
	}
	if got.Network != "ethereum" || got.Endpoint != "https://rpc.example" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !intent.Equal(got.Intent, sampleIntent("10000")) {
		t.Fatal("intent did not survive the round trip")
	}
}

func TestSQLiteStoreOverwrite(t *testing.T) {
	store := openTestSQLite(t)
	store.Remember(Session{ID: "s-1", Network: "ethereum", Intent: sampleIntent("100")})
	store.Remember(Session{ID: "s-1", Network: "base", Intent: sampleIntent("200")})

	got, found := store.Read("s-1")
	if !found {
		t.Fatal("session not found")
	}
	if got.Network != "base" || !intent.Equal(got.Intent, sampleIntent("200")) {
		t.Fatalf("Remember must replace the stored plan: %+v", got)
	}
}

func TestSQLiteStoreLatestOrdering(t *testing.T) {
	store := openTestSQLite(t)
	ticks := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	i := 0
	store.now = func() time.Time { tick := ticks[i]; i++; return tick }

	store.Remember(Session{ID: "s-old", Network: "ethereum", Intent: sampleIntent("100")})
	store.Remember(Session{ID: "s-new", Network: "base", Intent: sampleIntent("200")})

	latest, found := store.Latest()
	if !found || latest.ID != "s-new" {
		t.Fatalf("latest = %+v, want s-new", latest)
	}
}

func TestSQLiteStoreMissing(t *testing.T) {
	store := openTestSQLite(t)
	if _, found := store.Read("nope"); found {
		t.Fatal("unknown id must not be found")
	}
	if _, found := store.Latest(); found {
		t.Fatal("empty store must report no latest session")
	}
}
