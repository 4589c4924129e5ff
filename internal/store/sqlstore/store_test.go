package sqlstore

import (
	"testing"

	"github.com/pliu/chatterbox/internal/store"
	"github.com/pliu/chatterbox/internal/store/storetest"
)

func newTestStore(t *testing.T) store.Store {
	s, err := New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, newTestStore)
}

func TestRebind(t *testing.T) {
	s := &SQLStore{driverName: "postgres"}
	got := s.rebind("SELECT 1 FROM users WHERE id = ? AND email = ?")
	want := "SELECT 1 FROM users WHERE id = $1 AND email = $2"
	if got != want {
		t.Errorf("rebind() = %q, want %q", got, want)
	}

	s = &SQLStore{driverName: "sqlite3"}
	if got := s.rebind("id = ?"); got != "id = ?" {
		t.Errorf("rebind() changed a sqlite query: %q", got)
	}
}

func TestCreateTablesIsIdempotent(t *testing.T) {
	s, err := New("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.createTables(); err != nil {
		t.Errorf("second createTables failed: %v", err)
	}
}
