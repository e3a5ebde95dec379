package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dwikikusuma/pos-checkout/pkg/sqlite"
)

func TestSnapshotRepo(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "cart.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	repo := NewSnapshotRepo(db, "till-1")
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := repo.LoadCart(ctx)
	if err != nil || data != nil {
		t.Fatalf("empty repo returned %q, %v", data, err)
	}

	for _, snap := range []string{`{"session":"a"}`, `{"session":"b"}`} {
		if err := repo.SaveCart(ctx, []byte(snap)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	data, err = repo.LoadCart(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != `{"session":"b"}` {
		t.Fatalf("loaded %q", data)
	}

	other, _ := NewSnapshotRepo(db, "till-2").LoadCart(ctx)
	if other != nil {
		t.Fatal("snapshots leak between keys")
	}
}
