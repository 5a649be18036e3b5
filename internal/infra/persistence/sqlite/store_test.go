package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"campuscore/pkg/domain"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	return store
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store := openStore(t, path)
	var bathroomID string
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		campus, err := tx.CreateCampus(domain.Campus{Name: "Persist"})
		if err != nil {
			return err
		}
		bathroom, err := tx.CreateBathroom(domain.Bathroom{CampusID: campus.ID, Code: "WC-1", Gender: domain.GenderFemale})
		bathroomID = bathroom.ID
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	_ = store.Close()

	reloaded := openStore(t, path)
	t.Cleanup(func() { _ = reloaded.Close() })
	if got := len(reloaded.ListCampuses()); got != 1 {
		t.Fatalf("expected 1 campus, got %d", got)
	}
	if b, ok := reloaded.GetBathroom(bathroomID); !ok || b.Gender != domain.GenderFemale {
		t.Fatalf("expected reloaded bathroom, got %+v", b)
	}
}

func TestSQLiteStoreRollsBackOnPersistFailure(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateCampus(domain.Campus{Name: "Kept"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = store.DB().Close()

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateCampus(domain.Campus{Name: "Lost"})
		return err
	})
	if !domain.IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	campuses := store.ListCampuses()
	if len(campuses) != 1 || campuses[0].Name != "Kept" {
		t.Fatalf("expected state rolled back to the pre-transaction snapshot, got %+v", campuses)
	}
}

func TestSQLiteStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store := openStore(t, path)
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES('campuses', '{broken')`); err != nil {
		t.Fatalf("seed invalid payload: %v", err)
	}
	_ = store.Close()

	_, err := NewStore(path, domain.NewRulesEngine())
	if err == nil || !strings.Contains(err.Error(), "decode campuses") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestSQLiteStoreIgnoresUnknownBuckets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store := openStore(t, path)
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES('organisms', '{}')`); err != nil {
		t.Fatalf("seed legacy bucket: %v", err)
	}
	_ = store.Close()

	reloaded := openStore(t, path)
	t.Cleanup(func() { _ = reloaded.Close() })
	if len(reloaded.ListCampuses()) != 0 {
		t.Fatalf("expected empty registry")
	}
}
