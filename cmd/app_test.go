package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/findly-app/findly/internal/utils"
	"github.com/findly-app/findly/pkg/storage"
)

func TestLockedHistoryWaitsForWriter(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "findly.sqlite")
	db, err := storage.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	other := utils.NewDBLock(dbPath)
	if err := other.Lock(); err != nil {
		t.Fatal(err)
	}

	h := &lockedHistory{db: db, lock: utils.NewDBLock(dbPath)}
	done := make(chan error, 1)
	go func() {
		_, err := h.AddHistory(context.Background(), storage.NewHistoryItem("Trail shoes", ""))
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("history write finished while another writer held the lock: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := other.Unlock(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("history write never finished")
	}

	items, err := db.ListHistory(context.Background(), 0)
	if err != nil || len(items) != 1 || items[0].Title != "Trail shoes" {
		t.Fatalf("ListHistory = %+v, %v", items, err)
	}
}

func TestLockedHistoryWithoutLock(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "findly.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	h := &lockedHistory{db: db}
	if _, err := h.AddHistory(context.Background(), storage.NewHistoryItem("Scarf", "")); err != nil {
		t.Fatal(err)
	}
}
