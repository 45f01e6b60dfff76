package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/firebridgekit/Firebridge-sub000/internal/docstore"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	ctx := context.Background()
	sugar := zap.NewNop().Sugar()
	path := filepath.Join(t.TempDir(), "storage.json")

	mem := docstore.NewMemStore()
	mem.Set(ctx, "metrics", "page-view", docstore.Document{"units": []any{"day"}})
	mem.Set(ctx, "metrics/page-view/entities", "doc-1", docstore.Document{"count": float64(3)})

	if err := saveToFile(mem, path, sugar); err != nil {
		t.Fatalf("saveToFile error: %v", err)
	}

	restored := docstore.NewMemStore()
	if err := loadFromFile(restored, path, sugar); err != nil {
		t.Fatalf("loadFromFile error: %v", err)
	}

	doc, err := restored.Get(ctx, "metrics/page-view/entities", "doc-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if doc["count"] != float64(3) {
		t.Errorf("got %v", doc)
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	sugar := zap.NewNop().Sugar()
	mem := docstore.NewMemStore()

	if err := loadFromFile(mem, filepath.Join(t.TempDir(), "absent.json"), sugar); err != nil {
		t.Errorf("missing file must not be an error: %v", err)
	}
}

func TestSaveSkippedWithoutFilename(t *testing.T) {
	sugar := zap.NewNop().Sugar()

	if err := saveToFile(docstore.NewMemStore(), "", sugar); err != nil {
		t.Errorf("empty filename must be a no-op: %v", err)
	}
}

func TestPeriodicSaver(t *testing.T) {
	ctx := context.Background()
	sugar := zap.NewNop().Sugar()
	path := filepath.Join(t.TempDir(), "storage.json")

	mem := docstore.NewMemStore()
	mem.Set(ctx, "metrics", "page-view", docstore.Document{"a": 1})

	saver := NewPeriodicSaver(mem, path, 10*time.Millisecond, sugar)
	saver.Start()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			saver.Stop()
			t.Fatal("periodic save never wrote the file")
		}
		time.Sleep(5 * time.Millisecond)
	}

	saver.Stop()

	restored := docstore.NewMemStore()
	if err := loadFromFile(restored, path, sugar); err != nil {
		t.Fatalf("loadFromFile error: %v", err)
	}
	if _, err := restored.Get(ctx, "metrics", "page-view"); err != nil {
		t.Errorf("saved document missing: %v", err)
	}
}
