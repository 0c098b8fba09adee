package store

import (
	"context"
	"testing"
	"time"
)

func testCollection() Collection {
	return Collection{
		Name:    "Test Collection",
		Domain:  "skyrimspecialedition",
		Version: "1.0.0",
		Archives: []Archive{
			{Hash: "hash-a", Filename: "a.7z", ExpectedSize: 1000, Source: Source{Kind: SourceDirectHttp, URL: "https://example.test/a.7z"}},
		},
		Mods: []Mod{
			{LogicalFilename: "a.7z", DisplayName: "Mod A", FolderName: "Mod A", ArchiveHash: "hash-a", Source: Source{Kind: SourceDirectHttp}},
		},
		Plugins: []Plugin{
			{Filename: "ModA.esp", Enabled: true},
		},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestImportCollectionIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := testCollection()

	if err := s.ImportCollection(ctx, c); err != nil {
		t.Fatalf("first import: %v", err)
	}
	if err := s.ImportCollection(ctx, c); err != nil {
		t.Fatalf("second import: %v", err)
	}

	mods, err := s.GetAllMods(ctx)
	if err != nil {
		t.Fatalf("GetAllMods: %v", err)
	}
	if len(mods) != 1 {
		t.Fatalf("expected 1 mod after double import, got %d", len(mods))
	}
}

func TestImportRejectsMissingArchive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := Collection{
		Mods: []Mod{
			{LogicalFilename: "a.7z", ArchiveHash: "does-not-exist"},
		},
	}
	if err := s.ImportCollection(ctx, c); err == nil {
		t.Fatal("expected I1 violation error, got nil")
	}
}

func TestResetStuckModsIsLeftInverse(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.ImportCollection(ctx, testCollection()); err != nil {
		t.Fatalf("import: %v", err)
	}
	mods, err := s.GetAllMods(ctx)
	if err != nil || len(mods) != 1 {
		t.Fatalf("GetAllMods: %v (%d mods)", err, len(mods))
	}
	id := mods[0].ID

	if err := s.UpdateModStatus(ctx, id, StatusDownloading); err != nil {
		t.Fatalf("UpdateModStatus: %v", err)
	}
	n, err := s.ResetStuckMods(ctx)
	if err != nil {
		t.Fatalf("ResetStuckMods: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 mod reset, got %d", n)
	}

	got, err := s.GetModsByStatus(ctx, StatusPending)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected mod demoted to pending: err=%v got=%d", err, len(got))
	}

	// Second call resets nothing: left-inverse (P3).
	n, err = s.ResetStuckMods(ctx)
	if err != nil {
		t.Fatalf("second ResetStuckMods: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 mods reset on second call, got %d", n)
	}
}

func TestURLCacheFreshness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.ImportCollection(ctx, testCollection()); err != nil {
		t.Fatalf("import: %v", err)
	}

	now := time.Now().Unix()
	// Entry expiring in 4 hours is fresh (P10).
	if err := s.CacheDownloadURL(ctx, "hash-a", "https://signed.example/a", now+4*3600); err != nil {
		t.Fatalf("CacheDownloadURL: %v", err)
	}
	if _, ok, err := s.GetCachedURL(ctx, "hash-a"); err != nil || !ok {
		t.Fatalf("expected fresh cache hit: ok=%v err=%v", ok, err)
	}

	// Entry expiring in 60 seconds is within the 5-minute safety margin: treated as absent.
	if err := s.CacheDownloadURL(ctx, "hash-a", "https://signed.example/a", now+60); err != nil {
		t.Fatalf("CacheDownloadURL: %v", err)
	}
	if _, ok, err := s.GetCachedURL(ctx, "hash-a"); err != nil || ok {
		t.Fatalf("expected stale cache miss within safety margin: ok=%v err=%v", ok, err)
	}
}
