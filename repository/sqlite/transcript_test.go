package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/transcript"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := InitDB(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(context.Background(), db, DefaultDBConfig())
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveAndFind(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	rec := models.FromResult("dQw4w9WgXcQ", transcript.Success(
		[]transcript.Segment{{Start: 0, Text: "Never gonna"}, {Start: 2, Text: "give you up"}},
		transcript.SourceDirect, "en",
	))

	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Failed to save transcript: %v", err)
	}

	got, err := repo.Find(ctx, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Failed to find transcript: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("expected status completed, got %s", got.Status)
	}
	if len(got.Segments) != 2 || got.Segments[1].Text != "give you up" {
		t.Errorf("unexpected segments %+v", got.Segments)
	}
	if got.RawText != "Never gonna give you up" {
		t.Errorf("unexpected raw text %q", got.RawText)
	}
	if got.Language != "en" || got.Source != transcript.SourceDirect {
		t.Errorf("unexpected language/source %q/%q", got.Language, got.Source)
	}
}

func TestSaveOverwritesFailure(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	failed := models.FromResult("dQw4w9WgXcQ", transcript.Failure(transcript.NewError(transcript.KindNetwork, "timeout")))
	if err := repo.Save(ctx, failed); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	later := models.FromResult("dQw4w9WgXcQ", transcript.NoCaptions(transcript.SourceDirect))
	later.UpdatedAt = time.Now().UTC().Add(time.Minute)
	if err := repo.Save(ctx, later); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	got, err := repo.Find(ctx, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Failed to find: %v", err)
	}
	if got.Status != models.StatusNoCaptions {
		t.Errorf("expected no_captions, got %s", got.Status)
	}
	if got.ErrorCode != "" {
		t.Errorf("expected error code to be cleared, got %q", got.ErrorCode)
	}
	if len(got.Segments) != 0 {
		t.Errorf("expected no segments, got %d", len(got.Segments))
	}
}

func TestFindMissing(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Find(context.Background(), "aaaaaaaaaaa")
	if !errors.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}
