package rating

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "ratings.jsonl"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return store
}

func TestSaveAndStatistics(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, value := range []int{5, 4, 5} {
		if err := store.Save(ctx, &domain.Rating{
			Query:  "what is gravity?",
			Answer: "Gravity is...",
			Rating: value,
		}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalRatings != 3 {
		t.Fatalf("expected 3 ratings, got %d", stats.TotalRatings)
	}
	if stats.RatingDistribution[5] != 2 || stats.RatingDistribution[4] != 1 {
		t.Fatalf("unexpected distribution: %v", stats.RatingDistribution)
	}
	want := (5.0 + 4.0 + 5.0) / 3.0
	if stats.AverageRating != want {
		t.Fatalf("expected average %v, got %v", want, stats.AverageRating)
	}
}

func TestSaveRejectsOutOfRangeRating(t *testing.T) {
	store := newStore(t)

	err := store.Save(context.Background(), &domain.Rating{Rating: 6})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestStatisticsOnEmptyStore(t *testing.T) {
	store := newStore(t)

	stats, err := store.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalRatings != 0 || stats.AverageRating != 0 {
		t.Fatalf("expected empty statistics, got %+v", stats)
	}
	if len(stats.RatingDistribution) != 5 {
		t.Fatalf("expected full distribution map, got %v", stats.RatingDistribution)
	}
}
