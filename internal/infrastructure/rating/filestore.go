package rating

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

// FileStore appends ratings to a JSONL file, one rating per line.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = "./data/ratings.jsonl"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ratings dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Save(_ context.Context, rating *domain.Rating) error {
	if rating.Rating < 1 || rating.Rating > 5 {
		return domain.WrapError(domain.ErrInvalidInput, "rating must be between 1 and 5", nil)
	}
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	if rating.Timestamp.IsZero() {
		rating.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(rating)
	if err != nil {
		return fmt.Errorf("encode rating: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ratings file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append rating: %w", err)
	}
	return nil
}

func (s *FileStore) Statistics(_ context.Context) (*domain.RatingStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &domain.RatingStatistics{
		RatingDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, fmt.Errorf("open ratings file: %w", err)
	}
	defer f.Close()

	var sum int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r domain.Rating
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		if r.Rating < 1 || r.Rating > 5 {
			continue
		}
		stats.TotalRatings++
		stats.RatingDistribution[r.Rating]++
		sum += r.Rating
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ratings file: %w", err)
	}

	if stats.TotalRatings > 0 {
		stats.AverageRating = float64(sum) / float64(stats.TotalRatings)
	}
	return stats, nil
}
