package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/botarena/internal/apperror"
	"github.com/rocketscienceinc/botarena/internal/entity"
)

// MatchRepository is the in-memory table of finished matches, kept in insertion order.
type MatchRepository interface {
	InsertMany(ctx context.Context, results []entity.MatchResult) error
	GetByID(ctx context.Context, id string) (*entity.MatchResult, error)
	List(ctx context.Context) []entity.MatchSummary
	ListByBot(ctx context.Context, name string) []entity.MatchSummary
}

type memMatch struct {
	mu      sync.RWMutex
	byID    map[string]int
	results []entity.MatchResult
}

func NewMatchRepository() MatchRepository {
	return &memMatch{
		byID: make(map[string]int),
	}
}

// InsertMany - stores a batch of results under one write lock. A batch with a known ID is rejected whole.
func (that *memMatch) InsertMany(_ context.Context, results []entity.MatchResult) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	seen := make(map[string]struct{}, len(results))
	for _, result := range results {
		if _, ok := that.byID[result.ID]; ok {
			return fmt.Errorf("match %s already stored", result.ID)
		}

		if _, ok := seen[result.ID]; ok {
			return fmt.Errorf("match %s repeated in batch", result.ID)
		}

		seen[result.ID] = struct{}{}
	}

	for _, result := range results {
		that.byID[result.ID] = len(that.results)
		that.results = append(that.results, result)
	}

	return nil
}

func (that *memMatch) GetByID(_ context.Context, id string) (*entity.MatchResult, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	index, ok := that.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: match %s", apperror.ErrNotFound, id)
	}

	result := that.results[index]

	return &result, nil
}

func (that *memMatch) List(_ context.Context) []entity.MatchSummary {
	that.mu.RLock()
	defer that.mu.RUnlock()

	summaries := make([]entity.MatchSummary, 0, len(that.results))
	for i := range that.results {
		summaries = append(summaries, that.results[i].Summary())
	}

	return summaries
}

func (that *memMatch) ListByBot(_ context.Context, name string) []entity.MatchSummary {
	that.mu.RLock()
	defer that.mu.RUnlock()

	var summaries []entity.MatchSummary
	for i := range that.results {
		if that.results[i].Involves(name) {
			summaries = append(summaries, that.results[i].Summary())
		}
	}

	return summaries
}
