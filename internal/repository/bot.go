package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rocketscienceinc/botarena/internal/apperror"
	"github.com/rocketscienceinc/botarena/internal/entity"
)

// BotRepository is the in-memory table of registered bots.
// Records are never deleted. Only ApplyResults changes a score.
type BotRepository interface {
	Create(ctx context.Context, bot *entity.BotRecord) (*entity.BotRecord, error)
	GetByName(ctx context.Context, name string) (*entity.BotRecord, error)
	Exists(ctx context.Context, name string) bool
	List(ctx context.Context) []entity.BotRecord
	Opponents(ctx context.Context, contender string) (*entity.BotRecord, []entity.BotRecord, error)
	ApplyResults(ctx context.Context, contender string, results []entity.MatchResult) ([]entity.BotRecord, error)
}

type memBot struct {
	mu      sync.RWMutex
	bots    map[string]entity.BotRecord
	nextSeq uint64
}

func NewBotRepository() BotRepository {
	return &memBot{
		bots: make(map[string]entity.BotRecord),
	}
}

// Create - stores a new bot with a zero score and the next registration sequence.
func (that *memBot) Create(_ context.Context, bot *entity.BotRecord) (*entity.BotRecord, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.bots[bot.Name]; ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrDuplicateName, bot.Name)
	}

	that.nextSeq++

	record := *bot
	record.Wins, record.Losses, record.Ties = 0, 0, 0
	record.Seq = that.nextSeq
	that.bots[record.Name] = record

	return &record, nil
}

func (that *memBot) GetByName(_ context.Context, name string) (*entity.BotRecord, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	record, ok := that.bots[name]
	if !ok {
		return nil, fmt.Errorf("%w: bot %s", apperror.ErrNotFound, name)
	}

	return &record, nil
}

func (that *memBot) Exists(_ context.Context, name string) bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	_, ok := that.bots[name]

	return ok
}

// List - returns a snapshot of every bot in registration order.
func (that *memBot) List(_ context.Context) []entity.BotRecord {
	that.mu.RLock()
	records := make([]entity.BotRecord, 0, len(that.bots))
	for _, record := range that.bots {
		records = append(records, record)
	}
	that.mu.RUnlock()

	sortBySeq(records)

	return records
}

// Opponents - snapshots the contender and every bot registered before it under one read lock.
func (that *memBot) Opponents(_ context.Context, contender string) (*entity.BotRecord, []entity.BotRecord, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	record, ok := that.bots[contender]
	if !ok {
		return nil, nil, fmt.Errorf("%w: bot %s", apperror.ErrNotFound, contender)
	}

	var opponents []entity.BotRecord
	for _, other := range that.bots {
		if other.Seq < record.Seq {
			opponents = append(opponents, other)
		}
	}

	sortBySeq(opponents)

	return &record, opponents, nil
}

// ApplyResults - scores every result of one tournament run inside a single write lock.
// Latest records are re-read under the lock so concurrent runs never lose an update.
// Nothing is written when any participant is unknown.
func (that *memBot) ApplyResults(_ context.Context, contender string, results []entity.MatchResult) ([]entity.BotRecord, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.bots[contender]; !ok {
		return nil, fmt.Errorf("%w: bot %s", apperror.ErrNotFound, contender)
	}

	touched := map[string]entity.BotRecord{}
	latest := func(name string) (entity.BotRecord, error) {
		if record, ok := touched[name]; ok {
			return record, nil
		}

		record, ok := that.bots[name]
		if !ok {
			return entity.BotRecord{}, fmt.Errorf("%w: bot %s", apperror.ErrNotFound, name)
		}

		return record, nil
	}

	for i := range results {
		result := &results[i]
		if !result.Involves(contender) {
			return nil, fmt.Errorf("match %s does not involve %s", result.ID, contender)
		}

		self, err := latest(contender)
		if err != nil {
			return nil, err
		}

		opponent, err := latest(result.Opponent(contender))
		if err != nil {
			return nil, err
		}

		switch {
		case result.IsTie():
			self.Ties++
			opponent.Ties++
		case result.Winner == contender:
			self.Wins++
			opponent.Losses++
		default:
			self.Losses++
			opponent.Wins++
		}

		touched[self.Name] = self
		touched[opponent.Name] = opponent
	}

	updated := make([]entity.BotRecord, 0, len(touched))
	for name, record := range touched {
		that.bots[name] = record
		updated = append(updated, record)
	}

	sortBySeq(updated)

	return updated, nil
}

func sortBySeq(records []entity.BotRecord) {
	slices.SortFunc(records, func(a, b entity.BotRecord) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})
}
