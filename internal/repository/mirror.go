package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/botarena/internal/entity"
)

const (
	matchKeyPrefix = "match:"
	botKeyPrefix   = "bot:"
	matchListKey   = "matches"
	scoreboardKey  = "scoreboard"
)

const (
	fieldWins   = "wins"
	fieldLosses = "losses"
	fieldTies   = "ties"
)

// applyResult stores one match and scores both sides only if the match key is new,
// so a replayed or reordered publish can neither lose nor double an update.
//
// KEYS: match key, match list, white bot hash, black bot hash, scoreboard.
// ARGV: match JSON, match ID, white field, black field, white name, black name, white win, black win.
var applyResult = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
redis.call('HINCRBY', KEYS[3], ARGV[3], 1)
redis.call('HINCRBY', KEYS[4], ARGV[4], 1)
redis.call('ZINCRBY', KEYS[5], ARGV[7], ARGV[5])
redis.call('ZINCRBY', KEYS[5], ARGV[8], ARGV[6])
return 1
`)

// ResultMirror copies finished tournament runs to an external store for observers.
// The in-memory repositories stay the source of truth.
type ResultMirror interface {
	Publish(ctx context.Context, results []entity.MatchResult, bots []entity.BotRecord) error
}

type redisMirror struct {
	client *redis.Client
}

func NewResultMirror(client *redis.Client) ResultMirror {
	return &redisMirror{
		client: client,
	}
}

// Publish - writes bot metadata, then applies every result as an increment.
// Scores in Redis are built only from results, never copied from records, so runs
// publishing in any order converge on the same totals.
func (that *redisMirror) Publish(ctx context.Context, results []entity.MatchResult, bots []entity.BotRecord) error {
	if len(bots) > 0 {
		pipe := that.client.Pipeline()
		for i := range bots {
			pipe.HSet(ctx, botKeyPrefix+bots[i].Name, "name", bots[i].Name, "creator", bots[i].Creator)
		}

		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to publish bots: %w", err)
		}
	}

	for i := range results {
		if err := that.apply(ctx, &results[i]); err != nil {
			return err
		}
	}

	return nil
}

func (that *redisMirror) apply(ctx context.Context, result *entity.MatchResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}

	whiteField, blackField, whiteWin, blackWin := fieldTies, fieldTies, 0, 0
	switch result.Winner {
	case result.White:
		whiteField, blackField, whiteWin = fieldWins, fieldLosses, 1
	case result.Black:
		whiteField, blackField, blackWin = fieldLosses, fieldWins, 1
	}

	keys := []string{
		matchKeyPrefix + result.ID,
		matchListKey,
		botKeyPrefix + result.White,
		botKeyPrefix + result.Black,
		scoreboardKey,
	}

	err = applyResult.Run(ctx, that.client, keys,
		resultJSON, result.ID, whiteField, blackField, result.White, result.Black, whiteWin, blackWin,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to publish match %s: %w", result.ID, err)
	}

	return nil
}
