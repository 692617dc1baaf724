package repository

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/botarena/internal/entity"
	"github.com/rocketscienceinc/botarena/testing/suite"
)

func TestResultMirror_Publish(t *testing.T) {
	ctx, st := suite.New(t)

	mirror := NewResultMirror(st.Storage)

	// Given: a finished run and the records it touched
	results := []entity.MatchResult{
		{ID: "m1", White: "c", Black: "a", BoardSize: 8, Winner: "c", Moves: entity.MoveLog{19, 18}},
		{ID: "m2", White: "a", Black: "c", BoardSize: 8, Winner: entity.WinnerTie},
	}
	bots := []entity.BotRecord{
		{Name: "a", Creator: "ann", Ties: 1, Losses: 1, Payload: []byte{0x00, 0x61}},
		{Name: "c", Creator: "cat", Wins: 1, Ties: 1},
	}

	// When: the run is published
	err := mirror.Publish(ctx, results, bots)

	// Then: matches are stored in order and readable as JSON
	require.NoError(t, err)

	ids, err := st.Storage.LRange(ctx, matchListKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)

	raw, err := st.Storage.Get(ctx, matchKeyPrefix+"m1").Result()
	require.NoError(t, err)
	var stored entity.MatchResult
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, results[0].Moves, stored.Moves)

	// Then: bot hashes hold metadata and counters, never the payload
	botA, err := st.Storage.HGetAll(ctx, botKeyPrefix+"a").Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "a", "creator": "ann", "losses": "1", "ties": "1"}, botA)

	// Then: the scoreboard ranks by wins
	top, err := st.Storage.ZRevRange(ctx, scoreboardKey, 0, 0).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, top)
}

func TestResultMirror_OverlappingRunsPublishOutOfOrder(t *testing.T) {
	ctx, st := suite.New(t)

	mirror := NewResultMirror(st.Storage)

	// Given: two runs that both involve A; the run for B scored the registry first
	runB := []entity.MatchResult{
		{ID: "b1", White: "B", Black: "A", BoardSize: 6, Winner: "A"},
		{ID: "b2", White: "A", Black: "B", BoardSize: 6, Winner: "A"},
	}
	runC := []entity.MatchResult{
		{ID: "c1", White: "C", Black: "A", BoardSize: 4, Winner: "C"},
		{ID: "c2", White: "A", Black: "C", BoardSize: 4, Winner: entity.WinnerTie},
	}
	afterB := []entity.BotRecord{{Name: "A", Wins: 2}, {Name: "B", Losses: 2}}
	afterC := []entity.BotRecord{{Name: "A", Wins: 2, Losses: 1, Ties: 1}, {Name: "C", Wins: 1, Ties: 1}}

	// When: the later run publishes first and the earlier run publishes last with its older record of A
	require.NoError(t, mirror.Publish(ctx, runC, afterC))
	require.NoError(t, mirror.Publish(ctx, runB, afterB))

	// Then: A's counters include both runs
	botA, err := st.Storage.HGetAll(ctx, botKeyPrefix+"A").Result()
	require.NoError(t, err)
	assert.Equal(t, "2", botA["wins"])
	assert.Equal(t, "1", botA["losses"])
	assert.Equal(t, "1", botA["ties"])

	score, err := st.Storage.ZScore(ctx, scoreboardKey, "A").Result()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, score, 0)

	// When: a run is published again
	require.NoError(t, mirror.Publish(ctx, runB, afterB))

	// Then: its matches are not counted twice
	botB, err := st.Storage.HGetAll(ctx, botKeyPrefix+"B").Result()
	require.NoError(t, err)
	assert.Equal(t, "2", botB["losses"])

	ids, err := st.Storage.LRange(ctx, matchListKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "b1", "b2"}, ids)
}
