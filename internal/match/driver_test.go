package match

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/botarena/internal/apperror"
	"github.com/rocketscienceinc/botarena/internal/game"
	"github.com/rocketscienceinc/botarena/internal/sandbox"
	"github.com/rocketscienceinc/botarena/internal/sandbox/sandboxtest"
)

var errBroken = errors.New("broken controller")

func firstLegal() Controller {
	return ControllerFunc(func(_ context.Context, g *game.Game) (game.Position, error) {
		return g.LegalMoves(g.CurrentPlayer())[0], nil
	})
}

func newTestDriver() *Driver {
	return NewDriver(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func newWasmBot(t *testing.T, engine *sandbox.Engine, decide []byte, edge int) *sandbox.Bot {
	t.Helper()

	ctx := context.Background()
	program, err := engine.Load(ctx, sandboxtest.Bot(decide))
	require.NoError(t, err)

	bot, err := program.NewBot(ctx, edge)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = bot.Close(ctx)
	})

	return bot
}

func newTestEngine(t *testing.T) *sandbox.Engine {
	t.Helper()

	ctx := context.Background()
	engine := sandbox.NewEngine(ctx, slog.New(slog.NewJSONHandler(io.Discard, nil)), sandbox.Config{
		CallTimeout:   time.Second,
		AllocExports:  []string{sandboxtest.DefaultAlloc},
		DecideExports: []string{sandboxtest.DefaultDecide},
	})
	t.Cleanup(func() {
		_ = engine.Close(ctx)
	})

	return engine
}

func TestDriver_Play(t *testing.T) {
	ctx := context.Background()

	t.Run("First legal move self-play finishes cleanly", func(t *testing.T) {
		// Given: two controllers that always take the first legal move
		driver := newTestDriver()

		// When: they play on an 8x8 board
		result, err := driver.Play(ctx, 8, firstLegal(), firstLegal())

		// Then: the game finishes within 60 plies with at most 64 discs
		require.NoError(t, err)
		require.NoError(t, result.MisplayErr)
		g := result.Game
		require.True(t, g.IsOver())
		assert.False(t, g.IsMisplay())
		assert.LessOrEqual(t, len(g.Moves()), 60)
		assert.LessOrEqual(t, g.Board().Count(game.White)+g.Board().Count(game.Black), 64)
		_, err = g.Winner()
		require.NoError(t, err)
	})

	t.Run("Guest answering 255 forfeits immediately", func(t *testing.T) {
		for _, seat := range []game.Player{game.White, game.Black} {
			t.Run(seat.String(), func(t *testing.T) {
				// Given: a wasm bot that always answers 255 against a first-move wasm bot
				engine := newTestEngine(t)
				bad := newWasmBot(t, engine, sandboxtest.Constant(255), 8)
				good := newWasmBot(t, engine, sandboxtest.FirstMove, 8)

				white, black := Controller(good), Controller(bad)
				if seat == game.White {
					white, black = bad, good
				}

				// When: the match is played
				result, err := newTestDriver().Play(ctx, 8, white, black)

				// Then: the bad bot forfeits on its first turn and the opponent wins
				require.NoError(t, err)
				g := result.Game
				require.True(t, g.IsMisplay())
				require.ErrorIs(t, result.MisplayErr, apperror.ErrIllegalMove)
				assert.Equal(t, seat, g.Offender())

				winner, err := g.Winner()
				require.NoError(t, err)
				assert.Equal(t, seat.Opponent(), winner)

				// Black moves first, so a bad white seat sees exactly one move before forfeiting
				if seat == game.White {
					assert.Len(t, g.Moves(), 1)
				} else {
					assert.Empty(t, g.Moves())
				}
			})
		}
	})

	t.Run("Guest trap forfeits as a trap", func(t *testing.T) {
		// Given: a trapping wasm bot as black
		engine := newTestEngine(t)
		trap := newWasmBot(t, engine, sandboxtest.Trap, 8)

		// When: the match is played
		result, err := newTestDriver().Play(ctx, 8, firstLegal(), trap)

		// Then: black forfeits with a trap, not an illegal move
		require.NoError(t, err)
		require.ErrorIs(t, result.MisplayErr, apperror.ErrSandboxTrap)
		assert.NotErrorIs(t, result.MisplayErr, apperror.ErrIllegalMove)
		assert.Equal(t, game.Black, result.Game.Offender())
	})

	t.Run("On-board answers outside the legal set forfeit", func(t *testing.T) {
		// Given: a controller that answers an occupied centre cell
		occupied := ControllerFunc(func(_ context.Context, g *game.Game) (game.Position, error) {
			return game.Position{X: g.Edge() / 2, Y: g.Edge() / 2}, nil
		})

		// When: it plays black
		result, err := newTestDriver().Play(ctx, 8, firstLegal(), occupied)

		// Then: black forfeits with an illegal move
		require.NoError(t, err)
		require.ErrorIs(t, result.MisplayErr, apperror.ErrIllegalMove)
		assert.Equal(t, game.Black, result.Game.Offender())
	})

	t.Run("Controller errors forfeit", func(t *testing.T) {
		// Given: a white controller that always fails
		broken := ControllerFunc(func(context.Context, *game.Game) (game.Position, error) {
			return game.Position{}, errBroken
		})

		// When: the match is played
		result, err := newTestDriver().Play(ctx, 8, broken, firstLegal())

		// Then: white forfeits after black's opening move
		require.NoError(t, err)
		require.ErrorIs(t, result.MisplayErr, errBroken)
		assert.Equal(t, game.White, result.Game.Offender())
		assert.Len(t, result.Game.Moves(), 1)
	})

	t.Run("Two sandboxed bots play a full game", func(t *testing.T) {
		// Given: first-move and last-move wasm bots on a 12x12 board
		engine := newTestEngine(t)
		first := newWasmBot(t, engine, sandboxtest.FirstMove, 12)
		last := newWasmBot(t, engine, sandboxtest.LastMove, 12)

		// When: the match is played
		result, err := newTestDriver().Play(ctx, 12, first, last)

		// Then: the game ends naturally and its log replays to the same board
		require.NoError(t, err)
		require.NoError(t, result.MisplayErr)
		require.True(t, result.Game.IsOver())

		replayed, err := game.Replay(12, result.Game.Moves())
		require.NoError(t, err)
		assert.Equal(t, result.Game.Board().Bytes(), replayed.Board().Bytes())
		assert.True(t, replayed.IsOver())
	})

	t.Run("Error on odd board edge", func(t *testing.T) {
		// When: a match is requested on a 7x7 board
		_, err := newTestDriver().Play(ctx, 7, firstLegal(), firstLegal())

		// Then: ErrInvalidConfiguration is returned
		require.ErrorIs(t, err, apperror.ErrInvalidConfiguration)
	})

	t.Run("Error on cancelled context", func(t *testing.T) {
		// Given: a cancelled context
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		// When: a match is played
		_, err := newTestDriver().Play(cancelled, 8, firstLegal(), firstLegal())

		// Then: the cancellation is reported
		require.ErrorIs(t, err, context.Canceled)
	})
}
