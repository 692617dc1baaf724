// Package match drives a single game between two move-supplying controllers.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/botarena/internal/apperror"
	"github.com/rocketscienceinc/botarena/internal/game"
)

var errStalled = errors.New("both players are out of moves after a skip")

// Controller supplies moves for one seat. Its answers are untrusted.
type Controller interface {
	Propose(ctx context.Context, g *game.Game) (game.Position, error)
}

// ControllerFunc adapts a plain function to a Controller.
type ControllerFunc func(ctx context.Context, g *game.Game) (game.Position, error)

func (f ControllerFunc) Propose(ctx context.Context, g *game.Game) (game.Position, error) {
	return f(ctx, g)
}

// Result is a finished game and, for a forfeit, the reason for it.
type Result struct {
	Game *game.Game
	// MisplayErr wraps apperror.ErrSandboxTrap or apperror.ErrIllegalMove for a forfeit, nil otherwise.
	MisplayErr error
}

type Driver struct {
	logger *slog.Logger
}

func NewDriver(logger *slog.Logger) *Driver {
	return &Driver{
		logger: logger.With("component", "match"),
	}
}

// Play - runs a game on an edge*edge board until it is over or a controller misplays.
// Errors are returned only for an unplayable edge or a cancelled context.
func (that *Driver) Play(ctx context.Context, edge int, white, black Controller) (*Result, error) {
	log := that.logger.With("method", "Play", "edge", edge)

	g, err := game.New(edge)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	controllers := map[game.Player]Controller{
		game.White: white,
		game.Black: black,
	}

	for !g.IsOver() {
		if err = ctx.Err(); err != nil {
			return nil, fmt.Errorf("match aborted: %w", err)
		}

		mover := g.CurrentPlayer()
		if len(g.LegalMoves(mover)) == 0 {
			if err = g.Skip(); err != nil {
				return nil, fmt.Errorf("failed to skip: %w", err)
			}

			if len(g.LegalMoves(g.CurrentPlayer())) == 0 {
				return nil, errStalled
			}

			continue
		}

		pos, err := controllers[mover].Propose(ctx, g)
		if err == nil {
			err = validate(g, pos)
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("match aborted: %w", ctxErr)
			}

			log.Debug("controller misplayed", "player", mover.String(), "error", err)
			g.Misplay(mover)

			return &Result{Game: g, MisplayErr: err}, nil
		}

		if err = g.Play(pos); err != nil {
			return nil, fmt.Errorf("failed to play validated move: %w", err)
		}
	}

	return &Result{Game: g}, nil
}

// validate - rejects positions that are off the board or not in the legal move set.
func validate(g *game.Game, pos game.Position) error {
	if !pos.OnBoard(g.Edge()) {
		return fmt.Errorf("%w: %s is off a %dx%d board", apperror.ErrIllegalMove, pos, g.Edge(), g.Edge())
	}

	if !g.IsLegal(pos) {
		return fmt.Errorf("%w: %s is not a legal move for %s", apperror.ErrIllegalMove, pos, g.CurrentPlayer())
	}

	return nil
}
