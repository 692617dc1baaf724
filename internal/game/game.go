package game

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rocketscienceinc/botarena/internal/apperror"
)

var (
	ErrGameNotOver    = errors.New("game is not over")
	ErrSkipNotAllowed = errors.New("skip not allowed while legal moves exist")
)

// Game owns one board, the current mover and the log of placed discs.
// It is mutated only through Play, Skip and Misplay and is immutable once over.
type Game struct {
	board *Board
	turn  Player
	moves []uint8

	misplay  bool
	offender Player
}

// New - creates a game on an edge*edge board. Black moves first.
func New(edge int) (*Game, error) {
	board, err := NewBoard(edge)
	if err != nil {
		return nil, err
	}

	return &Game{
		board: board,
		turn:  Black,
	}, nil
}

// Replay - rebuilds a game from a move log, inserting skips where the mover had no move.
func Replay(edge int, moves []uint8) (*Game, error) {
	game, err := New(edge)
	if err != nil {
		return nil, err
	}

	for i, offset := range moves {
		if len(game.LegalMoves(game.turn)) == 0 {
			if err = game.Skip(); err != nil {
				return nil, fmt.Errorf("failed to replay move %d: %w", i, err)
			}
		}

		if err = game.Play(FromOffset(offset, edge)); err != nil {
			return nil, fmt.Errorf("failed to replay move %d: %w", i, err)
		}
	}

	return game, nil
}

func (that *Game) Edge() int {
	return that.board.edge
}

func (that *Game) Board() *Board {
	return that.board
}

func (that *Game) CurrentPlayer() Player {
	return that.turn
}

// Moves - returns a copy of the placed offsets in play order.
func (that *Game) Moves() []uint8 {
	return slices.Clone(that.moves)
}

func (that *Game) LegalMoves(player Player) []Position {
	return that.board.LegalMoves(player)
}

// IsLegal - reports whether the current mover may place at pos.
func (that *Game) IsLegal(pos Position) bool {
	return len(that.board.Flips(pos, that.turn)) > 0
}

// Play - places a disc for the current mover and flips every captured run.
func (that *Game) Play(pos Position) error {
	if that.IsOver() {
		return apperror.ErrGameFinished
	}

	flipped := that.board.Flips(pos, that.turn)
	if len(flipped) == 0 {
		return fmt.Errorf("%w: %s for %s", apperror.ErrIllegalMove, pos, that.turn)
	}

	for _, flip := range flipped {
		that.board.set(flip, that.turn)
	}

	that.board.set(pos, that.turn)
	that.moves = append(that.moves, pos.Offset(that.board.edge))
	that.turn = that.turn.Opponent()

	return nil
}

// Skip - passes the turn. Allowed only when the current mover has no legal move.
func (that *Game) Skip() error {
	if that.IsOver() {
		return apperror.ErrGameFinished
	}

	if len(that.board.LegalMoves(that.turn)) > 0 {
		return ErrSkipNotAllowed
	}

	that.turn = that.turn.Opponent()

	return nil
}

// Misplay - ends the game as a forfeit by offender. Only White or Black can forfeit.
func (that *Game) Misplay(offender Player) {
	if offender != White && offender != Black {
		return
	}

	if that.IsOver() {
		return
	}

	that.misplay = true
	that.offender = offender
}

func (that *Game) IsMisplay() bool {
	return that.misplay
}

// Offender - returns the player that forfeited, NoPlayer for a clean game.
func (that *Game) Offender() Player {
	return that.offender
}

// IsOver - true after a misplay or when neither side can move.
func (that *Game) IsOver() bool {
	if that.misplay {
		return true
	}

	return len(that.board.LegalMoves(that.turn)) == 0 &&
		len(that.board.LegalMoves(that.turn.Opponent())) == 0
}

// Winner - returns the winning side, or NoPlayer for a tie.
func (that *Game) Winner() (Player, error) {
	if that.misplay {
		return that.offender.Opponent(), nil
	}

	if !that.IsOver() {
		return NoPlayer, ErrGameNotOver
	}

	white, black := that.board.Count(White), that.board.Count(Black)
	switch {
	case white > black:
		return White, nil
	case black > white:
		return Black, nil
	default:
		return NoPlayer, nil
	}
}
