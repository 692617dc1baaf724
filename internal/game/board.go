package game

import (
	"fmt"

	"github.com/rocketscienceinc/botarena/internal/apperror"
)

const (
	MinEdge = 2
	// MaxEdge keeps every offset inside a single byte.
	MaxEdge = 16
)

type direction struct {
	dx, dy int
}

// Only the four axis directions flip discs.
var directions = [4]direction{
	{0, -1},
	{0, 1},
	{-1, 0},
	{1, 0},
}

// Board is an edge*edge grid stored row-major.
type Board struct {
	edge  int
	cells []Player
}

// ValidateEdge - checks that a board edge length can be played.
func ValidateEdge(edge int) error {
	if edge%2 != 0 {
		return fmt.Errorf("%w: board edge %d is odd", apperror.ErrInvalidConfiguration, edge)
	}

	if edge < MinEdge || edge > MaxEdge {
		return fmt.Errorf("%w: board edge %d outside [%d, %d]", apperror.ErrInvalidConfiguration, edge, MinEdge, MaxEdge)
	}

	return nil
}

// NewBoard - creates a board with the four central discs in place.
func NewBoard(edge int) (*Board, error) {
	if err := ValidateEdge(edge); err != nil {
		return nil, err
	}

	board := &Board{
		edge:  edge,
		cells: make([]Player, edge*edge),
	}

	half := edge / 2
	board.set(Position{X: half - 1, Y: half - 1}, White)
	board.set(Position{X: half, Y: half - 1}, Black)
	board.set(Position{X: half - 1, Y: half}, Black)
	board.set(Position{X: half, Y: half}, White)

	return board, nil
}

func (that *Board) Edge() int {
	return that.edge
}

// At - returns the owner of a cell, NoPlayer for empty or off-board cells.
func (that *Board) At(pos Position) Player {
	if !pos.OnBoard(that.edge) {
		return NoPlayer
	}

	return that.cells[pos.X+pos.Y*that.edge]
}

// Count - returns the number of discs owned by player.
func (that *Board) Count(player Player) int {
	count := 0
	for _, cell := range that.cells {
		if cell == player {
			count++
		}
	}

	return count
}

// Occupied - returns the number of non-empty cells.
func (that *Board) Occupied() int {
	return len(that.cells) - that.Count(NoPlayer)
}

// Serialize - writes one byte per cell, row-major, into buf.
// buf must hold at least edge*edge bytes.
func (that *Board) Serialize(buf []byte) {
	for i, cell := range that.cells {
		buf[i] = cell.Code()
	}
}

// Bytes - returns a freshly allocated serialization of the board.
func (that *Board) Bytes() []byte {
	buf := make([]byte, len(that.cells))
	that.Serialize(buf)

	return buf
}

// Rows - renders the board as text, one string per row: '.' empty, 'W' white, 'B' black.
func (that *Board) Rows() []string {
	rows := make([]string, that.edge)
	for y := range that.edge {
		row := make([]byte, that.edge)
		for x := range that.edge {
			switch that.cells[x+y*that.edge] {
			case White:
				row[x] = 'W'
			case Black:
				row[x] = 'B'
			default:
				row[x] = '.'
			}
		}
		rows[y] = string(row)
	}

	return rows
}

// Flips - returns every disc that placing player at pos would flip.
// An empty result means the move is not legal.
func (that *Board) Flips(pos Position, player Player) []Position {
	if !pos.OnBoard(that.edge) || that.At(pos) != NoPlayer {
		return nil
	}

	var flipped []Position
	for _, dir := range directions {
		flipped = append(flipped, that.flipsInDirection(pos, dir, player)...)
	}

	return flipped
}

// flipsInDirection - collects the run of opposing discs next to pos.
// The run counts only when the cell right after it holds a disc of player.
func (that *Board) flipsInDirection(pos Position, dir direction, player Player) []Position {
	opponent := player.Opponent()

	var run []Position
	next := Position{X: pos.X + dir.dx, Y: pos.Y + dir.dy}
	for next.OnBoard(that.edge) && that.At(next) == opponent {
		run = append(run, next)
		next = Position{X: next.X + dir.dx, Y: next.Y + dir.dy}
	}

	if len(run) == 0 || !next.OnBoard(that.edge) || that.At(next) != player {
		return nil
	}

	return run
}

// LegalMoves - returns every legal position for player in ascending offset order.
func (that *Board) LegalMoves(player Player) []Position {
	var moves []Position
	for y := 0; y < that.edge; y++ {
		for x := 0; x < that.edge; x++ {
			pos := Position{X: x, Y: y}
			if len(that.Flips(pos, player)) > 0 {
				moves = append(moves, pos)
			}
		}
	}

	return moves
}

func (that *Board) set(pos Position, player Player) {
	that.cells[pos.X+pos.Y*that.edge] = player
}
