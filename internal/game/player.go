package game

import "fmt"

// Player is the owner of a disc. The zero value marks an empty cell.
type Player uint8

const (
	NoPlayer Player = 0
	White    Player = 1
	Black    Player = 2
)

// Opponent - returns the other side. NoPlayer stays NoPlayer.
func (that Player) Opponent() Player {
	switch that {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoPlayer
	}
}

// Code - is the single byte used on the sandbox wire.
func (that Player) Code() uint8 {
	return uint8(that)
}

func (that Player) String() string {
	switch that {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// Position is a cell coordinate. It is only meaningful together with a board edge.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// FromOffset - decodes a wire offset x + y*edge.
// The result may lie off the board when the offset is larger than edge*edge-1.
func FromOffset(offset uint8, edge int) Position {
	return Position{
		X: int(offset) % edge,
		Y: int(offset) / edge,
	}
}

// Offset - encodes the position as x + y*edge. The position must be on the board.
func (that Position) Offset(edge int) uint8 {
	return uint8(that.X + that.Y*edge)
}

// OnBoard - reports whether the position lies inside an edge*edge board.
func (that Position) OnBoard(edge int) bool {
	return that.X >= 0 && that.Y >= 0 && that.X < edge && that.Y < edge
}

func (that Position) String() string {
	return fmt.Sprintf("(%d,%d)", that.X, that.Y)
}
