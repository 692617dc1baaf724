package entity

import (
	"encoding/json"
	"time"
)

// WinnerTie is stored as the winner of a drawn match. Bot names can never equal it.
const WinnerTie = "-"

// MoveLog is the list of placed offsets. It encodes as a JSON array of numbers.
type MoveLog []uint8

func (that MoveLog) MarshalJSON() ([]byte, error) {
	values := make([]int, len(that))
	for i, v := range that {
		values[i] = int(v)
	}

	return json.Marshal(values)
}

func (that *MoveLog) UnmarshalJSON(data []byte) error {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}

	moves := make(MoveLog, len(values))
	for i, v := range values {
		moves[i] = uint8(v)
	}
	*that = moves

	return nil
}

// MatchResult is one finished game between two bots. It never changes after creation.
type MatchResult struct {
	ID            string    `json:"id"`
	White         string    `json:"white_player"`
	Black         string    `json:"black_player"`
	BoardSize     int       `json:"board_size"`
	Winner        string    `json:"winner"`
	Moves         MoveLog   `json:"moves"`
	Misplay       bool      `json:"misplay"`
	MisplayReason string    `json:"misplay_reason,omitempty"`
	FinishedAt    time.Time `json:"finished_at"`
}

// MatchSummary is the list view of a MatchResult.
type MatchSummary struct {
	ID        string `json:"id"`
	White     string `json:"white_player"`
	Black     string `json:"black_player"`
	Winner    string `json:"winner"`
	BoardSize int    `json:"board_size"`
	Misplay   bool   `json:"misplay"`
}

func (that *MatchResult) IsTie() bool {
	return that.Winner == WinnerTie
}

// Loser - returns the losing participant, empty for a tie.
func (that *MatchResult) Loser() string {
	switch that.Winner {
	case that.White:
		return that.Black
	case that.Black:
		return that.White
	default:
		return ""
	}
}

// Opponent - returns the participant other than name.
func (that *MatchResult) Opponent(name string) string {
	if that.White == name {
		return that.Black
	}

	return that.White
}

// Involves - reports whether name played in the match.
func (that *MatchResult) Involves(name string) bool {
	return that.White == name || that.Black == name
}

func (that *MatchResult) Summary() MatchSummary {
	return MatchSummary{
		ID:        that.ID,
		White:     that.White,
		Black:     that.Black,
		Winner:    that.Winner,
		BoardSize: that.BoardSize,
		Misplay:   that.Misplay,
	}
}
