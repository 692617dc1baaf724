package entity

import "time"

// BotRecord is a registered bot and its cumulative score.
type BotRecord struct {
	Name         string    `json:"name"`
	Creator      string    `json:"creator"`
	Payload      []byte    `json:"-"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Ties         int       `json:"ties"`
	Seq          uint64    `json:"seq"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Played - returns the number of finished matches the bot took part in.
func (that *BotRecord) Played() int {
	return that.Wins + that.Losses + that.Ties
}
