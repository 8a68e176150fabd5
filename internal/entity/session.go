package entity

import "time"

// Session is the persisted record of one engine.
type Session struct {
	ID        string    `json:"id"`
	State     GameState `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}
