package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/tictactoe"
)

const (
	actionConnect = "session:connect"
	actionState   = "game:state"
	actionMove    = "game:move"
	actionReset   = "game:reset"
	actionNewGame = "game:new"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type RequestPayload struct {
	SessionID string `json:"session_id,omitempty"`
	Cell      *int   `json:"cell,omitempty"`
}

type ResponsePayload struct {
	Session *entity.Session       `json:"session,omitempty"`
	Move    *tictactoe.MoveResult `json:"move,omitempty"`
	Error   string                `json:"error,omitempty"`
}
