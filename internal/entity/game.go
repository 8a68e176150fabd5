package entity

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
)

type Mark string

const (
	PlayerX Mark = "X"
	PlayerO Mark = "O"

	EmptyCell Mark = ""
)

type Status string

const (
	StatusActive Status = "active"
	StatusWon    Status = "won"
	StatusTied   Status = "tied"
)

const BoardSize = 9

type (
	Board        [BoardSize]Mark
	WinningCombo [3]int
)

var ErrUnknownGameStatus = errors.New("unknown game status")

// winCombos is scanned in order: rows, columns, diagonals.
var winCombos = [8]WinningCombo{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// WinCombos returns a copy of the winning line table.
func WinCombos() [8]WinningCombo {
	return winCombos
}

// Opponent returns the other player mark.
func (that Mark) Opponent() Mark {
	if that == PlayerX {
		return PlayerO
	}
	return PlayerX
}

func (that Mark) IsPlayer() bool {
	return that == PlayerX || that == PlayerO
}

// Scoreboard counts round wins per mark for the lifetime of a session.
type Scoreboard struct {
	X int `json:"x"`
	O int `json:"o"`
}

func (that *Scoreboard) Add(mark Mark) {
	switch mark {
	case PlayerX:
		that.X++
	case PlayerO:
		that.O++
	}
}

func (that Scoreboard) Get(mark Mark) int {
	switch mark {
	case PlayerX:
		return that.X
	case PlayerO:
		return that.O
	default:
		return 0
	}
}

// GameState is a value snapshot: copying it never aliases the board.
type GameState struct {
	Board        Board         `json:"board"`
	Turn         Mark          `json:"turn"`
	Status       Status        `json:"status"`
	Winner       Mark          `json:"winner,omitempty"`
	WinningCombo *WinningCombo `json:"winning_combo,omitempty"`
	Scores       Scoreboard    `json:"scores"`
}

func NewGameState() GameState {
	return GameState{
		Turn:   PlayerX,
		Status: StatusActive,
	}
}

// Clone returns a snapshot that shares no memory with the receiver.
func (that GameState) Clone() GameState {
	if that.WinningCombo != nil {
		combo := *that.WinningCombo
		that.WinningCombo = &combo
	}

	return that
}

// DetermineResult returns the first completed combo in scan order.
func (that *GameState) DetermineResult() (Mark, WinningCombo, bool) {
	for _, combo := range winCombos {
		a, b, c := that.Board[combo[0]], that.Board[combo[1]], that.Board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a, combo, true
		}
	}

	return EmptyCell, WinningCombo{}, false
}

func (that *GameState) IsFull() bool {
	for _, cell := range that.Board {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

func (that *GameState) IsActive() bool {
	return that.Status == StatusActive
}

func (that *GameState) IsTerminal() bool {
	return that.Status == StatusWon || that.Status == StatusTied
}

func (that *GameState) ConfirmActiveState() error {
	switch {
	case that.IsActive():
		return nil
	case that.IsTerminal():
		return fmt.Errorf("%w: round is %s", apperror.ErrInvalidMove, that.Status)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownGameStatus, that.Status)
	}
}

// Validate checks a snapshot loaded from outside the engine.
func (that *GameState) Validate() error {
	for i, cell := range that.Board {
		if cell != EmptyCell && !cell.IsPlayer() {
			return fmt.Errorf("%w: cell %d holds %q", apperror.ErrCorruptedState, i, cell)
		}
	}

	if that.Scores.X < 0 || that.Scores.O < 0 {
		return fmt.Errorf("%w: negative score", apperror.ErrCorruptedState)
	}

	winner, combo, hasLine := that.DetermineResult()

	switch that.Status {
	case StatusActive:
		if !that.Turn.IsPlayer() {
			return fmt.Errorf("%w: turn %q", apperror.ErrCorruptedState, that.Turn)
		}
		if hasLine {
			return fmt.Errorf("%w: active round already has line %v", apperror.ErrCorruptedState, combo)
		}
		if that.IsFull() {
			return fmt.Errorf("%w: active round with a full board", apperror.ErrCorruptedState)
		}
	case StatusWon:
		if !that.Winner.IsPlayer() || that.WinningCombo == nil {
			return fmt.Errorf("%w: won round without winner", apperror.ErrCorruptedState)
		}
		// the board must show the recorded line, first in scan order
		if !hasLine || winner != that.Winner || combo != *that.WinningCombo {
			return fmt.Errorf("%w: %s on %v does not match the board", apperror.ErrCorruptedState, that.Winner, *that.WinningCombo)
		}
	case StatusTied:
		if !that.IsFull() {
			return fmt.Errorf("%w: tied round with empty cells", apperror.ErrCorruptedState)
		}
		if hasLine {
			return fmt.Errorf("%w: tied round has line %v", apperror.ErrCorruptedState, combo)
		}
	default:
		return fmt.Errorf("%w: %w: %s", apperror.ErrCorruptedState, ErrUnknownGameStatus, that.Status)
	}

	return nil
}
