package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

// MoveResult is what a presentation layer reads back after ApplyMove.
type MoveResult struct {
	Accepted     bool                 `json:"accepted"`
	Board        entity.Board         `json:"board"`
	Turn         entity.Mark          `json:"turn"`
	Status       entity.Status        `json:"status"`
	Winner       entity.Mark          `json:"winner,omitempty"`
	WinningCombo *entity.WinningCombo `json:"winning_combo,omitempty"`
	Scores       entity.Scoreboard    `json:"scores"`
}

// Engine owns the state of one tic-tac-toe session.
// It is not safe for concurrent use; callers serialize access.
type Engine struct {
	state entity.GameState
}

func NewEngine() *Engine {
	return &Engine{state: entity.NewGameState()}
}

// Restore rebuilds an engine from a previously taken snapshot.
func Restore(state entity.GameState) (*Engine, error) {
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("failed to restore engine: %w", err)
	}

	return &Engine{state: state.Clone()}, nil
}

// ApplyMove places the current mark on cell. Invalid moves leave the state
// untouched and come back with Accepted set to false.
func (that *Engine) ApplyMove(cell int) MoveResult {
	if err := that.validateMove(cell); err != nil {
		return that.result(false)
	}

	mark := that.state.Turn
	that.state.Board[cell] = mark
	that.updateGameStatus(mark)

	return that.result(true)
}

// Reset starts a new round and keeps the scoreboard.
func (that *Engine) Reset() entity.GameState {
	scores := that.state.Scores

	that.state = entity.NewGameState()
	that.state.Scores = scores

	return that.State()
}

// NewGame starts a new session with zeroed scores.
func (that *Engine) NewGame() entity.GameState {
	that.state.Scores = entity.Scoreboard{}

	return that.Reset()
}

func (that *Engine) State() entity.GameState {
	return that.state.Clone()
}

// validateMove - checks if the move is valid.
func (that *Engine) validateMove(cell int) error {
	if err := that.state.ConfirmActiveState(); err != nil {
		return err
	}

	if cell < 0 || cell >= entity.BoardSize {
		return fmt.Errorf("%w: cell %d out of range", apperror.ErrInvalidMove, cell)
	}

	if that.state.Board[cell] != entity.EmptyCell {
		return fmt.Errorf("%w: cell %d is occupied", apperror.ErrInvalidMove, cell)
	}

	return nil
}

// updateGameStatus - checks the round outcome after mark was placed.
func (that *Engine) updateGameStatus(mark entity.Mark) {
	if winner, combo, ok := that.state.DetermineResult(); ok {
		that.state.Status = entity.StatusWon
		that.state.Winner = winner
		that.state.WinningCombo = &combo
		that.state.Scores.Add(winner)
		return
	}

	if that.state.IsFull() {
		that.state.Status = entity.StatusTied
		return
	}

	that.state.Turn = mark.Opponent()
}

func (that *Engine) result(accepted bool) MoveResult {
	snapshot := that.State()

	return MoveResult{
		Accepted:     accepted,
		Board:        snapshot.Board,
		Turn:         snapshot.Turn,
		Status:       snapshot.Status,
		Winner:       snapshot.Winner,
		WinningCombo: snapshot.WinningCombo,
		Scores:       snapshot.Scores,
	}
}
