package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/tictactoe"
)

type SessionUseCase interface {
	CreateSession(ctx context.Context) (*entity.Session, error)
	GetState(ctx context.Context, id string) (*entity.Session, error)
	DeleteSession(ctx context.Context, id string) error

	ApplyMove(ctx context.Context, id string, cell int) (tictactoe.MoveResult, error)
	Reset(ctx context.Context, id string) (*entity.Session, error)
	NewGame(ctx context.Context, id string) (*entity.Session, error)
}

var _ SessionUseCase = (*SessionManager)(nil)

type sessionRepo interface {
	CreateOrUpdate(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

// SessionManager hosts one engine per session. Every call on a session
// runs under that session's lock, so an engine is never used concurrently.
type SessionManager struct {
	logger      *slog.Logger
	sessionRepo sessionRepo

	locksMutex sync.Mutex
	locks      map[string]*sessionLock

	now   func() time.Time
	newID func() string
}

func NewSessionManager(logger *slog.Logger, sessionRepo sessionRepo) *SessionManager {
	return &SessionManager{
		logger:      logger.With("component", "session_manager"),
		sessionRepo: sessionRepo,
		locks:       make(map[string]*sessionLock),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

func (that *SessionManager) CreateSession(ctx context.Context) (*entity.Session, error) {
	engine := tictactoe.NewEngine()

	session := &entity.Session{
		ID:        that.newID(),
		State:     engine.State(),
		UpdatedAt: that.now(),
	}

	if err := that.sessionRepo.CreateOrUpdate(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	that.logger.Info("session created", "sessionID", session.ID)

	return session, nil
}

func (that *SessionManager) GetState(ctx context.Context, id string) (*entity.Session, error) {
	session, err := that.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

func (that *SessionManager) DeleteSession(ctx context.Context, id string) error {
	unlock := that.lock(id)
	defer unlock()

	if err := that.sessionRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	that.logger.Info("session deleted", "sessionID", id)

	return nil
}

// ApplyMove returns the engine result even when the move is rejected;
// the error then wraps apperror.ErrInvalidMove.
func (that *SessionManager) ApplyMove(ctx context.Context, id string, cell int) (tictactoe.MoveResult, error) {
	log := that.logger.With("method", "ApplyMove", "sessionID", id, "cell", cell)

	unlock := that.lock(id)
	defer unlock()

	engine, err := that.loadEngine(ctx, id)
	if err != nil {
		return tictactoe.MoveResult{}, err
	}

	result := engine.ApplyMove(cell)
	if !result.Accepted {
		log.Debug("move rejected", "status", result.Status)
		return result, fmt.Errorf("%w: cell %d", apperror.ErrInvalidMove, cell)
	}

	if _, err = that.saveEngine(ctx, id, engine); err != nil {
		return tictactoe.MoveResult{}, err
	}

	if result.Status != entity.StatusActive {
		log.Info("round finished", "status", result.Status, "winner", result.Winner)
	}

	return result, nil
}

func (that *SessionManager) Reset(ctx context.Context, id string) (*entity.Session, error) {
	return that.update(ctx, id, (*tictactoe.Engine).Reset)
}

func (that *SessionManager) NewGame(ctx context.Context, id string) (*entity.Session, error) {
	return that.update(ctx, id, (*tictactoe.Engine).NewGame)
}

func (that *SessionManager) update(ctx context.Context, id string, apply func(*tictactoe.Engine) entity.GameState) (*entity.Session, error) {
	unlock := that.lock(id)
	defer unlock()

	engine, err := that.loadEngine(ctx, id)
	if err != nil {
		return nil, err
	}

	apply(engine)

	return that.saveEngine(ctx, id, engine)
}

func (that *SessionManager) loadEngine(ctx context.Context, id string) (*tictactoe.Engine, error) {
	session, err := that.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	engine, err := tictactoe.Restore(session.State)
	if err != nil {
		if errors.Is(err, apperror.ErrCorruptedState) {
			that.logger.Error("stored session is corrupted", "sessionID", id, "error", err)
		}
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	return engine, nil
}

func (that *SessionManager) saveEngine(ctx context.Context, id string, engine *tictactoe.Engine) (*entity.Session, error) {
	session := &entity.Session{
		ID:        id,
		State:     engine.State(),
		UpdatedAt: that.now(),
	}

	if err := that.sessionRepo.CreateOrUpdate(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	return session, nil
}

// sessionLock is dropped from the map once nobody holds or waits on it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (that *SessionManager) lock(id string) func() {
	that.locksMutex.Lock()
	entry, ok := that.locks[id]
	if !ok {
		entry = &sessionLock{}
		that.locks[id] = entry
	}
	entry.refs++
	that.locksMutex.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		that.locksMutex.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(that.locks, id)
		}
		that.locksMutex.Unlock()
	}
}

