package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errRedisDown = errors.New("redis down")

type mockSessionRepo struct {
	mock.Mock
}

func (that *mockSessionRepo) CreateOrUpdate(ctx context.Context, session *entity.Session) error {
	args := that.Called(ctx, session)
	return args.Error(0)
}

func (that *mockSessionRepo) GetByID(ctx context.Context, id string) (*entity.Session, error) {
	args := that.Called(ctx, id)
	session, _ := args.Get(0).(*entity.Session)
	return session, args.Error(1)
}

func (that *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	args := that.Called(ctx, id)
	return args.Error(0)
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(repo sessionRepo) *SessionManager {
	manager := NewSessionManager(slog.New(slog.NewTextHandler(io.Discard, nil)), repo)
	manager.now = func() time.Time { return fixedNow }
	manager.newID = func() string { return "s1" }

	return manager
}

func TestSessionManager_CreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates and stores a fresh session", func(t *testing.T) {
		// Given: a repository that accepts writes
		repo := &mockSessionRepo{}
		repo.On("CreateOrUpdate", ctx, &entity.Session{ID: "s1", State: entity.NewGameState(), UpdatedAt: fixedNow}).
			Return(nil).
			Once()
		manager := newTestManager(repo)

		// When: a session is created
		session, err := manager.CreateSession(ctx)

		// Then: it starts at the initial state
		require.NoError(t, err)
		assert.Equal(t, "s1", session.ID)
		assert.Equal(t, entity.NewGameState(), session.State)
		repo.AssertExpectations(t)
	})

	t.Run("Returns error if the repository fails", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("CreateOrUpdate", ctx, mock.AnythingOfType("*entity.Session")).
			Return(errRedisDown).
			Once()
		manager := newTestManager(repo)

		session, err := manager.CreateSession(ctx)

		require.ErrorIs(t, err, errRedisDown)
		assert.Nil(t, session)
	})
}

func TestSessionManager_ApplyMove(t *testing.T) {
	ctx := context.Background()

	t.Run("Accepted move is persisted", func(t *testing.T) {
		// Given: a stored fresh session
		repo := &mockSessionRepo{}
		repo.On("GetByID", ctx, "s1").
			Return(&entity.Session{ID: "s1", State: entity.NewGameState()}, nil).
			Once()
		repo.On("CreateOrUpdate", ctx, mock.MatchedBy(func(session *entity.Session) bool {
			return session.ID == "s1" &&
				session.State.Board[4] == entity.PlayerX &&
				session.State.Turn == entity.PlayerO
		})).
			Return(nil).
			Once()
		manager := newTestManager(repo)

		// When: X plays the center
		result, err := manager.ApplyMove(ctx, "s1", 4)

		// Then: the result is accepted and the new state is saved
		require.NoError(t, err)
		assert.True(t, result.Accepted)
		assert.Equal(t, entity.PlayerO, result.Turn)
		repo.AssertExpectations(t)
	})

	t.Run("Rejected move is reported and not persisted", func(t *testing.T) {
		// Given: a session where cell 0 is taken
		state := entity.NewGameState()
		state.Board[0] = entity.PlayerX
		state.Turn = entity.PlayerO

		repo := &mockSessionRepo{}
		repo.On("GetByID", ctx, "s1").
			Return(&entity.Session{ID: "s1", State: state}, nil).
			Once()
		manager := newTestManager(repo)

		// When: cell 0 is played again
		result, err := manager.ApplyMove(ctx, "s1", 0)

		// Then: ErrInvalidMove is returned with the unchanged result
		require.ErrorIs(t, err, apperror.ErrInvalidMove)
		assert.False(t, result.Accepted)
		assert.Equal(t, state.Board, result.Board)
		repo.AssertNotCalled(t, "CreateOrUpdate", mock.Anything, mock.Anything)
	})

	t.Run("Unknown session", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("GetByID", ctx, "missing").
			Return(nil, apperror.ErrSessionNotFound).
			Once()
		manager := newTestManager(repo)

		_, err := manager.ApplyMove(ctx, "missing", 0)

		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
	})

	t.Run("Corrupted stored state", func(t *testing.T) {
		state := entity.NewGameState()
		state.Status = "broken"

		repo := &mockSessionRepo{}
		repo.On("GetByID", ctx, "s1").
			Return(&entity.Session{ID: "s1", State: state}, nil).
			Once()
		manager := newTestManager(repo)

		_, err := manager.ApplyMove(ctx, "s1", 0)

		require.ErrorIs(t, err, apperror.ErrCorruptedState)
	})

	t.Run("Returns error if saving fails", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("GetByID", ctx, "s1").
			Return(&entity.Session{ID: "s1", State: entity.NewGameState()}, nil).
			Once()
		repo.On("CreateOrUpdate", ctx, mock.AnythingOfType("*entity.Session")).
			Return(errRedisDown).
			Once()
		manager := newTestManager(repo)

		_, err := manager.ApplyMove(ctx, "s1", 0)

		require.ErrorIs(t, err, errRedisDown)
	})
}

func TestSessionManager_RoundLifecycle(t *testing.T) {
	ctx := context.Background()

	// Given: a manager backed by the in-memory repository
	manager := newTestManager(repository.NewMemorySessionRepository())

	session, err := manager.CreateSession(ctx)
	require.NoError(t, err)

	// When: X wins the first round
	for _, cell := range []int{0, 3, 1, 4} {
		_, err = manager.ApplyMove(ctx, session.ID, cell)
		require.NoError(t, err)
	}

	result, err := manager.ApplyMove(ctx, session.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, result.WinningCombo)
	assert.Equal(t, entity.StatusWon, result.Status)
	assert.Equal(t, entity.WinningCombo{0, 1, 2}, *result.WinningCombo)

	// Then: further moves are rejected until reset
	_, err = manager.ApplyMove(ctx, session.ID, 8)
	require.ErrorIs(t, err, apperror.ErrInvalidMove)

	// When: the round is reset
	reset, err := manager.Reset(ctx, session.ID)
	require.NoError(t, err)

	// Then: the board is cleared and the score is kept
	assert.Equal(t, entity.Board{}, reset.State.Board)
	assert.Equal(t, entity.Scoreboard{X: 1}, reset.State.Scores)

	stored, err := manager.GetState(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, reset.State, stored.State)

	// When: a new game starts
	fresh, err := manager.NewGame(ctx, session.ID)
	require.NoError(t, err)

	// Then: the score is zeroed
	assert.Equal(t, entity.NewGameState(), fresh.State)

	// When: the session is deleted
	require.NoError(t, manager.DeleteSession(ctx, session.ID))

	// Then: it can no longer be played
	_, err = manager.ApplyMove(ctx, session.ID, 0)
	require.ErrorIs(t, err, apperror.ErrSessionNotFound)
}

func TestSessionManager_ConcurrentMoves(t *testing.T) {
	ctx := context.Background()

	// Given: one session
	manager := newTestManager(repository.NewMemorySessionRepository())
	session, err := manager.CreateSession(ctx)
	require.NoError(t, err)

	// When: two clients race for the same cell
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if _, moveErr := manager.ApplyMove(ctx, session.ID, 4); moveErr == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	// Then: exactly one move wins the race
	assert.Equal(t, 1, accepted)
	assert.Empty(t, manager.locks)

	stored, err := manager.GetState(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PlayerX, stored.State.Board[4])
	assert.Equal(t, entity.PlayerO, stored.State.Turn)
}

func TestSessionManager_LocksAreReleased(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown sessions leave no lock behind", func(t *testing.T) {
		// Given: a manager with no sessions
		manager := newTestManager(repository.NewMemorySessionRepository())

		// When: many requests name sessions that do not exist
		for i := range 1000 {
			id := fmt.Sprintf("unknown-%d", i)

			_, err := manager.ApplyMove(ctx, id, 0)
			require.ErrorIs(t, err, apperror.ErrSessionNotFound)

			_, err = manager.Reset(ctx, id)
			require.ErrorIs(t, err, apperror.ErrSessionNotFound)

			_, err = manager.NewGame(ctx, id)
			require.ErrorIs(t, err, apperror.ErrSessionNotFound)
		}

		// Then: the lock table is empty
		assert.Empty(t, manager.locks)
	})

	t.Run("Finished calls on a live session release the lock", func(t *testing.T) {
		manager := newTestManager(repository.NewMemorySessionRepository())
		session, err := manager.CreateSession(ctx)
		require.NoError(t, err)

		_, err = manager.ApplyMove(ctx, session.ID, 4)
		require.NoError(t, err)
		_, err = manager.ApplyMove(ctx, session.ID, 4)
		require.ErrorIs(t, err, apperror.ErrInvalidMove)

		assert.Empty(t, manager.locks)
	})
}

func TestSessionManager_ResetReturnsStoredSession(t *testing.T) {
	ctx := context.Background()

	// Given: a clock that advances on every read
	clock := fixedNow
	repo := &mockSessionRepo{}
	repo.On("GetByID", ctx, "s1").
		Return(&entity.Session{ID: "s1", State: entity.NewGameState()}, nil).
		Once()

	var stored *entity.Session
	repo.On("CreateOrUpdate", ctx, mock.AnythingOfType("*entity.Session")).
		Run(func(args mock.Arguments) {
			stored, _ = args.Get(1).(*entity.Session)
		}).
		Return(nil).
		Once()

	manager := newTestManager(repo)
	manager.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	// When: the round is reset
	session, err := manager.Reset(ctx, "s1")

	// Then: the caller sees exactly what was persisted
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, stored, session)
	repo.AssertExpectations(t)
}
