package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

// handleConnect resumes the given session or opens a new one.
func (that *Server) handleConnect(ctx context.Context, msg *Message, conn *connection) error {
	log := that.logger.With("method", "handleConnect")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return conn.sendError(msg.Action, "invalid payload")
	}

	var session *entity.Session
	if payloadReq.SessionID != "" {
		session, err = that.sessions.GetState(ctx, payloadReq.SessionID)
	}

	if payloadReq.SessionID == "" || errors.Is(err, apperror.ErrSessionNotFound) {
		session, err = that.sessions.CreateSession(ctx)
	}

	if err != nil {
		log.Error("failed to connect session", "error", err)
		return that.sendFailure(conn, msg.Action, err)
	}

	log.Info("session connected", "sessionID", session.ID)

	return conn.sendMessage(msg.Action, ResponsePayload{Session: session})
}

func (that *Server) handleState(ctx context.Context, msg *Message, conn *connection) error {
	payloadReq, err := decodePayload(msg)
	if err != nil || payloadReq.SessionID == "" {
		return conn.sendError(msg.Action, "session_id is required")
	}

	session, err := that.sessions.GetState(ctx, payloadReq.SessionID)
	if err != nil {
		return that.sendFailure(conn, msg.Action, err)
	}

	return conn.sendMessage(msg.Action, ResponsePayload{Session: session})
}

func (that *Server) handleMove(ctx context.Context, msg *Message, conn *connection) error {
	payloadReq, err := decodePayload(msg)
	if err != nil || payloadReq.SessionID == "" || payloadReq.Cell == nil {
		return conn.sendError(msg.Action, "session_id and cell are required")
	}

	result, err := that.sessions.ApplyMove(ctx, payloadReq.SessionID, *payloadReq.Cell)
	if errors.Is(err, apperror.ErrInvalidMove) {
		return conn.sendMessage(msg.Action, ResponsePayload{Move: &result, Error: apperror.ErrInvalidMove.Error()})
	}

	if err != nil {
		return that.sendFailure(conn, msg.Action, err)
	}

	return conn.sendMessage(msg.Action, ResponsePayload{Move: &result})
}

func (that *Server) handleReset(ctx context.Context, msg *Message, conn *connection) error {
	return that.handleLifecycle(ctx, msg, conn, that.sessions.Reset)
}

func (that *Server) handleNewGame(ctx context.Context, msg *Message, conn *connection) error {
	return that.handleLifecycle(ctx, msg, conn, that.sessions.NewGame)
}

func (that *Server) handleLifecycle(
	ctx context.Context,
	msg *Message,
	conn *connection,
	apply func(ctx context.Context, id string) (*entity.Session, error),
) error {
	payloadReq, err := decodePayload(msg)
	if err != nil || payloadReq.SessionID == "" {
		return conn.sendError(msg.Action, "session_id is required")
	}

	session, err := apply(ctx, payloadReq.SessionID)
	if err != nil {
		return that.sendFailure(conn, msg.Action, err)
	}

	return conn.sendMessage(msg.Action, ResponsePayload{Session: session})
}

// sendFailure reports err to the client without leaking internals.
func (that *Server) sendFailure(conn *connection, action string, err error) error {
	if errors.Is(err, apperror.ErrSessionNotFound) {
		return conn.sendError(action, apperror.ErrSessionNotFound.Error())
	}

	that.logger.Error("request failed", "action", action, "error", err)

	if sendErr := conn.sendError(action, "internal error"); sendErr != nil {
		return fmt.Errorf("failed to send error response: %w", sendErr)
	}

	return nil
}

func decodePayload(msg *Message) (RequestPayload, error) {
	var payload RequestPayload
	if len(msg.Payload) == 0 {
		return payload, nil
	}

	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return payload, nil
}
