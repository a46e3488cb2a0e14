package game

import (
	"context"

	"github.com/coax-games/coax-api/internal/domain"
	"github.com/coax-games/coax-api/internal/observability"
)

// Service wires the session engine to its collaborators: the scene provider,
// the live-session registry, and the record store. The engine decides the
// game; the service moves data in and out around it.
type Service struct {
	scenes   domain.SceneProvider
	sessions domain.SessionStore
	records  domain.RecordStore
	engine   *Engine
}

func NewService(
	scenes domain.SceneProvider,
	oracle domain.ReplyOracle,
	sessions domain.SessionStore,
	records domain.RecordStore,
	opts ...Option,
) *Service {
	return &Service{
		scenes:   scenes,
		sessions: sessions,
		records:  records,
		engine:   NewEngine(oracle, opts...),
	}
}

type StartSessionInput struct {
	UserID  domain.UserID
	SceneID domain.SceneID
}

type StartSessionOutput struct {
	Session *domain.Session
}

// StartSession loads the scene and opens a fresh session against it.
func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	log := observability.LoggerFromContext(ctx).With(
		"user_id", in.UserID,
		"scene_id", in.SceneID,
	)

	scene, err := s.scenes.GetScene(ctx, in.SceneID)
	if err != nil {
		log.Error("failed to load scene", "error", err)
		return nil, err
	}

	sess := s.engine.Init(*scene, in.UserID)
	if err := s.sessions.CreateSession(sess); err != nil {
		log.Error("failed to register session", "error", err)
		return nil, err
	}

	log.Info("session started",
		"session_id", sess.ID,
		"forgiveness", sess.Forgiveness,
		"max_turns", sess.MaxTurns)

	return &StartSessionOutput{Session: sess.Snapshot()}, nil
}

type SendMessageInput struct {
	SessionID domain.SessionID
	Text      string
}

type SendMessageOutput struct {
	Session *domain.Session
	Result  *TurnResult
}

// SendMessage plays one turn. When the turn ends the session, the summary is
// handed to the record store; a persistence failure is logged and swallowed,
// since the game result is already decided.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	sess, err := s.sessions.GetSession(in.SessionID)
	if err != nil {
		return nil, err
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", sess.ID,
		"user_id", sess.UserID,
		"scene_id", sess.SceneID,
	)

	res, err := s.engine.SubmitTurn(ctx, sess, in.Text)
	if err != nil {
		log.Warn("turn rejected", "error", err)
		return nil, err
	}

	// Snapshot before anything else can claim the next turn.
	snap := sess.Snapshot()

	if res.OracleFailed {
		log.Warn("oracle failed, turn refunded", "turn", snap.Turn)
	} else {
		log.Info("turn played",
			"turn", snap.Turn,
			"forgiveness", snap.Forgiveness,
			"delta", *res.AIMessage.ForgivenessDelta)
	}

	if res.Summary != nil {
		log.Info("session ended",
			"success", res.Outcome.Success,
			"reason", res.Outcome.Reason,
			"turns", res.Summary.InteractionCount)
		if err := s.records.SaveRecord(ctx, res.Summary); err != nil {
			log.Error("failed to save game record", "error", err)
		}
	}

	return &SendMessageOutput{Session: snap, Result: res}, nil
}

type RestartSessionInput struct {
	SessionID domain.SessionID
}

type RestartSessionOutput struct {
	Session *domain.Session
}

// RestartSession replays the same scene from scratch. The old session is
// dropped from the registry; nothing carries over.
func (s *Service) RestartSession(ctx context.Context, in RestartSessionInput) (*RestartSessionOutput, error) {
	old, err := s.sessions.GetSession(in.SessionID)
	if err != nil {
		return nil, err
	}

	fresh := s.engine.Restart(old.Scene, old.UserID)
	if err := s.sessions.CreateSession(fresh); err != nil {
		return nil, err
	}
	if err := s.sessions.DeleteSession(old.ID); err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to drop old session",
			"session_id", old.ID, "error", err)
	}

	observability.LoggerFromContext(ctx).Info("session restarted",
		"old_session_id", old.ID,
		"session_id", fresh.ID,
		"scene_id", fresh.SceneID)

	return &RestartSessionOutput{Session: fresh.Snapshot()}, nil
}

// GetSession returns a snapshot of a live session with its full timeline.
// The engine may be mid-turn on the same session; callers never see the
// live mutable state.
func (s *Service) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	sess, err := s.sessions.GetSession(id)
	if err != nil {
		return nil, err
	}
	return sess.Snapshot(), nil
}

// GetScene resolves one scene.
func (s *Service) GetScene(ctx context.Context, id domain.SceneID) (*domain.Scene, error) {
	return s.scenes.GetScene(ctx, id)
}

// ListScenes returns the scene catalog, filtered.
func (s *Service) ListScenes(ctx context.Context, filter domain.SceneFilter) ([]*domain.Scene, error) {
	return s.scenes.ListScenes(ctx, filter)
}

// ListRecords returns a user's past results.
func (s *Service) ListRecords(ctx context.Context, userID domain.UserID, filter domain.RecordFilter) ([]*domain.Record, error) {
	return s.records.ListRecords(ctx, userID, filter)
}
