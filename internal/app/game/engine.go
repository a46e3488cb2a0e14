package game

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coax-games/coax-api/internal/domain"
)

// Opening line when a scene carries neither an angry_reason nor a title.
const DefaultOpeningLine = "我现在很生气，你说说看。"

// Shown in place of a reply when the oracle is down or answers garbage.
// The turn is refunded; the user just sends again.
const OracleFallbackLine = "AI暂时不可用，请稍后再试。"

// DefaultOracleTimeout bounds a single oracle call.
const DefaultOracleTimeout = 25 * time.Second

// Engine enforces the rules of one play-through: turn budget, forgiveness
// clamping, termination priority, and the write-once session summary.
// It calls the oracle and nothing else; persistence is the caller's job.
type Engine struct {
	oracle  domain.ReplyOracle
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithOracleTimeout overrides the per-call oracle timeout.
func WithOracleTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(oracle domain.ReplyOracle, opts ...Option) *Engine {
	e := &Engine{
		oracle:  oracle,
		timeout: DefaultOracleTimeout,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init builds a fresh session for the scene. The session owns a copy of the
// scene with defaults resolved, starts at turn 0, and opens with one AI line
// stating the grievance.
func (e *Engine) Init(scene domain.Scene, userID domain.UserID) *domain.Session {
	if scene.InitialForgiveness == 0 {
		scene.InitialForgiveness = domain.DefaultInitialForgiveness
	}
	scene.InitialForgiveness = clamp(scene.InitialForgiveness, domain.MinForgiveness, domain.MaxForgiveness)
	if scene.MaxInteractions <= 0 {
		scene.MaxInteractions = domain.DefaultMaxInteractions
	}

	opening := scene.AngryReason
	if opening == "" {
		opening = scene.Title
	}
	if opening == "" {
		opening = DefaultOpeningLine
	}

	now := e.now()
	sess := &domain.Session{
		ID:               domain.SessionID(e.newID()),
		SceneID:          scene.ID,
		UserID:           userID,
		Scene:            scene,
		Forgiveness:      scene.InitialForgiveness,
		StartForgiveness: scene.InitialForgiveness,
		Turn:             0,
		MaxTurns:         scene.MaxInteractions,
		StartedAt:        now,
	}
	sess.Messages = append(sess.Messages, &domain.Message{
		ID:               domain.MessageID(e.newID()),
		Role:             domain.RoleAI,
		Text:             opening,
		ForgivenessAfter: sess.Forgiveness,
		CreatedAt:        now,
	})
	return sess
}

// Restart discards nothing itself; it simply produces a brand-new session
// for the same scene. The caller drops the old one.
func (e *Engine) Restart(scene domain.Scene, userID domain.UserID) *domain.Session {
	return e.Init(scene, userID)
}

// TurnResult is what one SubmitTurn call produced.
type TurnResult struct {
	UserMessage *domain.Message
	AIMessage   *domain.Message

	// OracleFailed marks a refunded turn: the AI message is the fixed
	// fallback line and the forgiveness meter did not move.
	OracleFailed bool

	// Outcome and Summary are set only on the terminating turn.
	Outcome *domain.Outcome
	Summary *domain.Summary
}

// SubmitTurn plays one round: append the user's line, ask the oracle, apply
// the clamped delta, then check termination in priority order (win, meter
// exhausted, budget exhausted).
//
// Empty input and a second submission while one is in flight are rejected
// without any state change. An oracle failure refunds the turn. If ctx is
// cancelled mid-call the oracle's result is discarded and the session is
// left exactly as it was.
func (e *Engine) SubmitTurn(ctx context.Context, sess *domain.Session, userText string) (*TurnResult, error) {
	if !sess.BeginTurn() {
		return nil, domain.ErrTurnInProgress
	}
	defer sess.EndTurn()

	if sess.Ended {
		return nil, domain.ErrSessionEnded
	}

	text := strings.TrimSpace(userText)
	if text == "" {
		return nil, domain.ErrEmptyInput
	}

	// Snapshot the context window before this turn's messages land.
	history := historyWindow(sess.Messages)

	userMsg := &domain.Message{
		ID:               domain.MessageID(e.newID()),
		Role:             domain.RoleUser,
		Text:             text,
		ForgivenessAfter: sess.Forgiveness,
		CreatedAt:        e.now(),
	}
	sess.Update(func() {
		sess.Messages = append(sess.Messages, userMsg)
		sess.Turn++
	})

	octx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	out, err := e.oracle.Generate(octx, domain.GenerateInput{
		Scene:       sess.Scene,
		History:     history,
		UserInput:   text,
		Forgiveness: sess.Forgiveness,
	})

	if ctx.Err() != nil {
		// Caller went away mid-turn. Roll the session back to the state
		// before this call and discard whatever the oracle said.
		sess.Update(func() {
			sess.Messages = sess.Messages[:len(sess.Messages)-1]
			sess.Turn--
		})
		return nil, ctx.Err()
	}

	if err != nil || out == nil || strings.TrimSpace(out.Reply) == "" {
		// Failed turn does not count against the budget.
		fallback := &domain.Message{
			ID:               domain.MessageID(e.newID()),
			Role:             domain.RoleAI,
			Text:             OracleFallbackLine,
			ForgivenessAfter: sess.Forgiveness,
			CreatedAt:        e.now(),
		}
		sess.Update(func() {
			sess.Turn--
			sess.Messages = append(sess.Messages, fallback)
		})
		return &TurnResult{UserMessage: userMsg, AIMessage: fallback, OracleFailed: true}, nil
	}

	delta := clamp(out.ForgivenessDelta, domain.MinDelta, domain.MaxDelta)
	applied := delta
	aiMsg := &domain.Message{
		ID:               domain.MessageID(e.newID()),
		Role:             domain.RoleAI,
		Text:             out.Reply,
		ForgivenessDelta: &applied,
		CreatedAt:        e.now(),
	}

	res := &TurnResult{UserMessage: userMsg, AIMessage: aiMsg}
	sess.Update(func() {
		sess.Forgiveness = clamp(sess.Forgiveness+delta, domain.MinForgiveness, domain.MaxForgiveness)
		aiMsg.ForgivenessAfter = sess.Forgiveness
		sess.Messages = append(sess.Messages, aiMsg)
		sess.ForgivenessChanges = append(sess.ForgivenessChanges, domain.ForgivenessChange{
			Round:  sess.Turn,
			Change: delta,
			Final:  sess.Forgiveness,
		})

		if outcome := checkResult(sess); outcome != nil {
			sess.Ended = true
			sess.Outcome = outcome
			res.Outcome = outcome
		}
	})
	if res.Outcome != nil && sess.MarkRecorded() {
		res.Summary = e.buildSummary(sess)
	}
	return res, nil
}

// checkResult decides termination after a successful turn. First match wins:
// the win check runs before the loss checks, so reaching 100 on the final
// budgeted turn is still a win.
func checkResult(sess *domain.Session) *domain.Outcome {
	switch {
	case sess.Forgiveness >= domain.MaxForgiveness:
		sess.Forgiveness = domain.MaxForgiveness
		return &domain.Outcome{Success: true}
	case sess.Forgiveness <= domain.MinForgiveness:
		sess.Forgiveness = domain.MinForgiveness
		return &domain.Outcome{Success: false, Reason: domain.ReasonForgivenessExhausted}
	case sess.Turn >= sess.MaxTurns:
		return &domain.Outcome{Success: false, Reason: domain.ReasonTurnBudgetExhausted}
	}
	return nil
}

func (e *Engine) buildSummary(sess *domain.Session) *domain.Summary {
	now := e.now()
	changes := make([]domain.ForgivenessChange, len(sess.ForgivenessChanges))
	copy(changes, sess.ForgivenessChanges)
	return &domain.Summary{
		SceneID:            sess.SceneID,
		UserID:             sess.UserID,
		IsSuccess:          sess.Outcome.Success,
		FinalForgiveness:   sess.Forgiveness,
		InteractionCount:   sess.Turn,
		MaxInteractions:    sess.MaxTurns,
		StartForgiveness:   sess.StartForgiveness,
		ForgivenessChanges: changes,
		DurationSeconds:    int(now.Sub(sess.StartedAt).Seconds()),
		EndedAt:            now,
	}
}

// historyWindow maps the most recent messages to oracle chat turns,
// oldest first.
func historyWindow(msgs []*domain.Message) []domain.ChatTurn {
	if len(msgs) > domain.HistoryWindow {
		msgs = msgs[len(msgs)-domain.HistoryWindow:]
	}
	turns := make([]domain.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == domain.RoleAI {
			role = "assistant"
		}
		turns = append(turns, domain.ChatTurn{Role: role, Content: m.Text})
	}
	return turns
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
