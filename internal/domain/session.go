package domain

import "sync"

// Message is one line in a session's timeline (user or AI).
type Message struct {
	ID   MessageID
	Role Role
	Text string

	// ForgivenessDelta is set only on AI messages produced by a successful
	// oracle turn; nil on user messages and fallback lines.
	ForgivenessDelta *int
	// ForgivenessAfter is the meter value once the delta was applied.
	ForgivenessAfter int

	CreatedAt Timestamp
}

// ForgivenessChange records how the meter moved on one round.
type ForgivenessChange struct {
	Round  int `json:"round"`
	Change int `json:"change"`
	Final  int `json:"final"`
}

// Outcome is the verdict of a finished session.
type Outcome struct {
	Success bool
	Reason  string
}

const (
	ReasonForgivenessExhausted = "forgiveness exhausted"
	ReasonTurnBudgetExhausted  = "turn budget exhausted"
)

// Session is one play-through against a scene, from load to verdict.
// It is mutated only by the game engine; a restart makes a new Session
// rather than reusing this one.
type Session struct {
	ID      SessionID
	SceneID SceneID
	UserID  UserID
	Scene   Scene // private copy of the loaded scene

	Forgiveness        int
	StartForgiveness   int
	Turn               int
	MaxTurns           int
	Messages           []*Message
	ForgivenessChanges []ForgivenessChange
	StartedAt          Timestamp

	Ended   bool
	Outcome *Outcome

	recorded bool
	turnMu   sync.Mutex
	stateMu  sync.RWMutex
}

// Update runs fn with the state write lock held, so Snapshot readers never
// observe a half-applied turn step.
func (s *Session) Update(fn func()) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	fn()
}

// Snapshot returns a deep copy of the session's visible state. The engine
// keeps mutating the live session while a turn is in flight; anything that
// serializes a session reads a snapshot instead.
func (s *Session) Snapshot() *Session {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	cp := &Session{
		ID:               s.ID,
		SceneID:          s.SceneID,
		UserID:           s.UserID,
		Scene:            s.Scene,
		Forgiveness:      s.Forgiveness,
		StartForgiveness: s.StartForgiveness,
		Turn:             s.Turn,
		MaxTurns:         s.MaxTurns,
		StartedAt:        s.StartedAt,
		Ended:            s.Ended,
	}
	cp.Messages = make([]*Message, len(s.Messages))
	for i, m := range s.Messages {
		mc := *m
		if m.ForgivenessDelta != nil {
			delta := *m.ForgivenessDelta
			mc.ForgivenessDelta = &delta
		}
		cp.Messages[i] = &mc
	}
	cp.ForgivenessChanges = append([]ForgivenessChange(nil), s.ForgivenessChanges...)
	if s.Outcome != nil {
		outcome := *s.Outcome
		cp.Outcome = &outcome
	}
	return cp
}

// BeginTurn claims the session for one in-flight turn. It reports false when
// another turn is still pending; the caller must reject, not queue.
func (s *Session) BeginTurn() bool {
	return s.turnMu.TryLock()
}

// EndTurn releases the claim taken by BeginTurn.
func (s *Session) EndTurn() {
	s.turnMu.Unlock()
}

// MarkRecorded flips the write-once summary guard. It reports true the first
// time only, so a summary can never be emitted twice for the same session.
func (s *Session) MarkRecorded() bool {
	if s.recorded {
		return false
	}
	s.recorded = true
	return true
}

// Summary is the immutable record of a finished session, handed to the
// record store exactly once.
type Summary struct {
	SceneID            SceneID
	UserID             UserID
	IsSuccess          bool
	FinalForgiveness   int
	InteractionCount   int
	MaxInteractions    int
	StartForgiveness   int
	ForgivenessChanges []ForgivenessChange
	DurationSeconds    int
	EndedAt            Timestamp
}

// Record is a persisted Summary as read back from a record store.
type Record struct {
	ID string
	Summary
	CreatedAt Timestamp
}

// RecordFilter narrows ListRecords results.
type RecordFilter struct {
	SceneID SceneID
	Limit   int
	Offset  int
}
