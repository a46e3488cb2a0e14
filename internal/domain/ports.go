package domain

import "context"

// SceneProvider resolves scene configuration.
type SceneProvider interface {
	GetScene(ctx context.Context, id SceneID) (*Scene, error)
	ListScenes(ctx context.Context, filter SceneFilter) ([]*Scene, error)
}

// ChatTurn is one history entry on the oracle wire. Role is "user" or
// "assistant", matching what chat-completion backends expect.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateInput is everything the oracle gets to see for one turn.
type GenerateInput struct {
	Scene       Scene
	History     []ChatTurn // at most HistoryWindow entries, oldest first
	UserInput   string
	Forgiveness int
}

// GenerateOutput is a well-formed oracle answer. Adapters must return an
// error instead of an output with an empty reply.
type GenerateOutput struct {
	Reply            string
	ForgivenessDelta int
}

// ReplyOracle is the AI service that plays the angry character. Any error,
// including timeouts and malformed model output, means the turn did not
// happen as far as the game is concerned.
type ReplyOracle interface {
	Generate(ctx context.Context, in GenerateInput) (*GenerateOutput, error)
}

// SessionStore is the registry of live sessions.
type SessionStore interface {
	CreateSession(session *Session) error
	GetSession(id SessionID) (*Session, error)
	DeleteSession(id SessionID) error
}

// RecordStore persists finished-session summaries and serves them back for
// the profile/history views.
type RecordStore interface {
	SaveRecord(ctx context.Context, summary *Summary) error
	ListRecords(ctx context.Context, userID UserID, filter RecordFilter) ([]*Record, error)
}
