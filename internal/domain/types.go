package domain

import "time"

type SceneID string
type SessionID string
type UserID string
type MessageID string

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Forgiveness scale. 100 wins the round, 0 loses it.
const (
	MinForgiveness = 0
	MaxForgiveness = 100
)

// Per-turn delta bounds. Enforced at the oracle boundary and again by the
// engine, so an out-of-range model answer can never break the scale.
const (
	MinDelta = -50
	MaxDelta = 30
)

// Fallbacks for scenes that omit the tuning fields.
const (
	DefaultInitialForgiveness = 20
	DefaultMaxInteractions    = 10
)

// HistoryWindow is how many recent messages are handed to the oracle.
// Older messages are silently dropped.
const HistoryWindow = 10

type Timestamp = time.Time
