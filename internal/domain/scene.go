package domain

// Scene is the static configuration of one angry character: who they are,
// why they are angry, and how hard they are to appease. Loaded once, never
// mutated; every session gets its own copy.
type Scene struct {
	ID          SceneID
	Title       string
	Category    string
	Role        string
	RoleGender  string
	AngryReason string
	Difficulty  string
	Status      string // "active", "pending", ...

	// InitialForgiveness is where the meter starts, 0-100.
	// Zero means "use the default".
	InitialForgiveness int

	// MaxInteractions is the turn budget. Zero means "use the default".
	MaxInteractions int
}

// SceneFilter narrows ListScenes results.
type SceneFilter struct {
	Category   string
	Difficulty string
	Status     string
	Limit      int
	Offset     int
}
