package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coax-games/coax-api/internal/app/game"
	"github.com/coax-games/coax-api/internal/domain"
)

type Server struct {
	svc *game.Service
}

func NewServer(svc *game.Service) http.Handler {
	s := &Server{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	// /scenes        → GET: list catalog
	// /scenes/{id}   → GET: one scene
	mux.HandleFunc("/scenes", s.handleScenes)
	mux.HandleFunc("/scenes/", s.handleSceneWithID)

	// /sessions                 → POST: start a session
	// /sessions/{id}            → GET: session + timeline
	// /sessions/{id}/messages   → POST: play one turn
	// /sessions/{id}/restart    → POST: same scene, fresh session
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	// /records → GET: a user's past results
	mux.HandleFunc("/records", s.handleRecords)

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type sceneResponse struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Category           string `json:"category"`
	Role               string `json:"role"`
	RoleGender         string `json:"role_gender,omitempty"`
	AngryReason        string `json:"angry_reason"`
	Difficulty         string `json:"difficulty"`
	Status             string `json:"status"`
	InitialForgiveness int    `json:"initial_forgiveness"`
	MaxInteractions    int    `json:"max_interactions"`
}

type messageResponse struct {
	ID               string    `json:"id"`
	Role             string    `json:"role"`
	Text             string    `json:"text"`
	ForgivenessDelta *int      `json:"forgiveness_delta,omitempty"`
	ForgivenessAfter int       `json:"forgiveness_after"`
	CreatedAt        time.Time `json:"created_at"`
}

type outcomeResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type sessionResponse struct {
	ID               string            `json:"id"`
	SceneID          string            `json:"scene_id"`
	UserID           string            `json:"user_id"`
	Forgiveness      int               `json:"forgiveness"`
	StartForgiveness int               `json:"start_forgiveness"`
	Turn             int               `json:"turn"`
	MaxTurns         int               `json:"max_turns"`
	Ended            bool              `json:"ended"`
	Outcome          *outcomeResponse  `json:"outcome,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	Messages         []messageResponse `json:"messages"`
}

type summaryResponse struct {
	SceneID            string                     `json:"scene_id"`
	UserID             string                     `json:"user_id"`
	IsSuccess          bool                       `json:"is_success"`
	FinalForgiveness   int                        `json:"final_forgiveness"`
	InteractionCount   int                        `json:"interaction_count"`
	MaxInteractions    int                        `json:"max_interactions"`
	StartForgiveness   int                        `json:"start_forgiveness"`
	ForgivenessChanges []domain.ForgivenessChange `json:"forgiveness_changes"`
	DurationSeconds    int                        `json:"duration_seconds"`
	EndedAt            time.Time                  `json:"ended_at"`
}

type recordResponse struct {
	ID string `json:"id"`
	summaryResponse
	CreatedAt time.Time `json:"created_at"`
}

type startSessionRequest struct {
	UserID  string `json:"user_id"`
	SceneID string `json:"scene_id"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	UserMessage  messageResponse  `json:"user_message"`
	AIMessage    messageResponse  `json:"ai_message"`
	OracleFailed bool             `json:"oracle_failed,omitempty"`
	Forgiveness  int              `json:"forgiveness"`
	Turn         int              `json:"turn"`
	MaxTurns     int              `json:"max_turns"`
	Ended        bool             `json:"ended"`
	Outcome      *outcomeResponse `json:"outcome,omitempty"`
	Summary      *summaryResponse `json:"summary,omitempty"`
}

// ─────────────────────────────────────────────
// Routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.handleListScenes(w, r)
}

func (s *Server) handleSceneWithID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/scenes/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.handleGetScene(w, r, domain.SceneID(id))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleStartSession(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := domain.SessionID(parts[0])
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetSession(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "messages":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			s.handleSendMessage(w, r, id)
			return
		case "restart":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			s.handleRestartSession(w, r, id)
			return
		}
	}

	http.NotFound(w, r)
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.SceneFilter{
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
		Status:     q.Get("status"),
		Limit:      intQuery(q.Get("limit"), 50),
		Offset:     intQuery(q.Get("offset"), 0),
	}
	if filter.Status == "" {
		filter.Status = "active"
	}

	scenes, err := s.svc.ListScenes(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]sceneResponse, 0, len(scenes))
	for _, sc := range scenes {
		out = append(out, toSceneResponse(sc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenes": out})
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request, id domain.SceneID) {
	scene, err := s.svc.GetScene(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSceneResponse(scene))
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}
	if req.SceneID == "" {
		badRequest(w, "scene_id is required")
		return
	}

	out, err := s.svc.StartSession(r.Context(), game.StartSessionInput{
		UserID:  domain.UserID(req.UserID),
		SceneID: domain.SceneID(req.SceneID),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(out.Session))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	sess, err := s.svc.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	out, err := s.svc.SendMessage(r.Context(), game.SendMessageInput{
		SessionID: id,
		Text:      req.Text,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := sendMessageResponse{
		UserMessage:  toMessageResponse(out.Result.UserMessage),
		AIMessage:    toMessageResponse(out.Result.AIMessage),
		OracleFailed: out.Result.OracleFailed,
		Forgiveness:  out.Session.Forgiveness,
		Turn:         out.Session.Turn,
		MaxTurns:     out.Session.MaxTurns,
		Ended:        out.Session.Ended,
	}
	if out.Result.Outcome != nil {
		resp.Outcome = &outcomeResponse{
			Success: out.Result.Outcome.Success,
			Reason:  out.Result.Outcome.Reason,
		}
	}
	if out.Result.Summary != nil {
		sum := toSummaryResponse(out.Result.Summary)
		resp.Summary = &sum
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRestartSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	out, err := s.svc.RestartSession(r.Context(), game.RestartSessionInput{SessionID: id})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(out.Session))
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		badRequest(w, "user_id is required")
		return
	}

	records, err := s.svc.ListRecords(r.Context(), domain.UserID(userID), domain.RecordFilter{
		SceneID: domain.SceneID(q.Get("scene_id")),
		Limit:   intQuery(q.Get("limit"), 50),
		Offset:  intQuery(q.Get("offset"), 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, recordResponse{
			ID:              rec.ID,
			summaryResponse: toSummaryResponse(&rec.Summary),
			CreatedAt:       rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

// ─────────────────────────────────────────────
// Response helpers
// ─────────────────────────────────────────────

func toSceneResponse(sc *domain.Scene) sceneResponse {
	return sceneResponse{
		ID:                 string(sc.ID),
		Title:              sc.Title,
		Category:           sc.Category,
		Role:               sc.Role,
		RoleGender:         sc.RoleGender,
		AngryReason:        sc.AngryReason,
		Difficulty:         sc.Difficulty,
		Status:             sc.Status,
		InitialForgiveness: sc.InitialForgiveness,
		MaxInteractions:    sc.MaxInteractions,
	}
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:               string(m.ID),
		Role:             string(m.Role),
		Text:             m.Text,
		ForgivenessDelta: m.ForgivenessDelta,
		ForgivenessAfter: m.ForgivenessAfter,
		CreatedAt:        m.CreatedAt,
	}
}

func toSessionResponse(sess *domain.Session) sessionResponse {
	msgs := make([]messageResponse, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		msgs = append(msgs, toMessageResponse(m))
	}

	resp := sessionResponse{
		ID:               string(sess.ID),
		SceneID:          string(sess.SceneID),
		UserID:           string(sess.UserID),
		Forgiveness:      sess.Forgiveness,
		StartForgiveness: sess.StartForgiveness,
		Turn:             sess.Turn,
		MaxTurns:         sess.MaxTurns,
		Ended:            sess.Ended,
		StartedAt:        sess.StartedAt,
		Messages:         msgs,
	}
	if sess.Outcome != nil {
		resp.Outcome = &outcomeResponse{
			Success: sess.Outcome.Success,
			Reason:  sess.Outcome.Reason,
		}
	}
	return resp
}

func toSummaryResponse(sum *domain.Summary) summaryResponse {
	return summaryResponse{
		SceneID:            string(sum.SceneID),
		UserID:             string(sum.UserID),
		IsSuccess:          sum.IsSuccess,
		FinalForgiveness:   sum.FinalForgiveness,
		InteractionCount:   sum.InteractionCount,
		MaxInteractions:    sum.MaxInteractions,
		StartForgiveness:   sum.StartForgiveness,
		ForgivenessChanges: sum.ForgivenessChanges,
		DurationSeconds:    sum.DurationSeconds,
		EndedAt:            sum.EndedAt,
	}
}

func intQuery(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// ─────────────────────────────────────────────
// HTTP helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSceneNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrEmptyInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrSessionEnded),
		errors.Is(err, domain.ErrTurnInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
