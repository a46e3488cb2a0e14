package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/coax-games/coax-api/internal/domain"
)

// Store backs the scene catalog and game records with Firestore.
// One store implements both SceneProvider and RecordStore.
type Store struct {
	client *firestore.Client
}

func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) scenesCol() *firestore.CollectionRef {
	return s.client.Collection("scenes")
}

func (s *Store) recordsCol() *firestore.CollectionRef {
	return s.client.Collection("game_records")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sceneDoc struct {
	Title              string `firestore:"title"`
	Category           string `firestore:"category"`
	Role               string `firestore:"role"`
	RoleGender         string `firestore:"role_gender"`
	AngryReason        string `firestore:"angry_reason"`
	Difficulty         string `firestore:"difficulty"`
	Status             string `firestore:"status"`
	InitialForgiveness int    `firestore:"initial_forgiveness"`
	MaxInteractions    int    `firestore:"max_interactions"`
}

type recordDoc struct {
	UserID             string    `firestore:"user_id"`
	SceneID            string    `firestore:"scene_id"`
	IsSuccess          bool      `firestore:"is_success"`
	FinalForgiveness   int       `firestore:"final_forgiveness"`
	InteractionCount   int       `firestore:"interaction_count"`
	MaxInteractions    int       `firestore:"max_interactions"`
	StartForgiveness   int       `firestore:"start_forgiveness"`
	ForgivenessChanges string    `firestore:"forgiveness_changes"` // JSON array
	DurationSeconds    int       `firestore:"duration_seconds"`
	EndedAt            time.Time `firestore:"ended_at"`
	CreatedAt          time.Time `firestore:"created_at"`
}

func (d *sceneDoc) toScene(id string) *domain.Scene {
	return &domain.Scene{
		ID:                 domain.SceneID(id),
		Title:              d.Title,
		Category:           d.Category,
		Role:               d.Role,
		RoleGender:         d.RoleGender,
		AngryReason:        d.AngryReason,
		Difficulty:         d.Difficulty,
		Status:             d.Status,
		InitialForgiveness: d.InitialForgiveness,
		MaxInteractions:    d.MaxInteractions,
	}
}

// ─────────────────────────────────────────
// SceneProvider implementation
// ─────────────────────────────────────────

func (s *Store) GetScene(ctx context.Context, id domain.SceneID) (*domain.Scene, error) {
	snap, err := s.scenesCol().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrSceneNotFound
		}
		return nil, fmt.Errorf("firestore GetScene: %w", err)
	}

	var doc sceneDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetScene decode: %w", err)
	}
	return doc.toScene(snap.Ref.ID), nil
}

func (s *Store) ListScenes(ctx context.Context, filter domain.SceneFilter) ([]*domain.Scene, error) {
	q := s.scenesCol().Query
	if filter.Category != "" {
		q = q.Where("category", "==", filter.Category)
	}
	if filter.Difficulty != "" {
		q = q.Where("difficulty", "==", filter.Difficulty)
	}
	if filter.Status != "" {
		q = q.Where("status", "==", filter.Status)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	it := q.Documents(ctx)
	defer it.Stop()

	var scenes []*domain.Scene
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListScenes: %w", err)
		}

		var doc sceneDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("firestore ListScenes decode: %w", err)
		}
		scenes = append(scenes, doc.toScene(snap.Ref.ID))
	}
	return scenes, nil
}

// ─────────────────────────────────────────
// RecordStore implementation
// ─────────────────────────────────────────

func (s *Store) SaveRecord(ctx context.Context, summary *domain.Summary) error {
	changes, err := json.Marshal(summary.ForgivenessChanges)
	if err != nil {
		return fmt.Errorf("firestore SaveRecord encode changes: %w", err)
	}

	doc := recordDoc{
		UserID:             string(summary.UserID),
		SceneID:            string(summary.SceneID),
		IsSuccess:          summary.IsSuccess,
		FinalForgiveness:   summary.FinalForgiveness,
		InteractionCount:   summary.InteractionCount,
		MaxInteractions:    summary.MaxInteractions,
		StartForgiveness:   summary.StartForgiveness,
		ForgivenessChanges: string(changes),
		DurationSeconds:    summary.DurationSeconds,
		EndedAt:            summary.EndedAt,
		CreatedAt:          time.Now(),
	}

	if _, _, err := s.recordsCol().Add(ctx, doc); err != nil {
		return fmt.Errorf("firestore SaveRecord: %w", err)
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context, userID domain.UserID, filter domain.RecordFilter) ([]*domain.Record, error) {
	q := s.recordsCol().Where("user_id", "==", string(userID))
	if filter.SceneID != "" {
		q = q.Where("scene_id", "==", string(filter.SceneID))
	}
	q = q.OrderBy("created_at", firestore.Desc)
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	it := q.Documents(ctx)
	defer it.Stop()

	var records []*domain.Record
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListRecords: %w", err)
		}

		var doc recordDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("firestore ListRecords decode: %w", err)
		}

		var changes []domain.ForgivenessChange
		if doc.ForgivenessChanges != "" {
			if err := json.Unmarshal([]byte(doc.ForgivenessChanges), &changes); err != nil {
				return nil, fmt.Errorf("firestore ListRecords decode changes: %w", err)
			}
		}

		records = append(records, &domain.Record{
			ID: snap.Ref.ID,
			Summary: domain.Summary{
				SceneID:            domain.SceneID(doc.SceneID),
				UserID:             domain.UserID(doc.UserID),
				IsSuccess:          doc.IsSuccess,
				FinalForgiveness:   doc.FinalForgiveness,
				InteractionCount:   doc.InteractionCount,
				MaxInteractions:    doc.MaxInteractions,
				StartForgiveness:   doc.StartForgiveness,
				ForgivenessChanges: changes,
				DurationSeconds:    doc.DurationSeconds,
				EndedAt:            doc.EndedAt,
			},
			CreatedAt: doc.CreatedAt,
		})
	}
	return records, nil
}
