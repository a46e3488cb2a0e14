package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/coax-games/coax-api/internal/domain"
)

// SceneStore is an in-memory scene catalog, optionally seeded from a YAML
// file. Scenes keep their load order for listing.
type SceneStore struct {
	mu     sync.RWMutex
	order  []domain.SceneID
	scenes map[domain.SceneID]domain.Scene
}

func NewSceneStore() *SceneStore {
	return &SceneStore{
		scenes: make(map[domain.SceneID]domain.Scene),
	}
}

type sceneFile struct {
	Scenes []sceneEntry `yaml:"scenes"`
}

type sceneEntry struct {
	ID                 string `yaml:"id"`
	Title              string `yaml:"title"`
	Category           string `yaml:"category"`
	Role               string `yaml:"role"`
	RoleGender         string `yaml:"role_gender"`
	AngryReason        string `yaml:"angry_reason"`
	Difficulty         string `yaml:"difficulty"`
	Status             string `yaml:"status"`
	InitialForgiveness int    `yaml:"initial_forgiveness"`
	MaxInteractions    int    `yaml:"max_interactions"`
}

// LoadSceneStore reads a YAML scene catalog.
func LoadSceneStore(path string) (*SceneStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene catalog: %w", err)
	}

	var file sceneFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing scene catalog: %w", err)
	}

	store := NewSceneStore()
	for _, e := range file.Scenes {
		if e.ID == "" {
			return nil, fmt.Errorf("scene catalog entry without id (title=%q)", e.Title)
		}
		status := e.Status
		if status == "" {
			status = "active"
		}
		store.AddScene(domain.Scene{
			ID:                 domain.SceneID(e.ID),
			Title:              e.Title,
			Category:           e.Category,
			Role:               e.Role,
			RoleGender:         e.RoleGender,
			AngryReason:        e.AngryReason,
			Difficulty:         e.Difficulty,
			Status:             status,
			InitialForgiveness: e.InitialForgiveness,
			MaxInteractions:    e.MaxInteractions,
		})
	}
	return store, nil
}

// AddScene inserts or replaces a scene.
func (s *SceneStore) AddScene(scene domain.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.scenes[scene.ID]; !exists {
		s.order = append(s.order, scene.ID)
	}
	s.scenes[scene.ID] = scene
}

func (s *SceneStore) GetScene(_ context.Context, id domain.SceneID) (*domain.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scene, ok := s.scenes[id]
	if !ok {
		return nil, domain.ErrSceneNotFound
	}
	return &scene, nil
}

func (s *SceneStore) ListScenes(_ context.Context, filter domain.SceneFilter) ([]*domain.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Scene
	skipped := 0
	for _, id := range s.order {
		scene := s.scenes[id]
		if filter.Category != "" && scene.Category != filter.Category {
			continue
		}
		if filter.Difficulty != "" && scene.Difficulty != filter.Difficulty {
			continue
		}
		if filter.Status != "" && scene.Status != filter.Status {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		sc := scene
		result = append(result, &sc)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}
