package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coax-games/coax-api/internal/domain"
)

// RecordStore keeps finished-session records in memory, newest first.
type RecordStore struct {
	mu      sync.RWMutex
	records map[domain.UserID][]*domain.Record
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[domain.UserID][]*domain.Record),
	}
}

func (s *RecordStore) SaveRecord(_ context.Context, summary *domain.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &domain.Record{
		ID:        uuid.NewString(),
		Summary:   *summary,
		CreatedAt: time.Now(),
	}
	// prepend: listings are newest first
	s.records[summary.UserID] = append([]*domain.Record{rec}, s.records[summary.UserID]...)
	return nil
}

func (s *RecordStore) ListRecords(_ context.Context, userID domain.UserID, filter domain.RecordFilter) ([]*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Record
	skipped := 0
	for _, rec := range s.records[userID] {
		if filter.SceneID != "" && rec.SceneID != filter.SceneID {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		result = append(result, rec)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}
