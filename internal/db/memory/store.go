// Package memorydb 进程内存储，未配置 Redis / Postgres 时使用
package memorydb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"haptix/internal/domain/workflow/port"
)

// SessionStore 内存会话存储，读写都经过 JSON 拷贝
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewSessionStore 创建内存会话存储
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string][]byte)}
}

func (s *SessionStore) Save(_ context.Context, sess *port.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = data
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*port.Session, error) {
	s.mu.RLock()
	data, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, port.ErrSessionNotFound
	}
	var sess port.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// TriggerRepository 内存触发记录
type TriggerRepository struct {
	mu      sync.RWMutex
	records []port.TriggerRecord
}

// NewTriggerRepository 创建内存触发记录存储
func NewTriggerRepository() *TriggerRepository {
	return &TriggerRepository{}
}

func (r *TriggerRepository) Record(_ context.Context, records []*port.TriggerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		r.records = append(r.records, *rec)
	}
	return nil
}

// List 按写入时间倒序返回匹配的记录
func (r *TriggerRepository) List(_ context.Context, params port.ListTriggersParams) ([]*port.TriggerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*port.TriggerRecord, 0)
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if params.SessionID != "" && rec.SessionID != params.SessionID {
			continue
		}
		if params.Matched != nil && rec.Matched != *params.Matched {
			continue
		}
		out = append(out, &rec)
		if params.Limit > 0 && len(out) >= params.Limit {
			break
		}
	}
	return out, nil
}
