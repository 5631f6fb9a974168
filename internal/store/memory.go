// Package store はプロセス内メモリで学習者レコードを保持するLevel Storeを提供する。
// DATABASE_URLが未設定の場合の既定の保存先。
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/ouioui/internal/cefr"
	"github.com/hitoshi/ouioui/internal/model"
	"github.com/hitoshi/ouioui/internal/repository"
)

// MemoryStore はセッションIDをキーとする学習者レコードのマップ。
// 呼び出し元にはコピーを返すため、Saveを経由しない変更は反映されない。
// 期限切れのレコードはGetOrCreateで作り直され、DeleteExpiredでまとめて削除される。
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]model.LearnerSession
	maxAge   time.Duration
	now      func() time.Time
}

// NewMemoryStore はMemoryStoreを生成する。
// maxAgeはセッションCookieの有効期間と同じ値を指定する。
func NewMemoryStore(maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]model.LearnerSession),
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// GetOrCreate は有効なレコードのコピーを返し、なければ初期状態で作成する。
func (s *MemoryStore) GetOrCreate(_ context.Context, id string) (*model.LearnerSession, error) {
	if id == "" {
		return nil, errors.New("empty session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.sessions[id]; ok && !rec.Expired(now) {
		return &rec, nil
	}

	rec := *model.NewLearnerSession(id, now, s.maxAge)
	s.sessions[id] = rec
	return &rec, nil
}

// Save はレコードを置き換える。
func (s *MemoryStore) Save(_ context.Context, session *model.LearnerSession) error {
	if session == nil {
		return errors.New("learner session is nil")
	}
	if !session.Level.Valid() {
		return fmt.Errorf("learner session %s: %w", session.ID, cefr.ErrUnknownLevel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.maxAge)
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	s.sessions[session.ID] = *session
	return nil
}

// DeleteExpired は期限切れのレコードを削除する。
func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, rec := range s.sessions {
		if rec.Expired(now) {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Len は保持しているレコード数を返す。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// compile-time interface check
var _ repository.LearnerSessionRepository = (*MemoryStore)(nil)
