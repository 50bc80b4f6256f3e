package records

import (
	"context"
	"sort"
	"sync"

	id "primegate/pkg/domain"
	"primegate/pkg/platform/sentinel"
)

// InMemoryStore keeps the initial implementation lightweight and testable.
// It intentionally favors clarity over performance.
type InMemoryStore struct {
	mu      sync.RWMutex
	users   map[id.PrincipalID]versionedRecord
	byEmail map[string]id.PrincipalID
}

type versionedRecord struct {
	record  UserRecord
	version int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[id.PrincipalID]versionedRecord),
		byEmail: make(map[string]id.PrincipalID),
	}
}

func (s *InMemoryStore) Get(ctx context.Context, principalID id.PrincipalID) (UserRecord, int64, error) {
	if err := ctx.Err(); err != nil {
		return UserRecord{}, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if vr, ok := s.users[principalID]; ok {
		return vr.record, vr.version, nil
	}
	return UserRecord{}, 0, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByEmail(ctx context.Context, email string) (UserRecord, int64, error) {
	if err := ctx.Err(); err != nil {
		return UserRecord{}, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if principalID, ok := s.byEmail[email]; ok {
		vr := s.users[principalID]
		return vr.record, vr.version, nil
	}
	return UserRecord{}, 0, sentinel.ErrNotFound
}

func (s *InMemoryStore) Create(ctx context.Context, record UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[record.PrincipalID]; exists {
		return sentinel.ErrAlreadyExists
	}
	if _, exists := s.byEmail[record.Email]; exists {
		return sentinel.ErrAlreadyExists
	}
	s.users[record.PrincipalID] = versionedRecord{record: record, version: 1}
	s.byEmail[record.Email] = record.PrincipalID
	return nil
}

func (s *InMemoryStore) PutIfVersion(ctx context.Context, record UserRecord, expectedVersion int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.users[record.PrincipalID]
	if !exists {
		return 0, sentinel.ErrNotFound
	}
	if current.version != expectedVersion {
		return 0, sentinel.ErrVersionConflict
	}
	next := versionedRecord{record: record, version: expectedVersion + 1}
	s.users[record.PrincipalID] = next

	if current.record.Email != record.Email {
		delete(s.byEmail, current.record.Email)
		s.byEmail[record.Email] = record.PrincipalID
	}
	return next.version, nil
}

func (s *InMemoryStore) List(ctx context.Context) ([]UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UserRecord, 0, len(s.users))
	for _, vr := range s.users {
		out = append(out, vr.record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].PrincipalID < out[j].PrincipalID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CountApprovedManagers(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, vr := range s.users {
		if vr.record.Role == RoleManager && vr.record.ApprovalState == StateApproved {
			count++
		}
	}
	return count, nil
}
