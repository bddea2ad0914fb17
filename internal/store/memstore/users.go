package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"trinetra/internal/utils"
	"trinetra/pkg/types"
)

func (s *Store) User(_ context.Context, id string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, types.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, types.ErrUserNotFound
}

func (s *Store) UserByEmail(_ context.Context, email string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, types.ErrUserNotFound
}

func (s *Store) UserExists(_ context.Context, username, email, phone string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if username != "" && u.Username == username {
			return true, nil
		}
		if email != "" && strings.EqualFold(u.Email, email) {
			return true, nil
		}
		if phone != "" && utils.PtrString(u.Phone) == phone {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateUser(_ context.Context, u *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = utils.NanoID()
	}
	now := s.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = *u
	return nil
}

func (s *Store) Users(_ context.Context, createdBy string) ([]*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.User, 0, len(s.users))
	for _, u := range s.users {
		if createdBy != "" && utils.PtrString(u.CreatedBy) != createdBy {
			continue
		}
		u := u
		out = append(out, &u)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteUsers(_ context.Context, ids []string, createdBy string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range ids {
		u, ok := s.users[id]
		if !ok {
			continue
		}
		if createdBy != "" && utils.PtrString(u.CreatedBy) != createdBy {
			continue
		}
		delete(s.users, id)
		n++
	}
	return n, nil
}

func (s *Store) update(id string, fn func(u *types.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return types.ErrUserNotFound
	}
	fn(&u)
	u.UpdatedAt = s.Now()
	s.users[id] = u
	return nil
}

func (s *Store) UpdatePermissions(_ context.Context, id string, perms types.Permissions) error {
	return s.update(id, func(u *types.User) {
		u.Permissions = perms
	})
}

func (s *Store) SetOTP(_ context.Context, id string, code *string, expiresAt *time.Time) error {
	return s.update(id, func(u *types.User) {
		u.OTPCode = code
		u.OTPExpiresAt = expiresAt
	})
}

func (s *Store) RecordLogin(_ context.Context, id string, device types.DeviceEntry, entry types.LoginLog) error {
	return s.update(id, func(u *types.User) {
		u.OTPCode = nil
		u.OTPExpiresAt = nil
		u.Devices = append(append([]types.DeviceEntry{}, u.Devices...), device)
		u.Logs = append(append([]types.LoginLog{}, u.Logs...), entry)
	})
}

func (s *Store) UpdateProfile(_ context.Context, id string, changes types.ProfileChanges) error {
	return s.update(id, func(u *types.User) {
		if changes.Username != nil {
			u.Username = *changes.Username
		}
		if changes.Email != nil {
			u.Email = *changes.Email
		}
		if changes.Phone != nil {
			u.Phone = changes.Phone
		}
		if changes.ClearPhone {
			u.Phone = nil
		}
		if changes.PasswordHash != nil {
			u.PasswordHash = *changes.PasswordHash
		}
		if changes.Avatar != nil {
			u.Avatar = changes.Avatar
		}
		u.OTPCode = nil
		u.OTPExpiresAt = nil
	})
}
