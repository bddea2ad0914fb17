// Package memstore keeps every repository in process memory. It backs
// `serve --memory` for local runs and the service and handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"trinetra/internal/utils"
	"trinetra/pkg/types"
)

type Store struct {
	mu    sync.RWMutex
	links map[string]types.FormLink // by token
	avf   map[string]types.AVFResponse
	bgv   map[string]types.BGVForm
	users map[string]types.User // by id

	// Now is the clock used for timestamps and expiry checks.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		links: make(map[string]types.FormLink),
		avf:   make(map[string]types.AVFResponse),
		bgv:   make(map[string]types.BGVForm),
		users: make(map[string]types.User),
		Now:   time.Now,
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func inScope(creators []string, createdBy string) bool {
	return creators == nil || contains(creators, createdBy)
}

// open reports whether link may still move to Draft or submitted at now.
func open(link types.FormLink, now time.Time) bool {
	return !link.Status.Terminal() && !link.Expired(now)
}

func stateError(link types.FormLink, now time.Time, op string) *types.StateError {
	return &types.StateError{Token: link.Token, Status: link.EffectiveStatus(now), Op: op}
}

func (s *Store) CreateLink(_ context.Context, link *types.FormLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[link.Token]; ok {
		return types.ErrTokenTaken
	}

	if link.ID == "" {
		link.ID = utils.NanoID()
	}
	now := s.Now()
	link.CreatedAt = now
	link.UpdatedAt = now
	s.links[link.Token] = *link
	return nil
}

func (s *Store) LinkByToken(_ context.Context, token string) (*types.FormLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[token]
	if !ok {
		return nil, types.ErrFormLinkNotFound
	}
	return &link, nil
}

func (s *Store) Links(_ context.Context, filter types.FormLinkFilter) ([]*types.FormLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.FormLink, 0, len(s.links))
	for _, link := range s.links {
		if !inScope(filter.Creators, link.CreatedBy) {
			continue
		}
		if filter.Status != "" && string(link.Status) != filter.Status {
			continue
		}
		if filter.FormType != "" && !strings.EqualFold(string(link.FormType), filter.FormType) {
			continue
		}
		if filter.CreatedBy != "" && link.CreatedBy != filter.CreatedBy {
			continue
		}
		link := link
		out = append(out, &link)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && uint64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}

	return out, nil
}

func (s *Store) DeleteLinks(_ context.Context, ids []string, creators []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for token, link := range s.links {
		if !contains(ids, link.ID) || !inScope(creators, link.CreatedBy) {
			continue
		}
		delete(s.links, token)
		delete(s.avf, token)
		delete(s.bgv, token)
		n++
	}
	return n, nil
}

func (s *Store) MarkClicked(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[token]
	if !ok || !link.Status.Unopened() {
		return false, nil
	}
	link.Status = types.LinkStatusClicked
	link.UpdatedAt = s.Now()
	s.links[token] = link
	return true, nil
}

func (s *Store) ExpireLink(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[token]
	if !ok || link.Status.Terminal() {
		return false, nil
	}
	link.Status = types.LinkStatusExpired
	link.UpdatedAt = s.Now()
	s.links[token] = link
	return true, nil
}

func (s *Store) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for token, link := range s.links {
		if !link.Expired(now) {
			continue
		}
		link.Status = types.LinkStatusExpired
		link.UpdatedAt = now
		s.links[token] = link
		n++
	}
	return n, nil
}

func (s *Store) AVFResponse(_ context.Context, token string) (*types.AVFResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, ok := s.avf[token]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

func (s *Store) SubmitAVF(_ context.Context, resp *types.AVFResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	link, ok := s.links[resp.FormLinkToken]
	if !ok {
		return types.ErrFormLinkNotFound
	}
	if !open(link, now) {
		return stateError(link, now, types.OpSubmit)
	}

	if resp.ID == "" {
		resp.ID = utils.NanoID()
	}
	link.Status = types.LinkStatusSubmitted
	link.ResponsePDF = utils.StringPtr(resp.ResponsePDF)
	link.UpdatedAt = now
	s.links[link.Token] = link
	s.avf[link.Token] = *resp
	return nil
}

func (s *Store) BGVForm(_ context.Context, token string) (*types.BGVForm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	form, ok := s.bgv[token]
	if !ok {
		return nil, nil
	}
	return &form, nil
}

func (s *Store) upsertBGV(form *types.BGVForm, now time.Time) {
	if prev, ok := s.bgv[form.FormLinkToken]; ok {
		form.ID = prev.ID
		form.CreatedAt = prev.CreatedAt
	} else {
		if form.ID == "" {
			form.ID = utils.NanoID()
		}
		form.CreatedAt = now
	}
	form.UpdatedAt = now
	s.bgv[form.FormLinkToken] = *form
}

func (s *Store) SaveBGVDraft(_ context.Context, form *types.BGVForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	link, ok := s.links[form.FormLinkToken]
	if !ok {
		return types.ErrFormLinkNotFound
	}
	if !open(link, now) {
		return stateError(link, now, types.OpDraft)
	}

	link.Status = types.LinkStatusDraft
	link.DraftExpiresAt = form.DraftExpiresAt
	link.UpdatedAt = now
	s.links[link.Token] = link
	s.upsertBGV(form, now)
	return nil
}

func (s *Store) SubmitBGV(_ context.Context, form *types.BGVForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	link, ok := s.links[form.FormLinkToken]
	if !ok {
		return types.ErrFormLinkNotFound
	}
	if !open(link, now) {
		return stateError(link, now, types.OpSubmit)
	}

	link.Status = types.LinkStatusSubmitted
	link.ResponsePDF = form.ResponsePDF
	if name := form.FullName(); name != "" {
		link.CandidateName = utils.StringPtr(name)
	}
	link.DraftExpiresAt = nil
	link.UpdatedAt = now
	s.links[link.Token] = link
	s.upsertBGV(form, now)
	return nil
}

func (s *Store) Reports(_ context.Context, creators []string) ([]*types.ReportItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.ReportItem, 0)
	for token, link := range s.links {
		if link.Status != types.LinkStatusSubmitted || link.ResponsePDF == nil || !inScope(creators, link.CreatedBy) {
			continue
		}

		item := &types.ReportItem{
			ID:            link.ID,
			Token:         token,
			FormType:      link.FormType,
			CandidateName: link.CandidateName,
			FileURL:       *link.ResponsePDF,
			CreatedBy:     link.CreatedBy,
			SubmittedAt:   link.UpdatedAt,
		}
		if resp, ok := s.avf[token]; ok {
			item.SubmittedAt = resp.SubmittedAt
		}
		if form, ok := s.bgv[token]; ok && form.SubmittedAt != nil {
			item.SubmittedAt = *form.SubmittedAt
		}
		out = append(out, item)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})

	return out, nil
}

func (s *Store) ReportLinks(_ context.Context, ids []string, creators []string) ([]*types.FormLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.FormLink, 0, len(ids))
	for _, link := range s.links {
		if !contains(ids, link.ID) || link.ResponsePDF == nil || !inScope(creators, link.CreatedBy) {
			continue
		}
		link := link
		out = append(out, &link)
	}
	return out, nil
}
