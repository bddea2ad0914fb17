package server

import (
	"net/http"

	"trinetra/pkg/types"
)

func (s *Service) handleListResponses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	scope, err := s.auth.Scope(ctx, userFromContext(ctx))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items, err := s.verify.ListReports(ctx, scope)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"responses": items})
}

func (s *Service) handleDeleteResponses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in types.DeleteByIDsInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	scope, err := s.auth.Scope(ctx, userFromContext(ctx))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	deleted, err := s.verify.DeleteReports(ctx, in.IDs, scope)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": deleted})
}
