package server

import (
	"net/http"

	"trinetra/pkg/types"
)

func (s *Service) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Service) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in types.CreateUserInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.auth.CreateUser(r.Context(), userFromContext(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "user": user})
}

func (s *Service) handleDeleteUsers(w http.ResponseWriter, r *http.Request) {
	var in types.DeleteByIDsInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	n, err := s.auth.DeleteUsers(r.Context(), userFromContext(r.Context()), in.IDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": n})
}

func (s *Service) handleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	var in types.UpdatePermissionsInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.auth.UpdatePermissions(r.Context(), userFromContext(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": user})
}

func (s *Service) handleLoginAs(w http.ResponseWriter, r *http.Request) {
	var in types.LoginAsInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.auth.LoginAs(r.Context(), userFromContext(r.Context()), in.TargetUserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.setSessionCookie(w, session.Token); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "token": session.Token, "user": session.User})
}
