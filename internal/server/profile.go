package server

import (
	"net/http"

	"trinetra/pkg/types"
)

func (s *Service) handleRequestProfileOTP(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.RequestProfileOTP(r.Context(), userFromContext(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "OTP sent to your email."})
}

func (s *Service) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in types.ProfileUpdate
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.auth.UpdateProfile(r.Context(), userFromContext(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": user})
}

// handleGetAvatar serves the avatar of ?id=, which the login screen shows
// before a session exists.
func (s *Service) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	avatar, err := s.auth.Avatar(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"avatar": avatar})
}
