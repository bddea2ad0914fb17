package server

import (
	"net/http"

	"trinetra/pkg/types"
)

func (s *Service) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var in types.OTPRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.auth.RequestOTP(r.Context(), in); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "OTP sent to your email."})
}

func (s *Service) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var in types.OTPVerification
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.auth.VerifyOTP(r.Context(), in, clientIP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.setSessionCookie(w, session.Token); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.WithField("user_id", session.User.ID).Info("user logged in")

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "token": session.Token, "user": session.User})
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"user": userFromContext(r.Context())})
}

func (s *Service) setSessionCookie(w http.ResponseWriter, token string) error {
	encoded, err := s.cookie.Encode(s.config.CookieName, token)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    encoded,
		HttpOnly: true,
		Secure:   s.config.Environment != "development",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   s.config.SessionMaxAgeSec,
		Path:     "/",
	})

	return nil
}

func (s *Service) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   s.config.Environment != "development",
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}
