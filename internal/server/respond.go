package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"trinetra/internal/geo"
	"trinetra/pkg/types"

	"github.com/sirupsen/logrus"
)

func (s *Service) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	var (
		validation *types.ValidationError
		distance   *geo.DistanceError
		geocode    *geo.GeocodeError
		state      *types.StateError
		conflict   *types.ConflictError
	)

	switch {
	case errors.As(err, &validation), errors.As(err, &distance), errors.As(err, &geocode):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &state):
		switch {
		case state.Op == types.OpDraft:
			return http.StatusForbidden
		case state.Status == types.LinkStatusExpired:
			return http.StatusGone
		default:
			return http.StatusConflict
		}
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

// writeError writes {ok:false, error} with the status for err. Internal
// errors are logged and replaced by a generic message unless they come from
// an upstream provider, whose message is passed through.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()

	switch {
	case errors.Is(err, types.ErrForbidden):
		message = "Forbidden"
	case status == http.StatusInternalServerError:
		entry := s.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestIDFromContext(r.Context()),
			"path":       r.URL.Path,
		})
		var upstream *types.UpstreamError
		if errors.As(err, &upstream) {
			entry.Warn("upstream failure")
		} else {
			entry.Error("request failed")
			message = "Internal server error"
		}
	}

	s.writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

// decodeJSON reads a JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return types.Invalid("Request body is not valid JSON.")
	}
	return nil
}
