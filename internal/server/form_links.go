package server

import (
	"net/http"

	"trinetra/pkg/types"
)

func (s *Service) handleCreateFormLink(w http.ResponseWriter, r *http.Request) {
	var in types.CreateFormLinkInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	link, err := s.verify.CreateLink(r.Context(), userFromContext(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "link": link})
}

func (s *Service) handleListFormLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter types.FormLinkFilter
	if err := decoder.Decode(&filter, r.URL.Query()); err != nil {
		s.writeError(w, r, types.Invalid("Invalid filter: %v", err))
		return
	}

	scope, err := s.auth.Scope(ctx, userFromContext(ctx))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter.Creators = scope

	links, err := s.verify.ListLinks(ctx, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"links": links})
}

func (s *Service) handleDeleteFormLinks(w http.ResponseWriter, r *http.Request) {
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

	n, err := s.verify.DeleteLinks(ctx, in.IDs, scope)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": n})
}

func (s *Service) handleGetFormLink(w http.ResponseWriter, r *http.Request) {
	link, err := s.verify.OpenLink(r.Context(), r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "form": link})
}

func (s *Service) handleSubmitAVF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes())

	var sub types.AVFSubmission
	if err := decodeJSON(r, &sub); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.verify.SubmitAVF(r.Context(), r.PathValue("token"), &sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"message":  "Submission successful.",
		"pdfPath":  resp.ResponsePDF,
		"distance": resp.DistanceMeters,
	})
}

func (s *Service) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	var c types.Coordinate
	if err := decodeJSON(r, &c); err != nil {
		s.writeError(w, r, err)
		return
	}

	place, err := s.verify.ReverseGeocode(r.Context(), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, place)
}
