package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"trinetra/internal/reconcile"
	"trinetra/internal/storage"
	"trinetra/internal/verification"
	"trinetra/pkg/types"
)

const multipartMemory = 8 << 20

func (s *Service) handleGetBGV(w http.ResponseWriter, r *http.Request) {
	state, err := s.verify.OpenBGV(r.Context(), r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if state.Pending() {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"message": "Form link is valid, no data yet.",
			"status":  verification.PendingUserInput,
		})
		return
	}

	s.writeJSON(w, http.StatusOK, state.Form)
}

// readBGV reads the payload of a draft save or submission. Multipart requests
// carry the payload in the jsonData field next to the uploaded files; plain
// JSON requests carry no files.
func (s *Service) readBGV(w http.ResponseWriter, r *http.Request) (*types.BGVPayload, reconcile.Uploads, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes())

	var (
		payload types.BGVPayload
		uploads reconcile.Uploads
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := decodeJSON(r, &payload); err != nil {
			return nil, nil, err
		}
		return &payload, nil, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, types.Invalid("Upload exceeds the %d MB limit.", s.config.MaxUploadMB)
		}
		return nil, nil, types.Invalid("Request is not valid multipart form data.")
	}

	raw := r.FormValue("jsonData")
	if raw == "" {
		return nil, nil, types.Invalid("Missing jsonData field in form-data")
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, nil, types.Invalid("jsonData is not valid JSON.")
	}

	uploads = storage.NewMultipartUploads(r.MultipartForm, s.files)
	return &payload, uploads, nil
}

func (s *Service) handleSaveBGVDraft(w http.ResponseWriter, r *http.Request) {
	payload, uploads, err := s.readBGV(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	form, err := s.verify.SaveBGVDraft(r.Context(), r.PathValue("token"), payload, uploads)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"message": "Draft saved successfully", "data": form})
}

func (s *Service) handleSubmitBGV(w http.ResponseWriter, r *http.Request) {
	payload, uploads, err := s.readBGV(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	form, err := s.verify.SubmitBGV(r.Context(), r.PathValue("token"), payload, uploads)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"message": "Form submitted successfully", "data": form})
}
