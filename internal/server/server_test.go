package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trinetra/internal/auth"
	"trinetra/internal/geo"
	"trinetra/internal/metrics"
	"trinetra/internal/report"
	"trinetra/internal/storage"
	"trinetra/internal/store/memstore"
	"trinetra/internal/verification"
	"trinetra/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var home = types.Coordinate{Lat: 23.0225, Lng: 72.5714}

type stubGeocoder struct{}

func (stubGeocoder) Geocode(context.Context, string) (types.Coordinate, error) {
	return home, nil
}

func (stubGeocoder) Reverse(_ context.Context, c types.Coordinate) (*geo.Place, error) {
	return &geo.Place{Address: "Navrangpura, Ahmedabad", Lat: c.Lat, Lng: c.Lng}, nil
}

type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, r *report.Report) ([]byte, error) {
	return []byte("%PDF-1.4 " + r.Filename()), nil
}

type testServer struct {
	handler http.Handler
	store   *memstore.Store
	tokens  *auth.Tokens
	sudo    *types.User
	admin   *types.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	config := &types.Config{
		Environment:      "development",
		MaxUploadMB:      4,
		CookieName:       "trinetra_session",
		SessionMaxAgeSec: 3600,
		StorageDriver:    "local",
		StorageDir:       t.TempDir(),
	}

	files, err := storage.NewLocalStore(config.StorageDir, "http://localhost:8080/files")
	require.NoError(t, err)

	store := memstore.New()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	tokens := auth.NewTokens("test-secret", time.Hour)
	authService := auth.NewService(store, tokens, auth.NewLogMailer(logger), time.Minute, logger)

	verify := verification.New(verification.Deps{
		Logger:   logger,
		Links:    store,
		AVF:      store,
		BGV:      store,
		Reports:  store,
		Geocoder: stubGeocoder{},
		Policy:   geo.NewPolicy(10000),
		Renderer: stubRenderer{},
		Files:    files,
		Metrics:  m,
	})

	s, err := New(config, logger, authService, verify, files, m, registry)
	require.NoError(t, err)

	ts := &testServer{
		handler: s.Handler(),
		store:   store,
		tokens:  tokens,
		sudo:    &types.User{ID: "usr_sudo", Username: "root", Email: "root@example.com", Role: types.RoleSudo},
		admin: &types.User{
			ID:          "usr_meera",
			Username:    "meera",
			Email:       "meera@example.com",
			Role:        types.RoleAdmin,
			Permissions: types.Permissions{types.PermCreateFormAVF: true},
		},
	}
	require.NoError(t, store.CreateUser(context.Background(), ts.sudo))
	require.NoError(t, store.CreateUser(context.Background(), ts.admin))

	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, user *types.User, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	ts.authorize(t, req, user)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) authorize(t *testing.T, req *http.Request, user *types.User) {
	t.Helper()

	if user == nil {
		return
	}
	token, err := ts.tokens.Issue(user)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func (ts *testServer) createLink(t *testing.T, formType types.FormType) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/form-links", ts.sudo, types.CreateFormLinkInput{
		FormType:      string(formType),
		CandidateName: "Asha Patel",
		HouseNo:       "12",
		Area:          "Navrangpura",
		City:          "Ahmedabad",
		ZipCode:       "380009",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Link types.FormLink `json:"link"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Link.Token)
	return body.Link.Token
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestStripTrailingSlash(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz/", nil, nil)
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/healthz", rec.Header().Get("Location"))
}

func TestRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/form-links", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["ok"])

	req := httptest.NewRequest(http.MethodGet, "/form-links", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/me", ts.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, "meera", me["username"])
}

func TestRequirePermission(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/responses", ts.admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", decodeBody(t, rec)["error"])

	rec = ts.do(t, http.MethodGet, "/responses", ts.sudo, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/form-links", ts.admin, types.CreateFormLinkInput{FormType: "BGV", CandidateName: "Asha"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFormLinkLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.createLink(t, types.FormTypeAVF)

	rec := ts.do(t, http.MethodGet, "/form-links/"+token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	form := decodeBody(t, rec)["form"].(map[string]any)
	assert.Equal(t, string(types.LinkStatusClicked), form["status"])

	submission := map[string]any{
		"fullName":      "Ravi Patel",
		"mobileNumber":  "9876543210",
		"residenceType": "Owned",
		"gpsLocation":   map[string]any{"lat": home.Lat, "lng": home.Lng},
	}

	rec = ts.do(t, http.MethodPost, "/form-links/"+token, nil, submission)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Submission successful.", body["message"])
	assert.Contains(t, body["pdfPath"], token)

	rec = ts.do(t, http.MethodPost, "/form-links/"+token, nil, submission)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/responses", ts.sudo, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["responses"], 1)
}

func TestFormLinkErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/form-links/does-not-exist", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	token := ts.createLink(t, types.FormTypeAVF)
	rec = ts.do(t, http.MethodPost, "/form-links/"+token, nil, map[string]any{
		"fullName":    "Ravi Patel",
		"gpsLocation": map[string]any{"lat": "north", "lng": home.Lng},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/form-links", ts.sudo, types.DeleteByIDsInput{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFormLinksScope(t *testing.T) {
	ts := newTestServer(t)
	ts.createLink(t, types.FormTypeAVF)

	rec := ts.do(t, http.MethodGet, "/form-links?formType=AVF", ts.sudo, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["links"], 1)

	rec = ts.do(t, http.MethodGet, "/form-links", ts.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["links"])
}

func bgvRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		require.NoError(t, mw.WriteField("jsonData", string(raw)))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestBGVForm(t *testing.T) {
	ts := newTestServer(t)
	token := ts.createLink(t, types.FormTypeBGV)
	path := "/bgv-forms/" + token

	rec := ts.do(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, verification.PendingUserInput, decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, bgvRequest(t, http.MethodPut, path, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing jsonData field in form-data", decodeBody(t, rec)["error"])

	draft := &types.BGVPayload{
		Email:  "asha@example.com",
		Mobile: "9876543210",
		PersonalDetails: &types.PersonalDetailsInput{
			PersonalDetails: types.PersonalDetails{FullName: "Asha Patel", DOB: "1994-07-21"},
		},
	}

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, bgvRequest(t, http.MethodPut, path, draft))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Draft saved successfully", decodeBody(t, rec)["message"])

	rec = ts.do(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "asha@example.com", decodeBody(t, rec)["email"])

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, bgvRequest(t, http.MethodPost, path, draft))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	avfToken := ts.createLink(t, types.FormTypeAVF)
	rec = ts.do(t, http.MethodGet, "/bgv-forms/"+avfToken, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/logout", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "trinetra_session", cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", types.Invalid("bad"), http.StatusBadRequest},
		{"unauthorized", types.Unauthorized("nope"), http.StatusUnauthorized},
		{"forbidden", types.ErrForbidden, http.StatusForbidden},
		{"draft on closed link", &types.StateError{Status: types.LinkStatusSubmitted, Op: types.OpDraft}, http.StatusForbidden},
		{"submit on expired link", &types.StateError{Status: types.LinkStatusExpired, Op: types.OpSubmit}, http.StatusGone},
		{"submit twice", &types.StateError{Status: types.LinkStatusSubmitted, Op: types.OpSubmit}, http.StatusConflict},
		{"not found", types.ErrFormLinkNotFound, http.StatusNotFound},
		{"conflict", &types.ConflictError{Message: "taken"}, http.StatusConflict},
		{"upstream", &types.UpstreamError{Service: "geocoder", Err: io.EOF}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
