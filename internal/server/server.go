package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"trinetra/internal/auth"
	"trinetra/internal/metrics"
	"trinetra/internal/storage"
	"trinetra/internal/verification"
	"trinetra/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

type Service struct {
	logger  *logrus.Logger
	config  *types.Config
	auth    *auth.Service
	verify  *verification.Service
	files   storage.Store
	metrics *metrics.Metrics

	cookie   *securecookie.SecureCookie
	gatherer prometheus.Gatherer

	handler http.Handler
	server  *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	authService *auth.Service,
	verify *verification.Service,
	files storage.Store,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) (*Service, error) {
	mux := flow.New()

	hashKey, err := base64.StdEncoding.DecodeString(config.CookieHashKey)
	if err != nil {
		return nil, fmt.Errorf("decode cookie hash key: %w", err)
	}
	blockKey, err := base64.StdEncoding.DecodeString(config.CookieBlockKey)
	if err != nil {
		return nil, fmt.Errorf("decode cookie block key: %w", err)
	}
	if len(hashKey) == 0 {
		logger.Warn("COOKIE_HASH_KEY is not set, session cookies will not survive a restart")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}

	s := &Service{
		logger:   logger,
		config:   config,
		auth:     authService,
		verify:   verify,
		files:    files,
		metrics:  m,
		cookie:   securecookie.New(hashKey, blockKey),
		gatherer: gatherer,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.cookie.MaxAge(config.SessionMaxAgeSec)

	s.buildRouter(mux)

	// flow only runs middleware for matched routes, so the redirect wraps the mux.
	s.handler = s.StripTrailingSlash(mux)
	s.server.Handler = s.handler

	return s, nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Service) Handler() http.Handler {
	return s.handler
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}), http.MethodGet)

	r.HandleFunc("/auth/request-otp", s.handleRequestOTP, http.MethodPost)
	r.HandleFunc("/auth/verify-otp", s.handleVerifyOTP, http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout, http.MethodPost)

	// Respondent routes, reachable by token alone.
	r.HandleFunc("/form-links/:token", s.handleGetFormLink, http.MethodGet)
	r.HandleFunc("/form-links/:token", s.handleSubmitAVF, http.MethodPost)
	r.HandleFunc("/bgv-forms/:token", s.handleGetBGV, http.MethodGet)
	r.HandleFunc("/bgv-forms/:token", s.handleSaveBGVDraft, http.MethodPut)
	r.HandleFunc("/bgv-forms/:token", s.handleSubmitBGV, http.MethodPost)
	r.HandleFunc("/geocode", s.handleReverseGeocode, http.MethodPost)
	r.HandleFunc("/profile/avatar", s.handleGetAvatar, http.MethodGet)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		r.HandleFunc("/me", s.handleMe, http.MethodGet)

		r.HandleFunc("/form-links", s.handleCreateFormLink, http.MethodPost)
		r.HandleFunc("/form-links", s.handleListFormLinks, http.MethodGet)
		r.HandleFunc("/form-links", s.handleDeleteFormLinks, http.MethodDelete)

		r.HandleFunc("/users", s.handleListUsers, http.MethodGet)
		r.HandleFunc("/users", s.handleCreateUser, http.MethodPost)
		r.HandleFunc("/users", s.handleDeleteUsers, http.MethodDelete)
		r.HandleFunc("/users/permissions", s.handleUpdatePermissions, http.MethodPut)
		r.HandleFunc("/users/login-as", s.handleLoginAs, http.MethodPost)

		r.HandleFunc("/profile/request-otp", s.handleRequestProfileOTP, http.MethodPost)
		r.HandleFunc("/profile/update", s.handleUpdateProfile, http.MethodPost)

		r.Group(func(r *flow.Mux) {
			r.Use(s.RequirePermission(types.PermViewResponses))

			r.HandleFunc("/responses", s.handleListResponses, http.MethodGet)
			r.HandleFunc("/responses", s.handleDeleteResponses, http.MethodDelete)
		})
	})

	if s.config.StorageDriver == "local" {
		r.Handle("/files/...", http.StripPrefix("/files/", http.FileServer(http.Dir(s.config.StorageDir))), http.MethodGet)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
