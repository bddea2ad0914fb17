// Package verification implements the form link lifecycle and the AVF and
// BGV submission flows on top of the repositories in ports.go.
package verification

import (
	"context"
	"errors"
	"strings"
	"time"

	"trinetra/internal/geo"
	"trinetra/internal/metrics"
	"trinetra/internal/notify"
	"trinetra/internal/report"
	"trinetra/internal/storage"
	"trinetra/internal/utils"
	"trinetra/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	defaultCountry  = "India"
	tokenAttempts   = 3
	defaultDraftTTL = 48 * time.Hour
	pdfContentType  = "application/pdf"
	avfPhotoFolder  = "avf_photos"
)

// PendingUserInput is reported for a BGV link that has no saved data yet.
const PendingUserInput = "pending_user_input"

type Deps struct {
	Logger *logrus.Logger

	Links   LinkRepository
	AVF     AVFRepository
	BGV     BGVRepository
	Reports ReportRepository

	Geocoder   geo.Geocoder
	Policy     geo.Policy
	MapsAPIKey string

	Renderer report.Renderer
	Files    storage.Store
	Notifier notify.Notifier
	Metrics  *metrics.Metrics

	DraftTTL time.Duration
	Now      func() time.Time
}

type Service struct {
	logger  *logrus.Logger
	links   LinkRepository
	avf     AVFRepository
	bgv     BGVRepository
	reports ReportRepository

	geocoder   geo.Geocoder
	policy     geo.Policy
	mapsAPIKey string

	renderer report.Renderer
	files    storage.Store
	images   storage.Images
	notifier notify.Notifier
	metrics  *metrics.Metrics

	draftTTL time.Duration
	now      func() time.Time
}

func New(d Deps) *Service {
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if d.DraftTTL <= 0 {
		d.DraftTTL = defaultDraftTTL
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Policy.MaxDistanceMeters <= 0 {
		d.Policy = geo.NewPolicy(0)
	}

	return &Service{
		logger:     d.Logger,
		links:      d.Links,
		avf:        d.AVF,
		bgv:        d.BGV,
		reports:    d.Reports,
		geocoder:   d.Geocoder,
		policy:     d.Policy,
		mapsAPIKey: d.MapsAPIKey,
		renderer:   d.Renderer,
		files:      d.Files,
		images:     storage.Images{Store: d.Files},
		notifier:   d.Notifier,
		metrics:    d.Metrics,
		draftTTL:   d.DraftTTL,
		now:        d.Now,
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// upstream counts failures of external dependencies before handing err back.
func (s *Service) upstream(err error) error {
	var ue *types.UpstreamError
	if errors.As(err, &ue) {
		s.metrics.UpstreamFailures.WithLabelValues(ue.Service).Inc()
	}
	return err
}

func (s *Service) CreateLink(ctx context.Context, requester *types.User, in types.CreateFormLinkInput) (*types.FormLink, error) {
	formType, ok := types.ParseFormType(in.FormType)
	if !ok {
		return nil, types.Invalid("formType must be AVF or BGV.")
	}

	perm := types.PermCreateFormAVF
	if formType == types.FormTypeBGV {
		perm = types.PermCreateFormBGV
	}
	if !requester.Can(perm) {
		return nil, types.ErrForbidden
	}

	country := optional(in.Country)
	if country == nil {
		country = utils.StringPtr(defaultCountry)
	}

	link := &types.FormLink{
		FormType:      formType,
		Status:        types.LinkStatusNotClicked,
		CreatedBy:     requester.Username,
		CandidateName: optional(in.CandidateName),
		CandidateAddress: types.CandidateAddress{
			HouseNo: optional(in.HouseNo),
			Area:    optional(in.Area),
			Nearby:  optional(in.Nearby),
			City:    optional(in.City),
			State:   optional(in.State),
			ZipCode: optional(in.ZipCode),
			Country: country,
		},
	}

	var err error
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		link.Token = utils.FormToken()
		err = s.links.CreateLink(ctx, link)
		if !errors.Is(err, types.ErrTokenTaken) {
			break
		}
		s.logger.WithField("attempt", attempt+1).Warn("form link token collision, retrying")
	}
	if err != nil {
		return nil, utils.WrapError(err, "create form link")
	}

	s.metrics.LinksCreated.WithLabelValues(string(formType)).Inc()
	s.logger.WithFields(logrus.Fields{
		"token":      link.Token,
		"form_type":  formType,
		"created_by": requester.Username,
	}).Info("form link created")

	return link, nil
}

// ListLinks returns links newest first with lazy expiry applied to each status.
func (s *Service) ListLinks(ctx context.Context, filter types.FormLinkFilter) ([]*types.FormLink, error) {
	links, err := s.links.Links(ctx, filter)
	if err != nil {
		return nil, utils.WrapError(err, "list form links")
	}

	now := s.now()
	for _, link := range links {
		link.Status = link.EffectiveStatus(now)
	}

	return links, nil
}

// DeleteLinks removes links by id together with their responses and any
// stored report.
func (s *Service) DeleteLinks(ctx context.Context, ids []string, creators []string) (int64, error) {
	if len(ids) == 0 {
		return 0, types.Invalid("No ids provided.")
	}

	withReports, err := s.reports.ReportLinks(ctx, ids, creators)
	if err != nil {
		return 0, utils.WrapError(err, "look up reports")
	}

	n, err := s.links.DeleteLinks(ctx, ids, creators)
	if err != nil {
		return 0, utils.WrapError(err, "delete form links")
	}

	for _, link := range withReports {
		s.removeFile(ctx, utils.PtrString(link.ResponsePDF))
	}
	return n, nil
}

// OpenLink resolves a link for a respondent. The first open of an unopened
// link moves it to Clicked. A link whose draft window has lapsed is expired.
func (s *Service) OpenLink(ctx context.Context, token string) (*types.FormLink, error) {
	link, err := s.links.LinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if link.Expired(now) {
		expired, err := s.links.ExpireLink(ctx, token)
		if err != nil {
			return nil, utils.WrapError(err, "expire form link")
		}
		if expired {
			s.metrics.LinksExpired.Inc()
		}
		link.Status = types.LinkStatusExpired
		return link, nil
	}

	if link.Status.Unopened() {
		clicked, err := s.links.MarkClicked(ctx, token)
		if err != nil {
			return nil, utils.WrapError(err, "mark form link clicked")
		}
		if clicked {
			link.Status = types.LinkStatusClicked
		}
	}

	return link, nil
}

// ExpireStale expires every open link whose draft window has ended.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.links.ExpireStale(ctx, s.now())
	if err != nil {
		return 0, utils.WrapError(err, "expire stale form links")
	}

	s.metrics.LinksExpired.Add(float64(n))
	s.logger.WithField("expired", n).Info("stale form links expired")
	return n, nil
}

// ReverseGeocode resolves a respondent's fix to a readable place.
func (s *Service) ReverseGeocode(ctx context.Context, c types.Coordinate) (*geo.Place, error) {
	if !c.Valid() {
		return nil, types.Invalid("Valid latitude and longitude are required.")
	}

	place, err := s.geocoder.Reverse(ctx, c)
	if err != nil {
		return nil, s.upstream(err)
	}
	return place, nil
}

// openForWrite loads the link for a draft save or submission and checks it is open
// and of the expected type.
func (s *Service) openForWrite(ctx context.Context, token string, formType types.FormType, op string) (*types.FormLink, error) {
	link, err := s.links.LinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if status := link.EffectiveStatus(s.now()); status.Terminal() {
		return nil, &types.StateError{Token: token, Status: status, Op: op}
	}

	if link.FormType != formType {
		return nil, types.Invalid("This link is not a %s form.", formType)
	}

	return link, nil
}

// storeReport renders r and stores the PDF, returning its URL.
func (s *Service) storeReport(ctx context.Context, r *report.Report) (string, error) {
	if r.Attempt == "" {
		r.Attempt = utils.NanoIDSize(8)
	}

	pdf, err := s.renderer.Render(ctx, r)
	if err != nil {
		return "", s.upstream(err)
	}

	url, err := s.files.Put(ctx, r.Key(), pdf, pdfContentType)
	if err != nil {
		return "", s.upstream(&types.UpstreamError{Service: "file storage", Err: err})
	}

	return url, nil
}

// removeFile deletes a stored file by URL. Failures are logged only.
func (s *Service) removeFile(ctx context.Context, url string) {
	if url == "" {
		return
	}

	key, ok := s.files.KeyFromURL(url)
	if !ok {
		s.logger.WithField("url", url).Warn("stored file url not recognised, leaving file in place")
		return
	}

	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Error("failed to delete stored file")
	}
}

func (s *Service) published(ctx context.Context, link *types.FormLink, candidate, reportURL string, at time.Time) {
	event := notify.SubmittedEvent{
		Token:       link.Token,
		FormType:    string(link.FormType),
		CreatedBy:   link.CreatedBy,
		Candidate:   candidate,
		ReportURL:   reportURL,
		SubmittedAt: at,
	}

	if err := s.notifier.Submitted(ctx, event); err != nil {
		s.logger.WithError(err).WithField("token", link.Token).Error("failed to publish submission event")
	}
}
