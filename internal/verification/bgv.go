package verification

import (
	"context"
	"errors"
	"time"

	"trinetra/internal/reconcile"
	"trinetra/internal/report"
	"trinetra/internal/utils"
	"trinetra/pkg/types"

	"github.com/sirupsen/logrus"
)

// BGVState is what a respondent sees when opening a BGV link. Form is nil
// until the first draft save.
type BGVState struct {
	Link *types.FormLink
	Form *types.BGVForm
}

// Pending reports whether the respondent has not saved anything yet.
func (b *BGVState) Pending() bool {
	return b.Form == nil
}

func (s *Service) OpenBGV(ctx context.Context, token string) (*BGVState, error) {
	link, err := s.OpenLink(ctx, token)
	if err != nil {
		return nil, err
	}

	if link.FormType != types.FormTypeBGV {
		return nil, types.Invalid("This link is not a %s form.", types.FormTypeBGV)
	}

	form, err := s.bgv.BGVForm(ctx, token)
	if err != nil {
		return nil, utils.WrapError(err, "load bgv form")
	}

	return &BGVState{Link: link, Form: form}, nil
}

// SaveBGVDraft persists a partial BGV form. Only what the client sent and the
// files uploaded with it are kept. Each save pushes the draft expiry forward.
func (s *Service) SaveBGVDraft(ctx context.Context, token string, payload *types.BGVPayload, uploads reconcile.Uploads) (*types.BGVForm, error) {
	if _, err := s.openForWrite(ctx, token, types.FormTypeBGV, types.OpDraft); err != nil {
		return nil, err
	}

	if err := payload.Validate(types.OpDraft); err != nil {
		return nil, err
	}

	prior, err := s.bgv.BGVForm(ctx, token)
	if err != nil {
		return nil, utils.WrapError(err, "load bgv form")
	}

	res, err := reconcile.New(reconcile.Draft, uploads, s.images).Form(ctx, token, payload, prior)
	if err != nil {
		return nil, err
	}

	now := s.now()
	form := buildBGVForm(token, types.BGVStatusDraft, payload, res, nil)
	form.DraftExpiresAt = utils.TimePtr(now.Add(s.draftTTL))

	if err := s.bgv.SaveBGVDraft(ctx, form); err != nil {
		var se *types.StateError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, utils.WrapError(err, "save bgv draft")
	}

	s.metrics.DraftsSaved.Inc()
	s.logger.WithField("token", token).Info("bgv draft saved")

	return form, nil
}

// SubmitBGV finalizes a BGV form. Sections the client omits are carried over
// from the last draft, the report is rendered and stored, and the link is
// marked submitted.
func (s *Service) SubmitBGV(ctx context.Context, token string, payload *types.BGVPayload, uploads reconcile.Uploads) (*types.BGVForm, error) {
	start := time.Now()

	link, err := s.openForWrite(ctx, token, types.FormTypeBGV, types.OpSubmit)
	if err != nil {
		return nil, err
	}

	if err := payload.Validate(types.OpSubmit); err != nil {
		return nil, err
	}

	prior, err := s.bgv.BGVForm(ctx, token)
	if err != nil {
		return nil, utils.WrapError(err, "load bgv form")
	}

	res, err := reconcile.New(reconcile.Submit, uploads, s.images).Form(ctx, token, payload, prior)
	if err != nil {
		return nil, err
	}

	if res.SignatureImageURL == "" {
		return nil, types.Invalid("Signature is required for submission.")
	}

	now := s.now()
	form := buildBGVForm(token, types.BGVStatusSubmitted, payload, res, prior)
	form.SubmittedAt = utils.TimePtr(now)

	url, err := s.storeReport(ctx, &report.Report{Link: link, BGV: form, GeneratedAt: now})
	if err != nil {
		return nil, err
	}
	form.ResponsePDF = utils.StringPtr(url)

	if err := s.bgv.SubmitBGV(ctx, form); err != nil {
		s.removeFile(ctx, url)
		var se *types.StateError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, utils.WrapError(err, "submit bgv form")
	}

	s.published(ctx, link, form.FullName(), url, now)
	s.metrics.Submissions.WithLabelValues(string(types.FormTypeBGV)).Inc()
	s.metrics.ObserveSubmit(string(types.FormTypeBGV), start)

	s.logger.WithFields(logrus.Fields{
		"token": token,
		"email": utils.PtrString(form.Email),
	}).Info("bgv submitted")

	return form, nil
}

// buildBGVForm assembles the stored record from the payload and the
// reconciled documents. prior is only passed on submit, where sections the
// client omitted are carried forward.
func buildBGVForm(token string, status types.BGVStatus, payload *types.BGVPayload, res *reconcile.Result, prior *types.BGVForm) *types.BGVForm {
	form := &types.BGVForm{
		FormLinkToken:          token,
		Status:                 status,
		Email:                  optional(payload.Email),
		Mobile:                 optional(payload.Mobile),
		AlternateMobile:        optional(payload.AlternateMobile),
		PassportPhotoURL:       optional(res.PassportPhotoURL),
		SignatureImageURL:      optional(res.SignatureImageURL),
		AddressVerification:    res.AddressVerification,
		EducationVerification:  res.Education,
		EmploymentVerification: res.Employment,
		IdentityVerification:   res.Identity,
	}

	if payload.PersonalDetails != nil {
		details := payload.PersonalDetails.PersonalDetails
		form.PersonalDetails = &details
	}
	if payload.Authorization != nil {
		auth := payload.Authorization.AuthorizationDetails
		form.Authorization = &auth
	}

	if prior == nil {
		return form
	}

	if form.Mobile == nil {
		form.Mobile = prior.Mobile
	}
	if form.AlternateMobile == nil {
		form.AlternateMobile = prior.AlternateMobile
	}
	if form.PersonalDetails == nil {
		form.PersonalDetails = prior.PersonalDetails
	}
	if form.Authorization == nil {
		form.Authorization = prior.Authorization
	}

	return form
}
