package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trinetra/internal/geo"
	"trinetra/internal/report"
	"trinetra/internal/utils"
	"trinetra/pkg/types"

	"github.com/sirupsen/logrus"
)

// SubmitAVF validates an address verification, checks the respondent's fix
// against the geocoded candidate address, stores the photos and the report,
// and marks the link submitted.
func (s *Service) SubmitAVF(ctx context.Context, token string, sub *types.AVFSubmission) (*types.AVFResponse, error) {
	start := time.Now()

	link, err := s.openForWrite(ctx, token, types.FormTypeAVF, types.OpSubmit)
	if err != nil {
		return nil, err
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	respondent, err := sub.GPSLocation.Coordinate()
	if err != nil {
		return nil, err
	}

	address := link.CandidateAddress.Line()
	if address == "" {
		return nil, types.Invalid("Candidate address is missing for this form link.")
	}

	candidate, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, s.upstream(err)
	}

	distance, err := s.policy.Check(candidate, respondent)
	if err != nil {
		if errors.Is(err, geo.ErrTooFar) {
			s.metrics.GeofenceRejections.Inc()
			s.logger.WithFields(logrus.Fields{
				"token":    token,
				"distance": int64(distance),
			}).Info("avf submission outside geofence")
		}
		return nil, err
	}

	now := s.now()
	resp := &types.AVFResponse{
		FormLinkToken:  token,
		VerifierName:   sub.VerifierName(),
		MobileNumber:   optional(sub.MobileNumber),
		Relationship:   optional(sub.Relationship),
		ResidenceType:  optional(sub.ResidenceType),
		ResidingSince:  optional(sub.ResidingSince),
		Landmark:       optional(sub.Landmark),
		GovtIDType:     optional(sub.GovtIDType),
		AddressLat:     candidate.Lat,
		AddressLng:     candidate.Lng,
		GPSLat:         respondent.Lat,
		GPSLng:         respondent.Lng,
		GPSAccuracy:    sub.GPSLocation.Accuracy,
		DistanceMeters: utils.RoundFloat64(distance, 2),
		StaticMapURL:   geo.StaticMapURL(s.mapsAPIKey, candidate, respondent),
		SubmittedAt:    now,
	}

	if err := s.savePhotos(ctx, token, sub, resp); err != nil {
		return nil, err
	}

	url, err := s.storeReport(ctx, &report.Report{Link: link, AVF: resp, GeneratedAt: now})
	if err != nil {
		return nil, err
	}
	resp.ResponsePDF = url

	if err := s.avf.SubmitAVF(ctx, resp); err != nil {
		s.removeFile(ctx, url)
		var se *types.StateError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, utils.WrapError(err, "save avf response")
	}

	s.published(ctx, link, link.Candidate(), url, now)
	s.metrics.Submissions.WithLabelValues(string(types.FormTypeAVF)).Inc()
	s.metrics.ObserveSubmit(string(types.FormTypeAVF), start)

	s.logger.WithFields(logrus.Fields{
		"token":    token,
		"distance": resp.DistanceMeters,
	}).Info("avf submitted")

	return resp, nil
}

// savePhotos stores image data URLs from the submission and records their
// URLs on resp. Values that are already URLs are kept as sent.
func (s *Service) savePhotos(ctx context.Context, token string, sub *types.AVFSubmission, resp *types.AVFResponse) error {
	save := func(value, name string) (string, error) {
		value = strings.TrimSpace(value)
		if !strings.HasPrefix(value, "data:") {
			return value, nil
		}
		stored, err := s.images.SaveDataURL(ctx, value, avfPhotoFolder, name)
		if err != nil {
			return "", err
		}
		return stored.URL, nil
	}

	ids := make([]string, 0, len(sub.GovtIDPhotos))
	for i, photo := range sub.GovtIDPhotos {
		url, err := save(photo, fmt.Sprintf("%s_govt_id_%d", token, i))
		if err != nil {
			return err
		}
		if url != "" {
			ids = append(ids, url)
		}
	}
	resp.GovtIDPhotoURLs = ids

	selfie, err := save(sub.SelfiePhoto, token+"_selfie")
	if err != nil {
		return err
	}
	resp.SelfiePhotoURL = optional(selfie)

	outside, err := save(sub.OutsideHousePhoto, token+"_outside_house")
	if err != nil {
		return err
	}
	resp.OutsideHousePhotoURL = optional(outside)

	return nil
}
