package types

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const gpsMissingMessage = "Valid GPS location from respondent is missing."

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// GPSFix is the respondent's browser geolocation as submitted. Lat and Lng are
// kept raw so that strings and nulls can be told apart from numbers.
type GPSFix struct {
	Lat      json.RawMessage `json:"lat"`
	Lng      json.RawMessage `json:"lng"`
	Accuracy *float64        `json:"accuracy,omitempty"`
}

// Coordinate validates the fix and returns it as a Coordinate.
func (g *GPSFix) Coordinate() (Coordinate, error) {
	if g == nil {
		return Coordinate{}, Invalid(gpsMissingMessage)
	}

	lat, ok := jsonNumber(g.Lat)
	if !ok {
		return Coordinate{}, Invalid(gpsMissingMessage)
	}
	lng, ok := jsonNumber(g.Lng)
	if !ok {
		return Coordinate{}, Invalid(gpsMissingMessage)
	}

	c := Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return Coordinate{}, Invalid(gpsMissingMessage)
	}

	return c, nil
}

func jsonNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var mobilePattern = regexp.MustCompile(`^(\+?91)?[0-9]{10}$`)

// ValidMobile accepts ten digit numbers with an optional +91 country code.
// Spaces and dashes are ignored.
func ValidMobile(s string) bool {
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	return mobilePattern.MatchString(s)
}

type AVFSubmission struct {
	FullName          string   `json:"fullName"`
	Response          string   `json:"response"`
	MobileNumber      string   `json:"mobileNumber"`
	Relationship      string   `json:"relationship"`
	ResidenceType     string   `json:"residenceType"`
	ResidingSince     string   `json:"residingSince"`
	Landmark          string   `json:"landmark"`
	GovtIDType        string   `json:"govtIdType"`
	GovtIDPhotos      []string `json:"govtIdPhotos"`
	SelfiePhoto       string   `json:"selfiePhoto"`
	OutsideHousePhoto string   `json:"outsideHousePhoto"`
	GPSLocation       *GPSFix  `json:"gpsLocation"`
}

// VerifierName prefers fullName and falls back to the single field used by
// the short form.
func (s *AVFSubmission) VerifierName() string {
	if name := strings.TrimSpace(s.FullName); name != "" {
		return name
	}
	return strings.TrimSpace(s.Response)
}

func (s *AVFSubmission) Validate() error {
	if s.VerifierName() == "" {
		return Invalid("Full name of the respondent is required.")
	}

	if s.MobileNumber != "" && !ValidMobile(s.MobileNumber) {
		return Invalid("Mobile number must be a valid 10 digit number.")
	}

	if len(s.GovtIDPhotos) > 0 && strings.TrimSpace(s.GovtIDType) == "" {
		return Invalid("Government ID type is required when ID photos are attached.")
	}

	return nil
}

type AVFResponse struct {
	ID                   string    `db:"id" json:"id"`
	FormLinkToken        string    `db:"form_link_token" json:"formLinkToken"`
	VerifierName         string    `db:"verifier_name" json:"verifierName"`
	MobileNumber         *string   `db:"mobile_number" json:"mobileNumber"`
	Relationship         *string   `db:"relationship" json:"relationship"`
	ResidenceType        *string   `db:"residence_type" json:"residenceType"`
	ResidingSince        *string   `db:"residing_since" json:"residingSince"`
	Landmark             *string   `db:"landmark" json:"landmark"`
	GovtIDType           *string   `db:"govt_id_type" json:"govtIdType"`
	GovtIDPhotoURLs      []string  `db:"govt_id_photo_urls" json:"govtIdPhotoUrls"`
	SelfiePhotoURL       *string   `db:"selfie_photo_url" json:"selfiePhotoUrl"`
	OutsideHousePhotoURL *string   `db:"outside_house_photo_url" json:"outsideHousePhotoUrl"`
	AddressLat           float64   `db:"address_lat" json:"addressLat"`
	AddressLng           float64   `db:"address_lng" json:"addressLng"`
	GPSLat               float64   `db:"gps_lat" json:"gpsLat"`
	GPSLng               float64   `db:"gps_lng" json:"gpsLng"`
	GPSAccuracy          *float64  `db:"gps_accuracy" json:"gpsAccuracy"`
	DistanceMeters       float64   `db:"distance_meters" json:"distanceMeters"`
	StaticMapURL         string    `db:"static_map_url" json:"staticMapUrl"`
	ResponsePDF          string    `db:"response_pdf" json:"responsePDF"`
	SubmittedAt          time.Time `db:"submitted_at" json:"submittedAt"`
}
