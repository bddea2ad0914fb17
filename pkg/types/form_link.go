package types

import (
	"strings"
	"time"
)

type FormType string

const (
	FormTypeAVF FormType = "AVF"
	FormTypeBGV FormType = "BGV"
)

func ParseFormType(s string) (FormType, bool) {
	switch FormType(strings.ToUpper(strings.TrimSpace(s))) {
	case FormTypeAVF:
		return FormTypeAVF, true
	case FormTypeBGV:
		return FormTypeBGV, true
	}
	return "", false
}

type LinkStatus string

// The mixed casing matches values already stored by earlier deployments.
const (
	LinkStatusNotClicked LinkStatus = "not_clicked"
	LinkStatusPending    LinkStatus = "pending"
	LinkStatusClicked    LinkStatus = "Clicked"
	LinkStatusDraft      LinkStatus = "Draft"
	LinkStatusSubmitted  LinkStatus = "submitted"
	LinkStatusExpired    LinkStatus = "expired"
)

var (
	UnopenedStatuses = []LinkStatus{LinkStatusNotClicked, LinkStatusPending}
	TerminalStatuses = []LinkStatus{LinkStatusSubmitted, LinkStatusExpired}
)

func (s LinkStatus) Terminal() bool {
	return s == LinkStatusSubmitted || s == LinkStatusExpired
}

func (s LinkStatus) Unopened() bool {
	return s == LinkStatusNotClicked || s == LinkStatusPending
}

// CanTransition reports whether a link in status s may move to status to.
// Submitted and expired are terminal. Expiry is reachable from every open status.
func (s LinkStatus) CanTransition(to LinkStatus) bool {
	if s.Terminal() {
		return false
	}

	switch to {
	case LinkStatusClicked:
		return s.Unopened()
	case LinkStatusDraft, LinkStatusSubmitted, LinkStatusExpired:
		return true
	}

	return false
}

type CandidateAddress struct {
	HouseNo *string `db:"house_no" json:"houseNo"`
	Area    *string `db:"area" json:"area"`
	Nearby  *string `db:"nearby" json:"nearby"`
	City    *string `db:"city" json:"city"`
	State   *string `db:"state" json:"state"`
	ZipCode *string `db:"zip_code" json:"zipCode"`
	Country *string `db:"country" json:"country"`
}

// Line renders the address as a single line suitable for geocoding.
func (a CandidateAddress) Line() string {
	parts := make([]string, 0, 7)
	for _, p := range []*string{a.HouseNo, a.Area, a.Nearby, a.City, a.State, a.ZipCode, a.Country} {
		if p == nil {
			continue
		}
		if v := strings.TrimSpace(*p); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

type FormLink struct {
	ID            string     `db:"id" json:"id"`
	Token         string     `db:"token" json:"token"`
	FormType      FormType   `db:"form_type" json:"formType"`
	Status        LinkStatus `db:"status" json:"status"`
	CreatedBy     string     `db:"created_by" json:"createdBy"`
	CandidateName *string    `db:"candidate_name" json:"candidateName"`
	CandidateAddress
	ResponsePDF    *string    `db:"response_pdf" json:"responsePDF"`
	DraftExpiresAt *time.Time `db:"draft_expires_at" json:"draftExpiresAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// Expired reports whether an open link's draft window has elapsed at now.
func (l *FormLink) Expired(now time.Time) bool {
	if l.Status.Terminal() || l.DraftExpiresAt == nil {
		return false
	}
	return now.After(*l.DraftExpiresAt)
}

// EffectiveStatus is the stored status with lazy draft expiry applied.
func (l *FormLink) EffectiveStatus(now time.Time) LinkStatus {
	if l.Expired(now) {
		return LinkStatusExpired
	}
	return l.Status
}

func (l *FormLink) Candidate() string {
	if l.CandidateName == nil {
		return ""
	}
	return *l.CandidateName
}

type CreateFormLinkInput struct {
	FormType      string `json:"formType"`
	CandidateName string `json:"candidateName"`
	HouseNo       string `json:"houseNo"`
	Area          string `json:"area"`
	Nearby        string `json:"nearby"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zipCode"`
	Country       string `json:"country"`
}

type FormLinkFilter struct {
	Status    string `form:"status"`
	FormType  string `form:"formType"`
	CreatedBy string `form:"createdBy"`
	Limit     uint64 `form:"limit"`

	// Creators restricts the listing to links created by these operators.
	// A nil slice means no restriction.
	Creators []string `form:"-"`
}

type DeleteByIDsInput struct {
	IDs []string `json:"ids"`
}

// ReportItem is a generated verification report as listed to operators.
type ReportItem struct {
	ID            string    `db:"id" json:"id"`
	Token         string    `db:"token" json:"token"`
	FormType      FormType  `db:"form_type" json:"formType"`
	CandidateName *string   `db:"candidate_name" json:"candidateName"`
	FileURL       string    `db:"response_pdf" json:"fileUrl"`
	CreatedBy     string    `db:"created_by" json:"createdBy"`
	SubmittedAt   time.Time `db:"submitted_at" json:"createdAt"`
}
