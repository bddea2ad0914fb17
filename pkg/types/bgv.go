package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// FlexID is an identifier that clients may send as either a JSON string or a
// JSON number. It is always stored and emitted as a string.
type FlexID string

func (id *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

type BGVStatus string

const (
	BGVStatusDraft     BGVStatus = "draft"
	BGVStatusSubmitted BGVStatus = "submitted"
)

// ClientDocument is a document slot as the client describes it. FileURL is set
// when the file was stored by an earlier save.
type ClientDocument struct {
	ID           FlexID `json:"id"`
	DocumentType string `json:"documentType"`
	FileName     string `json:"fileName"`
	FileType     string `json:"fileType"`
	FileURL      string `json:"fileUrl"`
}

type UploadedDocument struct {
	ID               FlexID `json:"id"`
	DocumentType     string `json:"documentType,omitempty"`
	FileURL          string `json:"fileUrl"`
	OriginalFilename string `json:"originalFilename,omitempty"`
}

type StoredFile struct {
	Key              string `json:"key"`
	URL              string `json:"url"`
	OriginalFilename string `json:"originalFilename"`
}

type PersonalDetails struct {
	FullName      string `json:"fullName"`
	FormerName    string `json:"formerName,omitempty"`
	FatherName    string `json:"fatherName,omitempty"`
	SpouseName    string `json:"spouseName,omitempty"`
	DOB           string `json:"dob,omitempty"`
	Gender        string `json:"gender,omitempty"`
	Nationality   string `json:"nationality,omitempty"`
	MaritalStatus string `json:"maritalStatus,omitempty"`
}

type PhotoRef struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileURL  string `json:"fileUrl"`
}

type PersonalDetailsInput struct {
	PersonalDetails
	PassportPhoto *PhotoRef `json:"passportPhoto"`
}

type Address struct {
	HouseNo    string `json:"houseNo"`
	StreetArea string `json:"streetArea"`
	Landmark   string `json:"landmark,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PinCode    string `json:"pinCode"`
	Country    string `json:"country"`
}

func (a *Address) Line() string {
	if a == nil {
		return ""
	}
	parts := make([]string, 0, 7)
	for _, v := range []string{a.HouseNo, a.StreetArea, a.Landmark, a.City, a.State, a.PinCode, a.Country} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

type Tenure struct {
	FromMonth string `json:"fromMonth"`
	FromYear  string `json:"fromYear"`
	ToMonth   string `json:"toMonth,omitempty"`
	ToYear    string `json:"toYear,omitempty"`
	IsPresent bool   `json:"isPresent"`
}

func (t *Tenure) String() string {
	if t == nil {
		return ""
	}
	to := fmt.Sprintf("%s/%s", t.ToMonth, t.ToYear)
	if t.IsPresent {
		to = "Present"
	}
	return fmt.Sprintf("%s/%s - %s", t.FromMonth, t.FromYear, to)
}

type AddressDetails struct {
	CurrentAddress           *Address `json:"currentAddress"`
	CurrentTenure            *Tenure  `json:"currentTenure"`
	IsPermanentSameAsCurrent bool     `json:"isPermanentSameAsCurrent"`
	PermanentAddress         *Address `json:"permanentAddress"`
	PermanentTenure          *Tenure  `json:"permanentTenure"`
}

type AddressVerificationInput struct {
	AddressDetails
	UploadedDocuments []ClientDocument `json:"uploadedDocuments"`
}

type AddressVerification struct {
	AddressDetails
	UploadedDocuments []UploadedDocument `json:"uploadedDocuments"`
}

type EducationDetails struct {
	Qualification          string `json:"qualification"`
	OtherQualificationName string `json:"otherQualificationName,omitempty"`
	SchoolNameAddress      string `json:"schoolNameAddress"`
	JoiningMonth           string `json:"joiningMonth"`
	JoiningYear            string `json:"joiningYear"`
	PassingMonth           string `json:"passingMonth"`
	PassingYear            string `json:"passingYear"`
	OtherDetails           string `json:"otherDetails,omitempty"`
}

type EducationEntryInput struct {
	ID FlexID `json:"id"`
	EducationDetails
	UploadedDocuments []ClientDocument `json:"uploadedDocuments"`
}

type EducationEntry struct {
	ID FlexID `json:"id"`
	EducationDetails
	UploadedDocuments []UploadedDocument `json:"uploadedDocuments"`
}

type EmploymentDetails struct {
	EmployerName      string `json:"employerName"`
	Designation       string `json:"designation"`
	CompanyAddress    string `json:"companyAddress,omitempty"`
	JoiningMonth      string `json:"joiningMonth"`
	JoiningYear       string `json:"joiningYear"`
	LastWorkingMonth  string `json:"lastWorkingMonth,omitempty"`
	LastWorkingYear   string `json:"lastWorkingYear,omitempty"`
	IsPresentEmployee bool   `json:"isPresentEmployee"`
	ReasonForLeaving  string `json:"reasonForLeaving,omitempty"`
}

type EmploymentEntryInput struct {
	ID FlexID `json:"id"`
	EmploymentDetails
	UploadedDocuments []ClientDocument `json:"uploadedDocuments"`
}

type EmploymentEntry struct {
	ID FlexID `json:"id"`
	EmploymentDetails
	UploadedDocuments []UploadedDocument `json:"uploadedDocuments"`
}

type IdentityDetails struct {
	IDType          string `json:"idType"`
	OtherIDTypeName string `json:"otherIdTypeName,omitempty"`
	IDNumber        string `json:"idNumber"`
}

type IdentityEntryInput struct {
	ID FlexID `json:"id"`
	IdentityDetails
	UploadedDocuments []ClientDocument `json:"uploadedDocuments"`
}

type IdentityEntry struct {
	ID FlexID `json:"id"`
	IdentityDetails
	UploadedDocuments []UploadedDocument `json:"uploadedDocuments"`
}

type AuthorizationDetails struct {
	EmployerNameForLOA string `json:"employerNameForLOA"`
	Place              string `json:"place"`
	DeclarationDate    string `json:"declarationDate,omitempty"`
}

type AuthorizationInput struct {
	AuthorizationDetails
	SignatureDataURL string `json:"signatureDataUrl"`
}

// BGVPayload is the jsonData part of a draft save or submission.
type BGVPayload struct {
	Email                  string                    `json:"email"`
	Mobile                 string                    `json:"mobile"`
	AlternateMobile        string                    `json:"alternateMobile"`
	PersonalDetails        *PersonalDetailsInput     `json:"personalDetails"`
	AddressVerification    *AddressVerificationInput `json:"addressVerification"`
	EducationVerification  []EducationEntryInput     `json:"educationVerification"`
	EmploymentVerification []EmploymentEntryInput    `json:"employmentVerification"`
	IdentityVerification   []IdentityEntryInput      `json:"identityVerification"`
	Authorization          *AuthorizationInput       `json:"authorization"`
}

func (p *BGVPayload) FullName() string {
	if p.PersonalDetails == nil {
		return ""
	}
	return strings.TrimSpace(p.PersonalDetails.FullName)
}

// Validate checks the payload for the given operation, OpDraft or OpSubmit.
// It normalizes dob and declarationDate to ISO dates in place.
func (p *BGVPayload) Validate(op string) error {
	p.Email = strings.TrimSpace(p.Email)
	p.Mobile = strings.TrimSpace(p.Mobile)
	p.AlternateMobile = strings.TrimSpace(p.AlternateMobile)

	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return Invalid("Email address is not valid.")
		}
	}
	if p.Mobile != "" && !ValidMobile(p.Mobile) {
		return Invalid("Mobile number must be a valid 10 digit number.")
	}
	if p.AlternateMobile != "" && !ValidMobile(p.AlternateMobile) {
		return Invalid("Alternate mobile number must be a valid 10 digit number.")
	}

	switch op {
	case OpSubmit:
		if p.Email == "" || p.FullName() == "" {
			return Invalid("Required fields like email or full name are missing.")
		}
	default:
		if p.Email == "" && p.Mobile == "" {
			return Invalid("An email address or mobile number is required to save a draft.")
		}
	}

	if p.PersonalDetails != nil && p.PersonalDetails.DOB != "" {
		dob, err := ParseISODate(p.PersonalDetails.DOB)
		if err != nil {
			return Invalid("Date of birth is not a valid date.")
		}
		p.PersonalDetails.DOB = dob
	}

	if p.Authorization != nil && p.Authorization.DeclarationDate != "" {
		date, err := ParseDeclarationDate(p.Authorization.DeclarationDate)
		if err != nil {
			return Invalid("Declaration date must be in DD/MM/YYYY format.")
		}
		p.Authorization.DeclarationDate = date
	}

	return nil
}

const isoDate = "2006-01-02"

// ParseISODate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns YYYY-MM-DD.
func ParseISODate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(isoDate, s); err == nil {
		return t.Format(isoDate), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", err
	}
	return t.Format(isoDate), nil
}

// ParseDeclarationDate accepts DD/MM/YYYY, or an already normalized ISO date,
// and returns YYYY-MM-DD.
func ParseDeclarationDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("02/01/2006", s); err == nil {
		return t.Format(isoDate), nil
	}
	return ParseISODate(s)
}

type BGVForm struct {
	ID                     string                `db:"id" json:"id"`
	FormLinkToken          string                `db:"form_link_token" json:"formLinkToken"`
	Status                 BGVStatus             `db:"status" json:"status"`
	Email                  *string               `db:"email" json:"email"`
	Mobile                 *string               `db:"mobile" json:"mobile"`
	AlternateMobile        *string               `db:"alternate_mobile" json:"alternateMobile"`
	PassportPhotoURL       *string               `db:"passport_photo_url" json:"passportPhotoUrl"`
	SignatureImageURL      *string               `db:"signature_image_url" json:"signatureImageUrl"`
	PersonalDetails        *PersonalDetails      `db:"personal_details" json:"personalDetails"`
	AddressVerification    *AddressVerification  `db:"address_verification" json:"addressVerification"`
	EducationVerification  []EducationEntry      `db:"education_verification" json:"educationVerification"`
	EmploymentVerification []EmploymentEntry     `db:"employment_verification" json:"employmentVerification"`
	IdentityVerification   []IdentityEntry       `db:"identity_verification" json:"identityVerification"`
	Authorization          *AuthorizationDetails `db:"authorization_details" json:"authorization"`
	DraftExpiresAt         *time.Time            `db:"draft_expires_at" json:"draftExpiresAt"`
	ResponsePDF            *string               `db:"response_pdf" json:"responsePDF"`
	SubmittedAt            *time.Time            `db:"submitted_at" json:"submittedAt"`
	CreatedAt              time.Time             `db:"created_at" json:"createdAt"`
	UpdatedAt              time.Time             `db:"updated_at" json:"updatedAt"`
}

func (f *BGVForm) FullName() string {
	if f.PersonalDetails == nil {
		return ""
	}
	return f.PersonalDetails.FullName
}
