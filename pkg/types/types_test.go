package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexID(t *testing.T) {
	var doc struct {
		ID FlexID `json:"id"`
	}

	for raw, want := range map[string]FlexID{
		`{"id":"edu-1"}`:  "edu-1",
		`{"id":" x "}`:    "x",
		`{"id":17}`:       "17",
		`{"id":17.5}`:     "17.5",
		`{"id":null}`:     "",
		`{"id":12345678}`: "12345678",
	} {
		require.NoError(t, json.Unmarshal([]byte(raw), &doc), raw)
		assert.Equal(t, want, doc.ID, raw)
	}

	assert.Error(t, json.Unmarshal([]byte(`{"id":true}`), &doc))
}

func TestParseFormType(t *testing.T) {
	ft, ok := ParseFormType(" avf ")
	assert.True(t, ok)
	assert.Equal(t, FormTypeAVF, ft)

	ft, ok = ParseFormType("BGV")
	assert.True(t, ok)
	assert.Equal(t, FormTypeBGV, ft)

	_, ok = ParseFormType("KYC")
	assert.False(t, ok)
}

func TestLinkStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to LinkStatus
		want     bool
	}{
		{LinkStatusNotClicked, LinkStatusClicked, true},
		{LinkStatusPending, LinkStatusClicked, true},
		{LinkStatusClicked, LinkStatusClicked, false},
		{LinkStatusClicked, LinkStatusDraft, true},
		{LinkStatusDraft, LinkStatusDraft, true},
		{LinkStatusDraft, LinkStatusSubmitted, true},
		{LinkStatusNotClicked, LinkStatusSubmitted, true},
		{LinkStatusDraft, LinkStatusExpired, true},
		{LinkStatusSubmitted, LinkStatusDraft, false},
		{LinkStatusSubmitted, LinkStatusExpired, false},
		{LinkStatusExpired, LinkStatusSubmitted, false},
		{LinkStatusClicked, LinkStatusNotClicked, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	link := &FormLink{Status: LinkStatusDraft, DraftExpiresAt: &future}
	assert.Equal(t, LinkStatusDraft, link.EffectiveStatus(now))

	link.DraftExpiresAt = &past
	assert.Equal(t, LinkStatusExpired, link.EffectiveStatus(now))

	link.Status = LinkStatusSubmitted
	assert.Equal(t, LinkStatusSubmitted, link.EffectiveStatus(now))

	link = &FormLink{Status: LinkStatusClicked}
	assert.Equal(t, LinkStatusClicked, link.EffectiveStatus(now))
}

func TestCandidateAddressLine(t *testing.T) {
	house, city, blank := "12", "Ahmedabad", "  "
	a := CandidateAddress{HouseNo: &house, Area: &blank, City: &city}
	assert.Equal(t, "12, Ahmedabad", a.Line())
	assert.Empty(t, CandidateAddress{}.Line())
}

func TestGPSFix(t *testing.T) {
	valid := &GPSFix{Lat: json.RawMessage(`23.02`), Lng: json.RawMessage(`72.57`)}
	c, err := valid.Coordinate()
	require.NoError(t, err)
	assert.Equal(t, Coordinate{Lat: 23.02, Lng: 72.57}, c)

	for name, fix := range map[string]*GPSFix{
		"nil":          nil,
		"string":       {Lat: json.RawMessage(`"23.02"`), Lng: json.RawMessage(`72.57`)},
		"null":         {Lat: json.RawMessage(`null`), Lng: json.RawMessage(`72.57`)},
		"missing":      {Lat: json.RawMessage(`23.02`)},
		"out of range": {Lat: json.RawMessage(`123`), Lng: json.RawMessage(`72.57`)},
	} {
		_, err := fix.Coordinate()
		var validation *ValidationError
		assert.True(t, errors.As(err, &validation), name)
	}
}

func TestValidMobile(t *testing.T) {
	assert.True(t, ValidMobile("9876543210"))
	assert.True(t, ValidMobile("+91 98765-43210"))
	assert.False(t, ValidMobile("98765"))
	assert.False(t, ValidMobile("phone"))
}

func TestAVFSubmissionValidate(t *testing.T) {
	assert.Error(t, (&AVFSubmission{}).Validate())
	assert.NoError(t, (&AVFSubmission{Response: "Ravi"}).Validate())
	assert.Error(t, (&AVFSubmission{FullName: "Ravi", MobileNumber: "12"}).Validate())
	assert.Error(t, (&AVFSubmission{FullName: "Ravi", GovtIDPhotos: []string{"data:"}}).Validate())
}

func TestBGVPayloadValidate(t *testing.T) {
	draft := &BGVPayload{Mobile: "9876543210"}
	assert.NoError(t, draft.Validate(OpDraft))
	assert.Error(t, draft.Validate(OpSubmit))

	assert.Error(t, (&BGVPayload{}).Validate(OpDraft))
	assert.Error(t, (&BGVPayload{Email: "not-an-email"}).Validate(OpDraft))

	p := &BGVPayload{
		Email:           "asha@example.com",
		PersonalDetails: &PersonalDetailsInput{PersonalDetails: PersonalDetails{FullName: "Asha", DOB: "1994-07-21T00:00:00Z"}},
		Authorization:   &AuthorizationInput{AuthorizationDetails: AuthorizationDetails{DeclarationDate: "02/03/2026"}},
	}
	require.NoError(t, p.Validate(OpSubmit))
	assert.Equal(t, "1994-07-21", p.PersonalDetails.DOB)
	assert.Equal(t, "2026-03-02", p.Authorization.DeclarationDate)

	p.Authorization.DeclarationDate = "March 2nd"
	assert.Error(t, p.Validate(OpSubmit))
}

func TestTenureString(t *testing.T) {
	assert.Equal(t, "01/2020 - 06/2023", (&Tenure{FromMonth: "01", FromYear: "2020", ToMonth: "06", ToYear: "2023"}).String())
	assert.Equal(t, "01/2020 - Present", (&Tenure{FromMonth: "01", FromYear: "2020", IsPresent: true}).String())
}

func TestUserCan(t *testing.T) {
	var nobody *User
	assert.False(t, nobody.Can(PermViewUsers))

	sudo := &User{Role: RoleSudo}
	assert.True(t, sudo.Can(PermEditUser))

	admin := &User{Role: RoleAdmin, Permissions: Permissions{PermViewResponses: true}}
	assert.True(t, admin.Can(PermViewResponses))
	assert.False(t, admin.Can(PermEditUser))
}

func TestErrors(t *testing.T) {
	assert.ErrorIs(t, ErrFormLinkNotFound, ErrNotFound)
	assert.ErrorIs(t, Unauthorized("nope"), ErrUnauthorized)

	expired := &StateError{Status: LinkStatusExpired, Op: OpSubmit}
	assert.Equal(t, "This form link has expired.", expired.Error())

	submitted := &StateError{Status: LinkStatusSubmitted, Op: OpSubmit}
	assert.Equal(t, "This form has already been submitted.", submitted.Error())
}
