package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"trinetra/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploads struct {
	files map[string]string
	saved []string
	err   error
}

func (f *fakeUploads) Has(key string) bool {
	_, ok := f.files[key]
	return ok
}

func (f *fakeUploads) Save(_ context.Context, key, subfolder string) (types.StoredFile, error) {
	if f.err != nil {
		return types.StoredFile{}, f.err
	}
	f.saved = append(f.saved, key)
	name := f.files[key]
	return types.StoredFile{
		Key:              subfolder + "/" + name,
		URL:              "/uploads/" + subfolder + "/" + name,
		OriginalFilename: name,
	}, nil
}

type fakeImages struct {
	calls int
}

func (f *fakeImages) SaveDataURL(_ context.Context, dataURL, subfolder, name string) (types.StoredFile, error) {
	f.calls++
	return types.StoredFile{URL: "/uploads/" + subfolder + "/" + name + ".png"}, nil
}

func newTestReconciler(mode Mode, uploads Uploads) *Reconciler {
	r := New(mode, uploads, &fakeImages{})
	n := 0
	r.newID = func(prefix string) string {
		n++
		return fmt.Sprintf("%s_%d", prefix, n)
	}
	return r
}

func TestDocumentsLadder(t *testing.T) {
	prior := []types.UploadedDocument{
		{ID: "doc_a", DocumentType: "Aadhaar", FileURL: "/uploads/address_proofs/old-a.pdf", OriginalFilename: "old-a.pdf"},
		{ID: "doc_b", DocumentType: "Rent agreement", FileURL: "/uploads/address_proofs/old-b.pdf", OriginalFilename: "old-b.pdf"},
	}

	t.Run("upload replaces the prior file at its slot", func(t *testing.T) {
		uploads := &fakeUploads{files: map[string]string{"addressDoc_0": "new-a.pdf"}}
		r := newTestReconciler(Draft, uploads)

		out, err := r.Documents(context.Background(), []types.ClientDocument{{ID: "doc_a", DocumentType: "Aadhaar", FileURL: prior[0].FileURL}}, KeyAddressDoc, SubfolderAddress, prior)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "/uploads/address_proofs/new-a.pdf", out[0].FileURL)
		assert.Equal(t, "new-a.pdf", out[0].OriginalFilename)
		assert.Equal(t, types.FlexID("doc_a"), out[0].ID)
		assert.Equal(t, []string{"addressDoc_0"}, uploads.saved)
	})

	t.Run("client url is kept as is", func(t *testing.T) {
		r := newTestReconciler(Draft, nil)

		out, err := r.Documents(context.Background(), []types.ClientDocument{{ID: "doc_b", FileURL: prior[1].FileURL}}, KeyAddressDoc, SubfolderAddress, prior)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, prior[1].FileURL, out[0].FileURL)
		assert.Equal(t, "old-b.pdf", out[0].OriginalFilename)
	})

	client := []types.ClientDocument{
		{ID: "doc_a", DocumentType: "Aadhaar"},
		{ID: "doc_b", DocumentType: "Rent agreement", FileURL: prior[1].FileURL},
	}

	t.Run("draft drops a slot with neither upload nor url", func(t *testing.T) {
		r := newTestReconciler(Draft, nil)

		out, err := r.Documents(context.Background(), client, KeyAddressDoc, SubfolderAddress, prior)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, types.FlexID("doc_b"), out[0].ID)
	})

	t.Run("submit carries the prior file forward for the same slot", func(t *testing.T) {
		r := newTestReconciler(Submit, nil)

		out, err := r.Documents(context.Background(), client, KeyAddressDoc, SubfolderAddress, prior)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, prior[0].FileURL, out[0].FileURL)
		assert.Equal(t, "old-a.pdf", out[0].OriginalFilename)
		assert.Equal(t, prior[1].FileURL, out[1].FileURL)
	})

	t.Run("submit never resurrects a document the client did not list", func(t *testing.T) {
		r := newTestReconciler(Submit, nil)

		out, err := r.Documents(context.Background(), client[1:], KeyAddressDoc, SubfolderAddress, prior)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, types.FlexID("doc_b"), out[0].ID)
	})

	t.Run("null list", func(t *testing.T) {
		out, err := newTestReconciler(Submit, nil).Documents(context.Background(), nil, KeyAddressDoc, SubfolderAddress, prior)
		require.NoError(t, err)
		assert.Equal(t, prior, out)

		out, err = newTestReconciler(Draft, nil).Documents(context.Background(), nil, KeyAddressDoc, SubfolderAddress, prior)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("order follows the client and new documents get ids", func(t *testing.T) {
		uploads := &fakeUploads{files: map[string]string{"addressDoc_1": "second.pdf"}}
		r := newTestReconciler(Draft, uploads)

		out, err := r.Documents(context.Background(), []types.ClientDocument{
			{FileURL: "/uploads/address_proofs/first.pdf"},
			{DocumentType: "Electricity bill"},
			{ID: "7", FileURL: "/uploads/address_proofs/third.pdf"},
		}, KeyAddressDoc, SubfolderAddress, nil)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, "/uploads/address_proofs/first.pdf", out[0].FileURL)
		assert.Equal(t, "/uploads/address_proofs/second.pdf", out[1].FileURL)
		assert.Equal(t, "/uploads/address_proofs/third.pdf", out[2].FileURL)
		assert.Equal(t, types.FlexID("doc_1"), out[0].ID)
		assert.Equal(t, types.FlexID("doc_2"), out[1].ID)
		assert.Equal(t, types.FlexID("7"), out[2].ID)
	})

	t.Run("storage failure aborts", func(t *testing.T) {
		uploads := &fakeUploads{files: map[string]string{"addressDoc_0": "x.pdf"}, err: errors.New("disk full")}
		_, err := newTestReconciler(Draft, uploads).Documents(context.Background(), []types.ClientDocument{{}}, KeyAddressDoc, SubfolderAddress, nil)
		assert.ErrorContains(t, err, "disk full")
	})
}

func TestDraftIsIdempotent(t *testing.T) {
	payload := func() *types.BGVPayload {
		return &types.BGVPayload{
			Email: "asha@example.com",
			AddressVerification: &types.AddressVerificationInput{
				UploadedDocuments: []types.ClientDocument{
					{DocumentType: "Aadhaar", FileURL: "/uploads/address_proofs/a.pdf"},
					{DocumentType: "Passport", FileURL: "/uploads/address_proofs/b.pdf"},
				},
			},
			EducationVerification: []types.EducationEntryInput{
				{ID: "1718000000000", UploadedDocuments: []types.ClientDocument{{FileURL: "/uploads/education_proofs/deg.pdf"}}},
			},
		}
	}

	first, err := newTestReconciler(Draft, nil).Form(context.Background(), "tok", payload(), nil)
	require.NoError(t, err)

	saved := &types.BGVForm{
		AddressVerification:   first.AddressVerification,
		EducationVerification: first.Education,
	}

	second, err := newTestReconciler(Draft, nil).Form(context.Background(), "tok", payload(), saved)
	require.NoError(t, err)

	assert.Equal(t, first.AddressVerification.UploadedDocuments, second.AddressVerification.UploadedDocuments)
	assert.Equal(t, first.Education, second.Education)
}

func TestSubmitDoesNotRegressDraft(t *testing.T) {
	prior := &types.BGVForm{
		PassportPhotoURL:  strPtr("/uploads/passport_photos/p.jpg"),
		SignatureImageURL: strPtr("/uploads/signatures/s.png"),
		AddressVerification: &types.AddressVerification{
			UploadedDocuments: []types.UploadedDocument{{ID: "doc_1", FileURL: "/uploads/address_proofs/a.pdf"}},
		},
		EmploymentVerification: []types.EmploymentEntry{
			{ID: "emp_1", UploadedDocuments: []types.UploadedDocument{{ID: "doc_2", FileURL: "/uploads/employment_proofs/offer.pdf"}}},
		},
		IdentityVerification: []types.IdentityEntry{
			{ID: "idt_1", UploadedDocuments: []types.UploadedDocument{{ID: "doc_3", FileURL: "/uploads/identity_proofs/pan.jpg"}}},
		},
	}

	payload := &types.BGVPayload{
		Email:           "asha@example.com",
		PersonalDetails: &types.PersonalDetailsInput{PersonalDetails: types.PersonalDetails{FullName: "Asha Patel"}},
		AddressVerification: &types.AddressVerificationInput{
			UploadedDocuments: []types.ClientDocument{{ID: "doc_1"}},
		},
		EmploymentVerification: []types.EmploymentEntryInput{
			{ID: "emp_1", UploadedDocuments: []types.ClientDocument{{ID: "doc_2"}}},
		},
	}

	res, err := newTestReconciler(Submit, nil).Form(context.Background(), "tok", payload, prior)
	require.NoError(t, err)

	assert.Equal(t, "/uploads/passport_photos/p.jpg", res.PassportPhotoURL)
	assert.Equal(t, "/uploads/signatures/s.png", res.SignatureImageURL)
	require.Len(t, res.AddressVerification.UploadedDocuments, 1)
	assert.Equal(t, "/uploads/address_proofs/a.pdf", res.AddressVerification.UploadedDocuments[0].FileURL)
	require.Len(t, res.Employment, 1)
	assert.Equal(t, "/uploads/employment_proofs/offer.pdf", res.Employment[0].UploadedDocuments[0].FileURL)
	assert.Equal(t, prior.IdentityVerification, res.Identity)

	draft, err := newTestReconciler(Draft, nil).Form(context.Background(), "tok", payload, prior)
	require.NoError(t, err)
	assert.Empty(t, draft.PassportPhotoURL)
	assert.Empty(t, draft.AddressVerification.UploadedDocuments)
	assert.Empty(t, draft.Employment[0].UploadedDocuments)
	assert.Nil(t, draft.Identity)
}

func TestEntryIdentity(t *testing.T) {
	prior := &types.BGVForm{
		EducationVerification: []types.EducationEntry{
			{ID: "edu_known", UploadedDocuments: []types.UploadedDocument{{ID: "doc_9", FileURL: "/uploads/education_proofs/old.pdf"}}},
		},
	}

	payload := &types.BGVPayload{
		EducationVerification: []types.EducationEntryInput{
			{ID: "edu_known", UploadedDocuments: []types.ClientDocument{{ID: "doc_9"}}},
			{ID: "edu_stranger", UploadedDocuments: []types.ClientDocument{{ID: "doc_9"}}},
			{UploadedDocuments: []types.ClientDocument{}},
		},
	}

	res, err := newTestReconciler(Submit, nil).Form(context.Background(), "tok", payload, prior)
	require.NoError(t, err)
	require.Len(t, res.Education, 3)

	assert.Equal(t, types.FlexID("edu_known"), res.Education[0].ID)
	require.Len(t, res.Education[0].UploadedDocuments, 1)

	assert.Equal(t, types.FlexID("edu_stranger"), res.Education[1].ID)
	assert.Empty(t, res.Education[1].UploadedDocuments)

	assert.Equal(t, types.FlexID("edu_1"), res.Education[2].ID)
}

func TestSignatureDataURL(t *testing.T) {
	images := &fakeImages{}
	r := New(Draft, nil, images)

	res, err := r.Form(context.Background(), "tok123", &types.BGVPayload{
		Authorization: &types.AuthorizationInput{SignatureDataURL: "data:image/png;base64,iVBORw0KGgo="},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/signatures/sig_tok123_draft.png", res.SignatureImageURL)
	assert.Equal(t, 1, images.calls)
}

func TestPassportPhotoUpload(t *testing.T) {
	uploads := &fakeUploads{files: map[string]string{KeyPassportPhoto: "me.jpg"}}
	res, err := newTestReconciler(Submit, uploads).Form(context.Background(), "tok", &types.BGVPayload{}, &types.BGVForm{PassportPhotoURL: strPtr("/old.jpg")})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/passport_photos/me.jpg", res.PassportPhotoURL)
}

func strPtr(s string) *string {
	return &s
}
