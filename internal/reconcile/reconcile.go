// Package reconcile merges the documents a respondent sends on a draft save or
// final submission with files uploaded in the same request and the record
// persisted by earlier saves.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"trinetra/internal/utils"
	"trinetra/pkg/types"
)

type Mode int

const (
	// Draft persists exactly what the client sent plus new uploads.
	Draft Mode = iota
	// Submit additionally carries forward prior files the client omitted.
	Submit
)

func (m Mode) String() string {
	if m == Submit {
		return "submit"
	}
	return "draft"
}

// Multipart keys and storage subfolders for each section.
const (
	KeyPassportPhoto = "passportPhotoFile"
	KeyAddressDoc    = "addressDoc"

	SubfolderPassport   = "passport_photos"
	SubfolderAddress    = "address_proofs"
	SubfolderEducation  = "education_proofs"
	SubfolderEmployment = "employment_proofs"
	SubfolderIdentity   = "identity_proofs"
	SubfolderSignature  = "signatures"
)

func EducationDocKey(entry int) string  { return fmt.Sprintf("education_%d_doc", entry) }
func EmploymentDocKey(entry int) string { return fmt.Sprintf("employment_%d_doc", entry) }
func IdentityDocKey(entry int) string   { return fmt.Sprintf("identity_%d_doc", entry) }

// Uploads exposes the files attached to the current request.
type Uploads interface {
	Has(key string) bool
	Save(ctx context.Context, key, subfolder string) (types.StoredFile, error)
}

// ImageSaver persists base64 image data URLs such as drawn signatures.
type ImageSaver interface {
	SaveDataURL(ctx context.Context, dataURL, subfolder, name string) (types.StoredFile, error)
}

type Reconciler struct {
	mode    Mode
	uploads Uploads
	images  ImageSaver
	newID   func(prefix string) string
}

// New returns a Reconciler for mode. uploads and images may be nil when the
// request carries no files.
func New(mode Mode, uploads Uploads, images ImageSaver) *Reconciler {
	return &Reconciler{
		mode:    mode,
		uploads: uploads,
		images:  images,
		newID:   utils.PrefixedID,
	}
}

type Result struct {
	PassportPhotoURL    string
	SignatureImageURL   string
	AddressVerification *types.AddressVerification
	Education           []types.EducationEntry
	Employment          []types.EmploymentEntry
	Identity            []types.IdentityEntry
}

// Form reconciles every document bearing section of payload against prior,
// which is nil when nothing was saved before.
func (r *Reconciler) Form(ctx context.Context, token string, payload *types.BGVPayload, prior *types.BGVForm) (*Result, error) {
	if prior == nil {
		prior = &types.BGVForm{}
	}

	var (
		res = new(Result)
		err error
	)

	res.PassportPhotoURL, err = r.passportPhoto(ctx, payload, prior)
	if err != nil {
		return nil, err
	}

	res.SignatureImageURL, err = r.signature(ctx, token, payload, prior)
	if err != nil {
		return nil, err
	}

	res.AddressVerification, err = r.address(ctx, payload.AddressVerification, prior.AddressVerification)
	if err != nil {
		return nil, err
	}

	res.Education, err = r.education(ctx, payload.EducationVerification, prior.EducationVerification)
	if err != nil {
		return nil, err
	}

	res.Employment, err = r.employment(ctx, payload.EmploymentVerification, prior.EmploymentVerification)
	if err != nil {
		return nil, err
	}

	res.Identity, err = r.identity(ctx, payload.IdentityVerification, prior.IdentityVerification)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Documents applies the per slot ladder to one document list: a fresh upload
// at key_i wins, then the client's fileUrl, then (on submit only) the prior
// document with the same id or fileUrl. Slots that resolve to nothing are
// dropped. A nil client list on submit keeps the prior list unchanged.
func (r *Reconciler) Documents(ctx context.Context, client []types.ClientDocument, key, subfolder string, prior []types.UploadedDocument) ([]types.UploadedDocument, error) {
	if client == nil {
		if r.mode == Submit && prior != nil {
			return append([]types.UploadedDocument{}, prior...), nil
		}
		return []types.UploadedDocument{}, nil
	}

	byID := make(map[types.FlexID]types.UploadedDocument, len(prior))
	byURL := make(map[string]types.UploadedDocument, len(prior))
	for _, p := range prior {
		if p.ID != "" {
			byID[p.ID] = p
		}
		if p.FileURL != "" {
			byURL[p.FileURL] = p
		}
	}

	out := make([]types.UploadedDocument, 0, len(client))
	for i, doc := range client {
		slotKey := fmt.Sprintf("%s_%d", key, i)

		fileURL := strings.TrimSpace(doc.FileURL)
		filename := doc.FileName

		match, matched := byID[doc.ID]
		if !matched && fileURL != "" {
			match, matched = byURL[fileURL]
		}

		switch {
		case r.uploads != nil && r.uploads.Has(slotKey):
			stored, err := r.uploads.Save(ctx, slotKey, subfolder)
			if err != nil {
				return nil, fmt.Errorf("store upload %s: %w", slotKey, err)
			}
			fileURL = stored.URL
			filename = stored.OriginalFilename
		case fileURL != "":
			if filename == "" && matched {
				filename = match.OriginalFilename
			}
		case r.mode == Submit && matched:
			fileURL = match.FileURL
			if filename == "" {
				filename = match.OriginalFilename
			}
		}

		if fileURL == "" {
			continue
		}

		id := doc.ID
		if id == "" && matched {
			id = match.ID
		}
		if id == "" {
			id = types.FlexID(r.newID("doc"))
		}

		out = append(out, types.UploadedDocument{
			ID:               id,
			DocumentType:     doc.DocumentType,
			FileURL:          fileURL,
			OriginalFilename: filename,
		})
	}

	return out, nil
}

func (r *Reconciler) passportPhoto(ctx context.Context, payload *types.BGVPayload, prior *types.BGVForm) (string, error) {
	if r.uploads != nil && r.uploads.Has(KeyPassportPhoto) {
		stored, err := r.uploads.Save(ctx, KeyPassportPhoto, SubfolderPassport)
		if err != nil {
			return "", fmt.Errorf("store passport photo: %w", err)
		}
		return stored.URL, nil
	}

	if payload.PersonalDetails != nil && payload.PersonalDetails.PassportPhoto != nil {
		if u := strings.TrimSpace(payload.PersonalDetails.PassportPhoto.FileURL); u != "" {
			return u, nil
		}
	}

	if r.mode == Submit {
		return utils.PtrString(prior.PassportPhotoURL), nil
	}

	return "", nil
}

func (r *Reconciler) signature(ctx context.Context, token string, payload *types.BGVPayload, prior *types.BGVForm) (string, error) {
	var sig string
	if payload.Authorization != nil {
		sig = strings.TrimSpace(payload.Authorization.SignatureDataURL)
	}

	if strings.HasPrefix(sig, "data:image") {
		if r.images == nil {
			return "", fmt.Errorf("no image store configured for signatures")
		}
		stored, err := r.images.SaveDataURL(ctx, sig, SubfolderSignature, fmt.Sprintf("sig_%s_%s", token, r.mode))
		if err != nil {
			return "", err
		}
		return stored.URL, nil
	}

	if sig != "" {
		return sig, nil
	}

	if r.mode == Submit {
		return utils.PtrString(prior.SignatureImageURL), nil
	}

	return "", nil
}

func (r *Reconciler) address(ctx context.Context, in *types.AddressVerificationInput, prior *types.AddressVerification) (*types.AddressVerification, error) {
	if in == nil {
		if r.mode == Submit {
			return prior, nil
		}
		return nil, nil
	}

	var priorDocs []types.UploadedDocument
	if prior != nil {
		priorDocs = prior.UploadedDocuments
	}

	docs, err := r.Documents(ctx, in.UploadedDocuments, KeyAddressDoc, SubfolderAddress, priorDocs)
	if err != nil {
		return nil, err
	}

	return &types.AddressVerification{
		AddressDetails:    in.AddressDetails,
		UploadedDocuments: docs,
	}, nil
}

// entryID resolves the identifier of a repeatable entry. A non-empty client id
// is kept; the prior entry's documents are only consulted when that id exists
// in the prior record.
func (r *Reconciler) entryID(id types.FlexID, prefix string, known bool) (types.FlexID, bool) {
	if id == "" {
		return types.FlexID(r.newID(prefix)), false
	}
	return id, known
}

func (r *Reconciler) education(ctx context.Context, in []types.EducationEntryInput, prior []types.EducationEntry) ([]types.EducationEntry, error) {
	if in == nil {
		if r.mode == Submit {
			return prior, nil
		}
		return nil, nil
	}

	priorByID := make(map[types.FlexID]types.EducationEntry, len(prior))
	for _, p := range prior {
		priorByID[p.ID] = p
	}

	out := make([]types.EducationEntry, 0, len(in))
	for i, entry := range in {
		p, ok := priorByID[entry.ID]
		id, known := r.entryID(entry.ID, "edu", ok)

		var priorDocs []types.UploadedDocument
		if known {
			priorDocs = p.UploadedDocuments
		}

		docs, err := r.Documents(ctx, entry.UploadedDocuments, EducationDocKey(i), SubfolderEducation, priorDocs)
		if err != nil {
			return nil, err
		}

		out = append(out, types.EducationEntry{ID: id, EducationDetails: entry.EducationDetails, UploadedDocuments: docs})
	}

	return out, nil
}

func (r *Reconciler) employment(ctx context.Context, in []types.EmploymentEntryInput, prior []types.EmploymentEntry) ([]types.EmploymentEntry, error) {
	if in == nil {
		if r.mode == Submit {
			return prior, nil
		}
		return nil, nil
	}

	priorByID := make(map[types.FlexID]types.EmploymentEntry, len(prior))
	for _, p := range prior {
		priorByID[p.ID] = p
	}

	out := make([]types.EmploymentEntry, 0, len(in))
	for i, entry := range in {
		p, ok := priorByID[entry.ID]
		id, known := r.entryID(entry.ID, "emp", ok)

		var priorDocs []types.UploadedDocument
		if known {
			priorDocs = p.UploadedDocuments
		}

		docs, err := r.Documents(ctx, entry.UploadedDocuments, EmploymentDocKey(i), SubfolderEmployment, priorDocs)
		if err != nil {
			return nil, err
		}

		out = append(out, types.EmploymentEntry{ID: id, EmploymentDetails: entry.EmploymentDetails, UploadedDocuments: docs})
	}

	return out, nil
}

func (r *Reconciler) identity(ctx context.Context, in []types.IdentityEntryInput, prior []types.IdentityEntry) ([]types.IdentityEntry, error) {
	if in == nil {
		if r.mode == Submit {
			return prior, nil
		}
		return nil, nil
	}

	priorByID := make(map[types.FlexID]types.IdentityEntry, len(prior))
	for _, p := range prior {
		priorByID[p.ID] = p
	}

	out := make([]types.IdentityEntry, 0, len(in))
	for i, entry := range in {
		p, ok := priorByID[entry.ID]
		id, known := r.entryID(entry.ID, "idt", ok)

		var priorDocs []types.UploadedDocument
		if known {
			priorDocs = p.UploadedDocuments
		}

		docs, err := r.Documents(ctx, entry.UploadedDocuments, IdentityDocKey(i), SubfolderIdentity, priorDocs)
		if err != nil {
			return nil, err
		}

		out = append(out, types.IdentityEntry{ID: id, IdentityDetails: entry.IdentityDetails, UploadedDocuments: docs})
	}

	return out, nil
}
