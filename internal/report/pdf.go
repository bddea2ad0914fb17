package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"trinetra/internal/utils"
	"trinetra/pkg/types"

	"github.com/go-pdf/fpdf"
)

// PDFRenderer lays reports out as A4 pages with core fonts.
type PDFRenderer struct {
	Organization string
}

func NewPDFRenderer(organization string) *PDFRenderer {
	if organization == "" {
		organization = "Trinetra Verification Services"
	}
	return &PDFRenderer{Organization: organization}
}

type page struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

const (
	labelWidth = 60.0
	lineHeight = 6.0
)

func (p *PDFRenderer) Render(ctx context.Context, r *Report) ([]byte, error) {
	if r == nil || r.Link == nil {
		return nil, fmt.Errorf("report has no form link")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s report - %s", r.FormType(), r.Candidate()), true)
	pdf.SetAuthor(p.Organization, true)
	pdf.SetCreationDate(r.GeneratedAt)
	pdf.AliasNbPages("")

	pg := &page{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 10, pg.tr(p.Organization), "", 1, "L", false, 0, "")
		pdf.SetDrawColor(180, 180, 180)
		pdf.Line(10, 22, 200, 22)
		pdf.Ln(4)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Generated %s  |  Page %d/{nb}", r.GeneratedAt.Format("02 Jan 2006 15:04 MST"), pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	switch {
	case r.AVF != nil:
		pg.avf(r)
	case r.BGV != nil:
		pg.bgv(r)
	default:
		return nil, fmt.Errorf("report for %s has no response", r.Link.Token)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	return buf.Bytes(), nil
}

func (pg *page) title(text string) {
	pg.pdf.SetFont("Helvetica", "B", 16)
	pg.pdf.CellFormat(0, 10, pg.tr(text), "", 1, "C", false, 0, "")
	pg.pdf.Ln(2)
}

func (pg *page) section(text string) {
	pg.pdf.Ln(3)
	pg.pdf.SetFont("Helvetica", "B", 11)
	pg.pdf.SetFillColor(230, 236, 245)
	pg.pdf.CellFormat(0, 8, pg.tr(text), "", 1, "L", true, 0, "")
	pg.pdf.Ln(1)
}

func (pg *page) row(label, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	pg.pdf.SetFont("Helvetica", "B", 9)
	pg.pdf.CellFormat(labelWidth, lineHeight, pg.tr(label), "", 0, "L", false, 0, "")
	pg.pdf.SetFont("Helvetica", "", 9)
	pg.pdf.MultiCell(0, lineHeight, pg.tr(value), "", "L", false)
}

func (pg *page) documents(docs []types.UploadedDocument) {
	if len(docs) == 0 {
		pg.row("Documents", "None uploaded")
		return
	}
	for i, d := range docs {
		label := d.DocumentType
		if label == "" {
			label = fmt.Sprintf("Document %d", i+1)
		}
		value := d.FileURL
		if d.OriginalFilename != "" {
			value = fmt.Sprintf("%s (%s)", d.OriginalFilename, d.FileURL)
		}
		pg.row(label, value)
	}
}

func (pg *page) avf(r *Report) {
	a := r.AVF
	link := r.Link

	pg.title("Address Verification Report")

	pg.section("Candidate")
	pg.row("Candidate name", link.Candidate())
	pg.row("Registered address", link.CandidateAddress.Line())
	pg.row("Form token", link.Token)
	pg.row("Requested by", link.CreatedBy)

	pg.section("Respondent")
	pg.row("Verifier name", a.VerifierName)
	pg.row("Mobile number", utils.PtrString(a.MobileNumber))
	pg.row("Relationship", utils.PtrString(a.Relationship))
	pg.row("Residence type", utils.PtrString(a.ResidenceType))
	pg.row("Residing since", utils.PtrString(a.ResidingSince))
	pg.row("Landmark", utils.PtrString(a.Landmark))
	pg.row("Government ID type", utils.PtrString(a.GovtIDType))

	pg.section("Location check")
	pg.row("Address coordinates", fmt.Sprintf("%.6f, %.6f", a.AddressLat, a.AddressLng))
	pg.row("Respondent coordinates", fmt.Sprintf("%.6f, %.6f", a.GPSLat, a.GPSLng))
	if a.GPSAccuracy != nil {
		pg.row("GPS accuracy", fmt.Sprintf("%.0f m", *a.GPSAccuracy))
	}
	pg.row("Distance", fmt.Sprintf("%.0f m", a.DistanceMeters))
	pg.row("Map", a.StaticMapURL)

	pg.section("Photographs")
	for i, u := range a.GovtIDPhotoURLs {
		pg.row(fmt.Sprintf("Government ID %d", i+1), u)
	}
	pg.row("Selfie", utils.PtrString(a.SelfiePhotoURL))
	pg.row("Outside of house", utils.PtrString(a.OutsideHousePhotoURL))
	pg.row("Submitted at", a.SubmittedAt.Format(time.RFC1123))
}

func (pg *page) address(label string, a *types.Address, t *types.Tenure) {
	pg.row(label, a.Line())
	if t != nil {
		pg.row(label+" tenure", t.String())
	}
}

func (pg *page) bgv(r *Report) {
	f := r.BGV

	pg.title("Background Verification Report")

	pg.section("Contact")
	pg.row("Email", utils.PtrString(f.Email))
	pg.row("Mobile", utils.PtrString(f.Mobile))
	pg.row("Alternate mobile", utils.PtrString(f.AlternateMobile))
	pg.row("Form token", f.FormLinkToken)

	pg.section("Personal details")
	if pd := f.PersonalDetails; pd != nil {
		pg.row("Full name", pd.FullName)
		pg.row("Former name", pd.FormerName)
		pg.row("Father's name", pd.FatherName)
		pg.row("Spouse's name", pd.SpouseName)
		pg.row("Date of birth", pd.DOB)
		pg.row("Gender", pd.Gender)
		pg.row("Nationality", pd.Nationality)
		pg.row("Marital status", pd.MaritalStatus)
	}
	pg.row("Passport photo", utils.PtrString(f.PassportPhotoURL))

	pg.section("Address verification")
	if av := f.AddressVerification; av != nil {
		pg.address("Current address", av.CurrentAddress, av.CurrentTenure)
		if av.IsPermanentSameAsCurrent {
			pg.row("Permanent address", "Same as current")
		} else {
			pg.address("Permanent address", av.PermanentAddress, av.PermanentTenure)
		}
		pg.documents(av.UploadedDocuments)
	}

	for i, e := range f.EducationVerification {
		pg.section(fmt.Sprintf("Education %d", i+1))
		qualification := e.Qualification
		if e.OtherQualificationName != "" {
			qualification = e.OtherQualificationName
		}
		pg.row("Qualification", qualification)
		pg.row("Institution", e.SchoolNameAddress)
		pg.row("Joined", strings.Trim(e.JoiningMonth+"/"+e.JoiningYear, "/"))
		pg.row("Passed", strings.Trim(e.PassingMonth+"/"+e.PassingYear, "/"))
		pg.row("Other details", e.OtherDetails)
		pg.documents(e.UploadedDocuments)
	}

	for i, e := range f.EmploymentVerification {
		pg.section(fmt.Sprintf("Employment %d", i+1))
		pg.row("Employer", e.EmployerName)
		pg.row("Designation", e.Designation)
		pg.row("Company address", e.CompanyAddress)
		pg.row("Joined", strings.Trim(e.JoiningMonth+"/"+e.JoiningYear, "/"))
		if e.IsPresentEmployee {
			pg.row("Last working day", "Currently employed")
		} else {
			pg.row("Last working day", strings.Trim(e.LastWorkingMonth+"/"+e.LastWorkingYear, "/"))
			pg.row("Reason for leaving", e.ReasonForLeaving)
		}
		pg.documents(e.UploadedDocuments)
	}

	for i, e := range f.IdentityVerification {
		pg.section(fmt.Sprintf("Identity %d", i+1))
		idType := e.IDType
		if e.OtherIDTypeName != "" {
			idType = e.OtherIDTypeName
		}
		pg.row("ID type", idType)
		pg.row("ID number", e.IDNumber)
		pg.documents(e.UploadedDocuments)
	}

	pg.section("Authorization")
	if a := f.Authorization; a != nil {
		pg.row("Employer (letter of authorization)", a.EmployerNameForLOA)
		pg.row("Place", a.Place)
		pg.row("Declaration date", a.DeclarationDate)
	}
	pg.row("Signature", utils.PtrString(f.SignatureImageURL))
	if f.SubmittedAt != nil {
		pg.row("Submitted at", f.SubmittedAt.Format(time.RFC1123))
	}
}
