package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData is the content printed on a completion certificate.
type CertificateData struct {
	StudentName string
	CourseTitle string
	CompletedAt time.Time
	ExpiresAt   time.Time
	Serial      string
	IssuerName  string
}

// CertificateRenderer draws completion certificates as single-page PDFs.
type CertificateRenderer struct {
	issuer string
}

// NewCertificateRenderer builds a renderer; issuer is printed under the signature line.
func NewCertificateRenderer(issuer string) *CertificateRenderer {
	if issuer == "" {
		issuer = "LearnHub"
	}
	return &CertificateRenderer{issuer: issuer}
}

// Render produces the certificate PDF.
func (r *CertificateRenderer) Render(data CertificateData) ([]byte, error) {
	if data.Serial == "" {
		return nil, fmt.Errorf("certificate serial required")
	}
	if data.StudentName == "" || data.CourseTitle == "" {
		return nil, fmt.Errorf("certificate requires student name and course title")
	}
	issuer := data.IssuerName
	if issuer == "" {
		issuer = r.issuer
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Certificate of Completion", true)
	pdf.SetCreator(issuer, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	w, h := pdf.GetPageSize()
	pdf.SetLineWidth(1.5)
	pdf.SetDrawColor(32, 64, 128)
	pdf.Rect(10, 10, w-20, h-20, "D")
	pdf.SetLineWidth(0.4)
	pdf.Rect(14, 14, w-28, h-28, "D")

	pdf.SetTextColor(32, 64, 128)
	pdf.SetFont("Times", "B", 34)
	pdf.SetXY(0, 38)
	pdf.CellFormat(w, 16, "Certificate of Completion", "", 1, "C", false, 0, "")

	pdf.SetTextColor(60, 60, 60)
	pdf.SetFont("Arial", "", 14)
	pdf.SetXY(0, 66)
	pdf.CellFormat(w, 8, "This certifies that", "", 1, "C", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Times", "BI", 28)
	pdf.SetXY(0, 80)
	pdf.CellFormat(w, 14, tr(data.StudentName), "", 1, "C", false, 0, "")

	pdf.SetTextColor(60, 60, 60)
	pdf.SetFont("Arial", "", 14)
	pdf.SetXY(0, 100)
	pdf.CellFormat(w, 8, "has successfully completed the course", "", 1, "C", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", 20)
	pdf.SetXY(30, 112)
	pdf.MultiCell(w-60, 10, tr(data.CourseTitle), "", "C", false)

	completed := data.CompletedAt
	if completed.IsZero() {
		completed = time.Now().UTC()
	}
	pdf.SetFont("Arial", "", 12)
	pdf.SetXY(0, 142)
	pdf.CellFormat(w, 7, "Completed on "+completed.Format("January 2, 2006"), "", 1, "C", false, 0, "")
	if !data.ExpiresAt.IsZero() {
		pdf.CellFormat(w, 7, "Valid until "+data.ExpiresAt.Format("January 2, 2006"), "", 1, "C", false, 0, "")
	}

	pdf.SetLineWidth(0.3)
	pdf.Line(w/2-45, h-42, w/2+45, h-42)
	pdf.SetXY(0, h-40)
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(w, 6, tr(issuer), "", 1, "C", false, 0, "")

	pdf.SetFont("Courier", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.SetXY(18, h-24)
	pdf.CellFormat(w-36, 5, "Serial: "+data.Serial, "", 0, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
