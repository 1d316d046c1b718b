package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// SlipField is a labelled line on the acknowledgement slip.
type SlipField struct {
	Label string
	Value string
}

// Slip describes the printable acknowledgement for a submitted application.
type Slip struct {
	InstitutionName    string
	InstitutionAddress string
	Title              string
	Fields             []SlipField
	VerifyURL          string
	GeneratedAt        time.Time
}

// SlipRenderer draws acknowledgement slips as A4 PDFs.
type SlipRenderer struct {
	qrSize int
}

// NewSlipRenderer constructs a renderer.
func NewSlipRenderer() *SlipRenderer {
	return &SlipRenderer{qrSize: 256}
}

// QRCode encodes content as a PNG image.
func QRCode(content string, size int) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

// Render builds the PDF. The QR code is placed top right when VerifyURL is set.
func (r *SlipRenderer) Render(slip Slip) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	if slip.VerifyURL != "" {
		png, err := QRCode(slip.VerifyURL, r.qrSize)
		if err != nil {
			return nil, err
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("verify-qr", opts, bytes.NewReader(png))
		pdf.ImageOptions("verify-qr", 160, 12, 35, 35, false, opts, 0, "")
	}

	pdf.SetFont("Arial", "B", 15)
	pdf.CellFormat(140, 8, slip.InstitutionName, "", 1, "L", false, 0, "")
	if slip.InstitutionAddress != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(140, 5, slip.InstitutionAddress, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	title := slip.Title
	if title == "" {
		title = "Application Acknowledgement"
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(140, 8, strings.ToUpper(title), "", 1, "L", false, 0, "")
	pdf.SetY(52)

	for _, field := range slip.Fields {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(60, 8, field.Label, "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(120, 8, field.Value, "1", 1, "", false, 0, "")
	}

	generated := slip.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Generated "+generated.Format("02 Jan 2006 15:04 MST"), "", 1, "L", false, 0, "")
	if slip.VerifyURL != "" {
		pdf.CellFormat(0, 5, "Verify at "+slip.VerifyURL, "", 1, "L", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
