package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/canwatch/internal/detect"
)

// PDFOptions customizes the rendered report.
type PDFOptions struct {
	Lang          Language
	CaptureName   string
	CaptureDigest string
	Profile       string
}

// SaveReportPDF renders the analysis report into a PDF document. When a
// capture digest is provided, a QR code of the digest is embedded so the
// printed report can be tied back to the capture file.
func SaveReportPDF(rep detect.Report, out string, opts PDFOptions) error {
	tr := NewTranslator(opts.Lang)
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(tr.T("report.title"), true)
	pdf.SetAuthor("canwatchctl", false)
	pdf.SetCreator("canwatchctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	utf8 := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	addPDFTitle(pdf, utf8(tr.T("report.title")))
	addContextSection(pdf, tr, utf8, opts)
	addSummarySection(pdf, tr, utf8, rep)
	addBreakdownSection(pdf, tr, utf8, rep)
	addFindingsSection(pdf, tr, utf8, rep.Findings)
	if opts.CaptureDigest != "" {
		if err := addDigestQR(pdf, tr, utf8, opts.CaptureDigest); err != nil {
			return err
		}
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addContextSection(pdf *gofpdf.Fpdf, tr Translator, utf8 func(string) string, opts PDFOptions) {
	pdf.SetFont("Helvetica", "", 10)
	items := []struct {
		label string
		value string
	}{
		{label: tr.T("report.capture"), value: opts.CaptureName},
		{label: tr.T("report.profile"), value: opts.Profile},
		{label: tr.T("report.generated"), value: time.Now().Format(time.RFC3339)},
	}
	for _, item := range items {
		if strings.TrimSpace(item.value) == "" {
			continue
		}
		pdf.CellFormat(50, 5, utf8(item.label), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, utf8(item.value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addSummarySection(pdf *gofpdf.Fpdf, tr Translator, utf8 func(string) string, rep detect.Report) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, utf8(tr.T("report.summary")))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: tr.T("report.frames"), value: strconv.Itoa(rep.Summary.Frames)},
		{label: tr.T("report.total"), value: strconv.Itoa(rep.Summary.Total)},
		{label: tr.T("report.errors"), value: strconv.Itoa(rep.Summary.Errors)},
		{label: tr.T("report.warnings"), value: strconv.Itoa(rep.Summary.Warnings)},
		{label: tr.T("report.overall"), value: passLabel(tr, rep.Summary.Pass)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, utf8(item.label), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, utf8(item.value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addBreakdownSection(pdf *gofpdf.Fpdf, tr Translator, utf8 func(string) string, rep detect.Report) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, utf8(tr.T("report.breakdown")))
	pdf.Ln(9)

	headers := []string{tr.T("report.kind"), tr.T("report.count")}
	widths := []float64{120, 30}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, utf8(h), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, kind := range detect.Kinds {
		pdf.CellFormat(widths[0], 6, utf8(kindLabel(tr, kind)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, strconv.Itoa(rep.Counts[kind]), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addFindingsSection(pdf *gofpdf.Fpdf, tr Translator, utf8 func(string) string, findings []detect.Alert) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, utf8(tr.T("report.findings")))
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, utf8(tr.T("report.noFindings")), "", "L", false)
		return
	}

	for i, a := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, kindLabel(tr, a.Kind), severityLabel(a.Severity))
		pdf.MultiCell(0, 5, utf8(header), "", "L", false)

		if msg := strings.TrimSpace(a.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, utf8(msg), "", "L", false)
		}

		meta := findingMetadata(tr, a)
		if meta != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, utf8(meta), "", "L", false)
		}

		pdf.Ln(2)
	}
}

func addDigestQR(pdf *gofpdf.Fpdf, tr Translator, utf8 func(string) string, digest string) error {
	png, err := CaptureDigestQR(digest, 256)
	if err != nil {
		return err
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(0, 8, utf8(tr.T("report.captureDigest")))
	pdf.Ln(8)
	pdf.SetFont("Courier", "", 8)
	pdf.MultiCell(0, 4, strings.ToLower(digest), "", "L", false)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("capture-digest-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("capture-digest-qr", pdf.GetX(), pdf.GetY()+2, 32, 32, false, opts, 0, "")
	pdf.Ln(38)
	return nil
}

func passLabel(tr Translator, pass bool) string {
	if pass {
		return tr.T("report.pass")
	}
	return tr.T("report.fail")
}

func kindLabel(tr Translator, kind detect.Kind) string {
	return tr.T("kind." + string(kind))
}

func severityLabel(sev detect.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func findingMetadata(tr Translator, a detect.Alert) string {
	parts := make([]string, 0, 6)
	if !a.Ts.IsZero() {
		parts = append(parts, a.Ts.Format(time.RFC3339))
	}
	parts = append(parts, fmt.Sprintf("%s 0x%03X", tr.T("report.identifier"), a.ID))
	parts = append(parts, fmt.Sprintf("%s %d", tr.T("report.busTime"), a.BusTimeMs))
	if a.ExpectedID != nil {
		parts = append(parts, fmt.Sprintf("Expected 0x%03X", *a.ExpectedID))
	}
	if a.IntervalMs != nil {
		parts = append(parts, fmt.Sprintf("Interval %d ms", *a.IntervalMs))
	}
	if a.Field != "" {
		parts = append(parts, fmt.Sprintf("%s=%d, domain %s", a.Field, derefU16(a.Observed), a.Domain))
	}
	if a.Fingerprint != "" {
		parts = append(parts, "Fingerprint "+a.Fingerprint)
	}
	return strings.Join(parts, " · ")
}

func derefU16(v *uint16) uint16 {
	if v == nil {
		return 0
	}
	return *v
}
