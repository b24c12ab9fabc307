package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a landscape tabular PDF.
// Cyrillic needs a UTF-8 TrueType font; without one text is transliterated for the core fonts.
type PDFExporter struct {
	fontDir    string
	fontFamily string
}

// NewPDFExporter constructs a PDF exporter. fontFamily names <fontDir>/<fontFamily>.ttf,
// with an optional <fontFamily>-Bold.ttf next to it.
func NewPDFExporter(fontDir, fontFamily string) *PDFExporter {
	return &PDFExporter{fontDir: fontDir, fontFamily: fontFamily}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)

	family, prepare, encode := e.setupFonts(pdf)
	text := func(s string) string { return encode(prepare(s)) }
	pdf.AddPage()

	if title != "" {
		pdf.SetFont(family, "B", 14)
		pdf.CellFormat(0, 10, text(title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(len(data.Headers))

	pdf.SetFont(family, "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, text(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 8)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, encode(fit(pdf, prepare(row[header]), colWidth-2)), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) setupFonts(pdf *gofpdf.Fpdf) (family string, prepare, encode func(string) string) {
	identity := func(s string) string { return s }
	if e.fontFamily != "" && e.fontDir != "" {
		regular := filepath.Join(e.fontDir, e.fontFamily+".ttf")
		if _, err := os.Stat(regular); err == nil {
			pdf.SetFontLocation(e.fontDir)
			pdf.AddUTF8Font(e.fontFamily, "", e.fontFamily+".ttf")
			bold := e.fontFamily + "-Bold.ttf"
			if _, err := os.Stat(filepath.Join(e.fontDir, bold)); err != nil {
				bold = e.fontFamily + ".ttf"
			}
			pdf.AddUTF8Font(e.fontFamily, "B", bold)
			return e.fontFamily, identity, identity
		}
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	return "Arial", Transliterate, tr
}

// fit truncates s so it fits in width at the current font.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"…") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

var translit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e", 'ж': "zh",
	'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o",
	'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "kh", 'ц': "ts",
	'ч': "ch", 'ш': "sh", 'щ': "shch", 'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu",
	'я': "ya", '…': "...", '—': "-", '№': "No",
}

// Transliterate maps Cyrillic to Latin for fonts without Cyrillic glyphs.
func Transliterate(s string) string {
	var b strings.Builder
	for _, r := range s {
		lower := []rune(strings.ToLower(string(r)))[0]
		latin, ok := translit[lower]
		if !ok {
			b.WriteRune(r)
			continue
		}
		if lower != r && latin != "" {
			latin = strings.ToUpper(latin[:1]) + latin[1:]
		}
		b.WriteString(latin)
	}
	return b.String()
}
