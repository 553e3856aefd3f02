package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/lotdocs/internal/ocr"
	"github.com/hyperjump/lotdocs/internal/office"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func extractFile(t *testing.T, e *Extractor, name string, content []byte) string {
	t.Helper()
	got, err := e.Extract(context.Background(), writeFile(t, name, content))
	if err != nil {
		t.Fatalf("Extract(%s): %v", name, err)
	}
	return got
}

func zipBytes(t *testing.T, files map[string]string, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range order {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(files[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func docxXML(paragraphs ...string) string {
	var b strings.Builder
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		b.WriteString(`<w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func minimalDocx(t *testing.T, paragraphs ...string) []byte {
	return zipBytes(t, map[string]string{"word/document.xml": docxXML(paragraphs...)}, "word/document.xml")
}

func excelBytes(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"a.pdf":     FormatPDF,
		"A.PDF":     FormatPDF,
		"b.doc":     FormatDOC,
		"c.docx":    FormatDOCX,
		"d.xls":     FormatSpreadsheet,
		"e.XLSX":    FormatSpreadsheet,
		"f.txt":     FormatOther,
		"g":         FormatOther,
		"h.doc.bak": FormatOther,
	}
	for path, want := range tests {
		if got := DetectFormat(path); got != want {
			t.Errorf("DetectFormat(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestFixLineEndings(t *testing.T) {
	in := "line1\r\n\r\n\r\nline2\n\n\nline3\r\nline4\n"
	got := FixLineEndings(in)
	if want := "line1\nline2\nline3\nline4\n"; got != want {
		t.Errorf("FixLineEndings = %q, want %q", got, want)
	}
	if strings.Contains(got, "\r") || strings.Contains(got, "\n\n") {
		t.Errorf("result still has CR or blank lines: %q", got)
	}
	if FixLineEndings("") != "" {
		t.Error("empty input should stay empty")
	}
}

func TestExtract_plain(t *testing.T) {
	got := extractFile(t, NewExtractor(), "a.txt", []byte("Hello world\r\n\r\nLine 2"))
	if got != "Hello world\nLine 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_plainUTF8(t *testing.T) {
	got := extractFile(t, NewExtractor(), "a.txt", []byte("\xef\xbb\xbfcaf\xc3\xa9"))
	if got != "café" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_plainWindows1251(t *testing.T) {
	raw, err := charmap.Windows1251.NewEncoder().Bytes([]byte("Техническое задание"))
	if err != nil {
		t.Fatal(err)
	}
	got := extractFile(t, NewExtractor(), "tz.txt", raw)
	if got != "Техническое задание" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_excel(t *testing.T) {
	got := extractFile(t, NewExtractor(), "data.xlsx", excelBytes(t))
	if !strings.Contains(got, "Title") || !strings.Contains(got, "Value 1\tValue 2") {
		t.Errorf("got %q", got)
	}
}

func TestExtract_docx(t *testing.T) {
	got := extractFile(t, NewExtractor(), "doc.docx", minimalDocx(t, "First paragraph", "Second paragraph"))
	if got != "First paragraph\nSecond paragraph" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_docxWithContentTypes(t *testing.T) {
	for name, ct := range map[string]string{
		"partname first":    `<Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/>`,
		"contenttype first": `<Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/>`,
	} {
		t.Run(name, func(t *testing.T) {
			content := zipBytes(t, map[string]string{
				"[Content_Types].xml": `<?xml version="1.0"?><Types>` + ct + `</Types>`,
				"word/document2.xml":  docxXML("Content from document2"),
			}, "[Content_Types].xml", "word/document2.xml")
			if got := extractFile(t, NewExtractor(), "doc.docx", content); got != "Content from document2" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestExtract_pptx(t *testing.T) {
	slide := func(text string) string {
		return `<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	content := zipBytes(t, map[string]string{
		"ppt/slides/slide1.xml": slide("First slide"),
		"ppt/slides/slide2.xml": slide("Second slide"),
	}, "ppt/slides/slide1.xml", "ppt/slides/slide2.xml")
	if got := extractFile(t, NewExtractor(), "deck.pptx", content); got != "First slide Second slide" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_openDocument(t *testing.T) {
	odp := zipBytes(t, map[string]string{
		"content.xml": `<office:document><draw:page><text:h>Slide title</text:h><text:p>Body text</text:p></draw:page></office:document>`,
	}, "content.xml")
	if got := extractFile(t, NewExtractor(), "pres.odp", odp); got != "Body text Slide title" {
		t.Errorf("odp: got %q", got)
	}

	ods := zipBytes(t, map[string]string{
		"content.xml": `<office:document><table:table-cell><text:p>Cell A</text:p></table:table-cell><table:table-cell><text:span>Cell B</text:span></table:table-cell></office:document>`,
	}, "content.xml")
	if got := extractFile(t, NewExtractor(), "sheet.ods", ods); got != "Cell A Cell B" {
		t.Errorf("ods: got %q", got)
	}

	missing := zipBytes(t, map[string]string{"other.xml": "<x/>"}, "other.xml")
	if _, err := NewExtractor().Extract(context.Background(), writeFile(t, "bad.ods", missing)); err == nil {
		t.Error("expected error when content.xml missing")
	}
}

func TestExtract_nonexistent(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "/nonexistent/path/file.txt")
	var xerr *ExtractionError
	if !errors.As(err, &xerr) || !errors.Is(err, ErrExtraction) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if xerr.Format != FormatOther {
		t.Errorf("format = %v", xerr.Format)
	}
}

func TestExtract_binaryUnsupported(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), writeFile(t, "blob.bin", []byte{0x00, 0x01, 0x02, 0xff, 0x00}))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
}

func TestExtract_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExtractor().Extract(ctx, writeFile(t, "a.txt", []byte("x")))
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrExtraction) {
		t.Errorf("expected bare context.Canceled, got %v", err)
	}
}

type fakeRecognizer struct {
	text string
	err  error
}

func (f fakeRecognizer) RecognizePDF(context.Context, string) (string, error) {
	return f.text, f.err
}

func TestExtract_pdfOCR(t *testing.T) {
	e := NewExtractor(WithOCR(fakeRecognizer{text: "page one\n\npage two\r\n"}))
	got := extractFile(t, e, "scan.pdf", []byte("%PDF-1.4"))
	if got != "page one\npage two\n" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_pdfFallbackOnEngineError(t *testing.T) {
	// The text layer fallback runs and fails on this non-PDF, proving it was attempted.
	e := NewExtractor(WithOCR(fakeRecognizer{err: ocr.ErrEngine}))
	_, err := e.Extract(context.Background(), writeFile(t, "scan.pdf", []byte("garbage")))
	if err == nil || !strings.Contains(err.Error(), "open PDF") {
		t.Errorf("expected text layer error, got %v", err)
	}
}

func TestExtract_pdfOtherOCRErrorPropagates(t *testing.T) {
	boom := errors.New("pdftoppm missing")
	e := NewExtractor(WithOCR(fakeRecognizer{err: boom}))
	_, err := e.Extract(context.Background(), writeFile(t, "scan.pdf", []byte("garbage")))
	if !errors.Is(err, boom) || !errors.Is(err, ErrExtraction) {
		t.Errorf("expected wrapped rasterizer error, got %v", err)
	}
}

// fakeConverter writes a fixed document for any input and records the output directory.
type fakeConverter struct {
	out    []byte
	outDir string
}

func (f *fakeConverter) Convert(_ context.Context, src, outDir, format string) (string, error) {
	f.outDir = outDir
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out := filepath.Join(outDir, base+"."+format)
	return out, os.WriteFile(out, f.out, 0600)
}

func TestExtract_docViaConverter(t *testing.T) {
	conv := &fakeConverter{out: minimalDocx(t, "Converted legacy document")}
	e := NewExtractor(WithOfficeConverter(conv))
	got := extractFile(t, e, "legacy.doc", []byte{0xD0, 0xCF, 0x11, 0xE0})
	if got != "Converted legacy document" {
		t.Errorf("got %q", got)
	}
	if _, err := os.Stat(conv.outDir); !os.IsNotExist(err) {
		t.Errorf("temp dir should be removed, stat err = %v", err)
	}
}

func TestExtract_xlsViaConverter(t *testing.T) {
	conv := &fakeConverter{out: excelBytes(t)}
	e := NewExtractor(WithOfficeConverter(conv))
	got := extractFile(t, e, "legacy.xls", []byte("legacy workbook"))
	if !strings.Contains(got, "Value 2") {
		t.Errorf("got %q", got)
	}
}

func TestExtract_docWithoutConverter(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), writeFile(t, "legacy.doc", []byte("x")))
	if !errors.Is(err, office.ErrUnavailable) || !errors.Is(err, ErrExtraction) {
		t.Errorf("expected ErrUnavailable inside ExtractionError, got %v", err)
	}
}

func TestNewExtractor_nilLogger(t *testing.T) {
	if NewExtractor(WithLogger(nil)).logger == nil {
		t.Error("nil logger must keep the default")
	}
}
