package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Zipped XML office formats: DOCX and PPTX (Office Open XML), ODP and ODS (OpenDocument).
// Text is pulled from the text-run elements with regexps; structure is not preserved.

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePathPrefix = "ppt/slides/slide"
	openDocContentPath  = "content.xml"
)

var (
	// <w:t>text</w:t> or <w:t xml:space="preserve">text</w:t>
	wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// <w:p ...> paragraph starts, used to keep paragraph breaks
	wpTag = regexp.MustCompile(`<w:p[ >/]`)
	atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

	// PartName and ContentType may appear in either order.
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

	odfTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odfTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
)

func openZip(content []byte, kind string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	return zr, nil
}

// readPart returns the named zip member, or nil when it is absent.
func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, nil
}

func appendMatches(b *strings.Builder, parts [][]string) {
	for _, p := range parts {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(p[1]))
	}
}

// findDocxMainDocumentPath reads the main document part name from [Content_Types].xml.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	data, err := readPart(zr, contentTypesPath)
	if err != nil || data == nil {
		return ""
	}
	for _, re := range []*regexp.Regexp{partNameRe, partNameRe2} {
		if m := re.FindSubmatch(data); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return ""
}

// extractDOCX joins the runs of each paragraph with spaces and paragraphs with newlines.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readPart(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}

	var lines []string
	for _, para := range wpTag.Split(string(docXML), -1) {
		var b strings.Builder
		appendMatches(&b, wtTag.FindAllStringSubmatch(para, -1))
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// extractPPTX collects <a:t> runs from every slide.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePathPrefix) || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		slide, err := readPart(zr, f.Name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		appendMatches(&b, atTag.FindAllStringSubmatch(string(slide), -1))
	}
	return strings.TrimSpace(b.String()), nil
}

func extractOpenDocument(content []byte, kind string, tags ...*regexp.Regexp) (string, error) {
	zr, err := openZip(content, kind)
	if err != nil {
		return "", err
	}
	xml, err := readPart(zr, openDocContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract %s: %s not found", kind, openDocContentPath)
	}
	var b strings.Builder
	for _, re := range tags {
		appendMatches(&b, re.FindAllStringSubmatch(string(xml), -1))
	}
	return strings.TrimSpace(b.String()), nil
}

func extractODP(content []byte) (string, error) {
	return extractOpenDocument(content, "ODP", odfTextP, odfTextSpan, odfTextH)
}

func extractODS(content []byte) (string, error) {
	return extractOpenDocument(content, "ODS", odfTextP, odfTextSpan)
}
