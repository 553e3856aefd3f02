package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/lu4p/cat"
)

// contentKind is what the generic extractor decided a file contains.
type contentKind int

const (
	kindUnknown contentKind = iota
	kindPlain
	kindPDF
	kindWord
	kindWordLegacy
	kindSheet
	kindSheetLegacy
	kindSlides
	kindODT
	kindRTF
	kindODP
	kindODS
)

// sniffTable maps detected MIME types to content kinds. Generic containers
// (zip, OLE storage) are resolved by extension afterwards.
var sniffTable = []struct {
	mime string
	kind contentKind
}{
	{"application/pdf", kindPDF},
	{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", kindWord},
	{"application/msword", kindWordLegacy},
	{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", kindSheet},
	{"application/vnd.ms-excel", kindSheetLegacy},
	{"application/vnd.openxmlformats-officedocument.presentationml.presentation", kindSlides},
	{"application/vnd.oasis.opendocument.text", kindODT},
	{"application/vnd.oasis.opendocument.presentation", kindODP},
	{"application/vnd.oasis.opendocument.spreadsheet", kindODS},
	{"text/rtf", kindRTF},
}

var extKinds = map[string]contentKind{
	".txt":  kindPlain,
	".pdf":  kindPDF,
	".docx": kindWord,
	".doc":  kindWordLegacy,
	".xlsx": kindSheet,
	".xls":  kindSheetLegacy,
	".pptx": kindSlides,
	".odt":  kindODT,
	".rtf":  kindRTF,
	".odp":  kindODP,
	".ods":  kindODS,
}

// sniff decides the content kind from the bytes, using the extension when the bytes are ambiguous.
func sniff(content []byte, path string) contentKind {
	mt := mimetype.Detect(content)
	for _, s := range sniffTable {
		if mt.Is(s.mime) {
			return s.kind
		}
	}
	if k, ok := extKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return k
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return kindPlain
		}
	}
	return kindUnknown
}

// extractGeneric sniffs the file and hands it to the matching backend.
func (e *Extractor) extractGeneric(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	switch kind := sniff(content, path); kind {
	case kindPlain:
		return extractPlain(content)
	case kindPDF:
		return extractPDF(content)
	case kindWord:
		return extractDOCX(content)
	case kindWordLegacy:
		return e.viaOffice(ctx, path, "docx")
	case kindSheet:
		return extractExcel(content)
	case kindSheetLegacy:
		return e.viaOffice(ctx, path, "xlsx")
	case kindSlides:
		return extractPPTX(content)
	case kindODT, kindRTF:
		return cat.File(path)
	case kindODP:
		return extractODP(content)
	case kindODS:
		return extractODS(content)
	default:
		return "", fmt.Errorf("unsupported content type %s", mimetype.Detect(content).String())
	}
}
