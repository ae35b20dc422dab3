package ocr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteDebugArtifact dumps the OCR output for one record to a text file on
// scratch disk. Troubleshooting aid only, never a system output.
func WriteDebugArtifact(dir, fileNumber string, res ExtractionResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Record: %s\n", fileNumber)
	fmt.Fprintf(&b, "Pages: %d\n", res.PageCount())
	fmt.Fprintf(&b, "OCR text length: %d characters\n", len(res.Text()))
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	for _, p := range res.Pages {
		fmt.Fprintf(&b, "--- PAGE %d ---\n", p.Page)
		fmt.Fprintf(&b, "Word count: %d\n", p.WordCount)
		fmt.Fprintf(&b, "Character count: %d\n", p.CharCount)
		b.WriteString(p.Text)
		b.WriteString("\n\n")
	}

	path := filepath.Join(dir, fmt.Sprintf("ocr_text_%s.txt", sanitizeFileNumber(fileNumber)))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func sanitizeFileNumber(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
