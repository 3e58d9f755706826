package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// ExtractFile reads a resume or job description file and returns its plain
// text. PDF and DOCX are unpacked; everything else is treated as UTF-8 text.
func ExtractFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDocx(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read document: %w", err)
		}
		return string(data), nil
	}
}

func extractPDF(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

func extractDocx(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()

	return doc.Editable().GetContent(), nil
}
