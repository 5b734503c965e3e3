package extract

import (
	"log/slog"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

func extractDOCX(path string) (Result, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return Result{}, newCorruptSourceError(path, err)
	}
	defer func() { _ = r.Close() }()

	content := r.Editable().GetContent()
	text := stripDOCXMarkup(content)

	if strings.TrimSpace(text) == "" {
		slog.Default().Info("docx extraction produced no text", slog.String("uri", path))
	}

	return Result{
		Text:     strings.TrimSpace(text),
		Metadata: Metadata{},
	}, nil
}

// stripDOCXMarkup removes the XML tags the library's GetContent leaves in
// place, keeping only the run text between them.
func stripDOCXMarkup(raw string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range raw {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
