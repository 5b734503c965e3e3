package extract

import (
	"os"
	"regexp"
	"strings"
)

// headerPattern matches a Markdown ATX heading line, used to derive a
// document title from its first level-1 heading.
var headerPattern = regexp.MustCompile(`(?m)^#{1}\s+(.+)$`)

func extractPlainText(path string, isMarkdown bool) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, newCorruptSourceError(path, err)
	}

	text := string(data)
	meta := Metadata{}

	if isMarkdown {
		if match := headerPattern.FindStringSubmatch(text); match != nil {
			meta.Title = strings.TrimSpace(match[1])
		}
	}

	return Result{Text: text, Metadata: meta}, nil
}
