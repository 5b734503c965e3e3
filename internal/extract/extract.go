// Package extract dispatches document text extraction by file format
// (pdf, docx, txt, md), enforcing size guards and producing the metadata
// the retrieval orchestrator attaches to a ContextPack attribution.
package extract

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docrag/engine/internal/ragerr"
)

// Format identifies a supported document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
	FormatMD   Format = "md"
)

const (
	// maxSourceBytes rejects anything above 100 MiB outright.
	maxSourceBytes = 100 * 1024 * 1024
	// warnSourceBytes is the threshold above which extraction proceeds
	// but logs a warning.
	warnSourceBytes = 50 * 1024 * 1024

	// extractionTimeout bounds a single extraction call; PDFs with
	// pathological page counts fail with ExtractionTimeout rather than
	// hanging the single-threaded ingest pipeline.
	extractionTimeout = 2 * time.Minute
)

// Metadata describes properties discovered while extracting a document.
type Metadata struct {
	PageCount        int
	WordCount        int
	DetectedLanguage string
	Title            string
	Author           string
	CreatedAt        time.Time
	ModifiedAt       time.Time
}

// Result is the output of a successful extraction.
type Result struct {
	Text     string
	Metadata Metadata
}

// Extract dispatches to the format-specific extractor by file extension,
// enforcing size bounds before any bytes are read.
func Extract(ctx context.Context, logger *slog.Logger, uri string, sizeBytes int64, modTime time.Time) (Result, error) {
	if sizeBytes > maxSourceBytes {
		return Result{}, ragerr.New(ragerr.ErrCodeOversizedSource,
			"source exceeds 100 MiB limit", nil).
			WithDetail("uri", uri).WithDetail("sizeBytes", strconv.FormatInt(sizeBytes, 10))
	}
	if sizeBytes > warnSourceBytes && logger != nil {
		logger.Warn("extracting large source file",
			slog.String("uri", uri), slog.Int64("sizeBytes", sizeBytes))
	}

	format, err := formatFromExt(uri)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	ch := make(chan outcome, 1)

	go func() {
		var res Result
		var err error
		switch format {
		case FormatPDF:
			res, err = extractPDF(uri)
		case FormatDOCX:
			res, err = extractDOCX(uri)
		case FormatTXT:
			res, err = extractPlainText(uri, false)
		case FormatMD:
			res, err = extractPlainText(uri, true)
		}
		ch <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return Result{}, ragerr.New(ragerr.ErrCodeExtractionTimeout,
			"extraction timed out", ctx.Err()).WithDetail("uri", uri)
	case o := <-ch:
		if o.err != nil {
			return Result{}, o.err
		}
		o.res.Metadata.ModifiedAt = modTime
		o.res.Metadata.WordCount = wordCount(o.res.Text)
		o.res.Metadata.DetectedLanguage = detectLanguage(o.res.Text)
		return o.res, nil
	}
}

func formatFromExt(uri string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(uri))
	switch ext {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".txt":
		return FormatTXT, nil
	case ".md", ".markdown":
		return FormatMD, nil
	case ".doc", ".rtf", ".odt":
		return "", ragerr.New(ragerr.ErrCodeUnsupportedFormat,
			"legacy document formats are not supported", nil).WithDetail("uri", uri)
	default:
		return "", ragerr.New(ragerr.ErrCodeUnsupportedFormat,
			"unrecognized document extension", nil).WithDetail("uri", uri)
	}
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// detectLanguage is a coarse heuristic keyword-ratio check, not a real
// language model: English stopword density above a threshold is taken as
// evidence of English, otherwise the result is reported unknown.
func detectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return "unknown"
	}
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return "unknown"
	}
	stopwords := map[string]bool{
		"the": true, "and": true, "of": true, "to": true, "a": true,
		"in": true, "is": true, "for": true, "on": true, "that": true,
	}
	hits := 0
	for _, w := range words {
		if stopwords[w] {
			hits++
		}
	}
	if float64(hits)/float64(len(words)) > 0.03 {
		return "en"
	}
	return "unknown"
}
