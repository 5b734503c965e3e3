package extract

import (
	"runtime"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfPageBatchSize bounds how many pages are held in memory at once. The
// reader streams pages from the file rather than buffering the whole
// document, and native per-page resources are released between batches.
const pdfPageBatchSize = 10

// maxDecodedImageBytes is not referenced by the extractor: the library
// only exposes plain text extraction and decodes no embedded images, and
// no page is skipped because of its size.
const maxDecodedImageBytes = 1 * 1024 * 1024

func extractPDF(path string) (Result, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Result{}, newCorruptSourceError(path, err)
	}
	defer func() { _ = f.Close() }()

	numPages := r.NumPage()
	var sb strings.Builder

	for start := 1; start <= numPages; start += pdfPageBatchSize {
		end := start + pdfPageBatchSize - 1
		if end > numPages {
			end = numPages
		}

		for i := start; i <= end; i++ {
			page := r.Page(i)
			if page.V.IsNull() {
				continue
			}

			text, err := page.GetPlainText(nil)
			if err != nil {
				// A single unreadable page does not invalidate the rest
				// of the document.
				continue
			}

			for _, line := range strings.Split(text, "\n") {
				trimmed := strings.TrimSpace(line)
				if trimmed == "" {
					continue
				}
				sb.WriteString(trimmed)
				sb.WriteByte(' ')
			}
			sb.WriteByte('\n')
		}

		// Release this batch's page resources before starting the next.
		runtime.GC()
	}

	return Result{
		Text: strings.TrimSpace(sb.String()),
		Metadata: Metadata{
			PageCount: numPages,
		},
	}, nil
}
