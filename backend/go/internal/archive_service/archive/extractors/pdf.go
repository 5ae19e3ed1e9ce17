package extractors

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFConverter extracts the plain text of every page.
type PDFConverter struct{}

// NewPDFConverter creates a PDFConverter.
func NewPDFConverter() *PDFConverter {
	return &PDFConverter{}
}

func (PDFConverter) AcceptedMimeTypes() []string {
	return []string{"application/pdf"}
}

// Convert returns one untimed segment per page that has text, in page order.
// A PDF without any text layer yields no segments.
func (PDFConverter) Convert(ctx context.Context, data []byte) ([]schema.TextSegment, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var segments []schema.TextSegment
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			segments = append(segments, schema.TextSegment{Text: text})
		}
	}
	return segments, nil
}
