package extractors

import (
	"AskArchive/backend/go/internal/archive_service/archive/interfaces"
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Converter turns the bytes of one file format into text segments.
type Converter interface {
	AcceptedMimeTypes() []string
	Convert(ctx context.Context, data []byte) ([]schema.TextSegment, error)
}

// Documents dispatches an upload to the first converter accepting its detected MIME type.
type Documents struct {
	converters []Converter
}

// NewDocuments creates a Documents registry with the given converters.
func NewDocuments(converters ...Converter) *Documents {
	d := &Documents{}
	for _, c := range converters {
		d.RegisterConverter(c)
	}
	return d
}

// RegisterConverter adds a converter. Earlier registrations win.
func (d *Documents) RegisterConverter(c Converter) {
	d.converters = append(d.converters, c)
}

// Extract detects the content type from data, never from the file name, and converts it.
// The file's base name becomes both the source ID and the display name.
func (d *Documents) Extract(ctx context.Context, filename string, data []byte) (*schema.Document, error) {
	const op = "documents.Extract"

	name := strings.TrimSpace(filepath.Base(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, schema.E(schema.KindInvalidInput, op, "file name is required", nil)
	}
	if len(data) == 0 {
		return nil, schema.E(schema.KindInvalidInput, op, "file is empty", nil)
	}

	mtype := mimetype.Detect(data)
	for _, c := range d.converters {
		if !slices.ContainsFunc(c.AcceptedMimeTypes(), mtype.Is) {
			continue
		}
		segments, err := c.Convert(ctx, data)
		if err != nil {
			return nil, schema.E(schema.KindExtraction, op, fmt.Sprintf("could not read %s", name), err)
		}
		return &schema.Document{SourceID: name, DisplayName: name, Segments: segments}, nil
	}
	return nil, schema.E(schema.KindInvalidInput, op, fmt.Sprintf("unsupported file type %s", mtype.String()), nil)
}

var _ interfaces.DocumentExtractor = (*Documents)(nil)
