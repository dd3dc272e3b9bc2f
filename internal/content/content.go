// Package content turns a submitted link or uploaded file into canonical
// text: the exact string that gets fingerprinted.
package content

import (
	"context"
	"errors"
)

var (
	// ErrEmptyContent means normalization produced no text.
	ErrEmptyContent = errors.New("document has no extractable text")
	// ErrExtractionFailed means the fetcher or a format extractor failed and
	// no usable fallback text was available.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// Kind says where the raw document comes from.
type Kind string

const (
	KindLink Kind = "link"
	KindFile Kind = "file"
)

// Input is one raw document submission.
type Input struct {
	Kind   Kind
	Link   string
	Data   []byte
	Format Format
}

// LinkInput builds a link submission.
func LinkInput(link string) Input {
	return Input{Kind: KindLink, Link: link}
}

// FileInput builds a file submission with a format resolved from its name
// and MIME type.
func FileInput(fileName, mimeType string, data []byte) Input {
	return Input{Kind: KindFile, Data: data, Format: ResolveFormat(fileName, mimeType)}
}

// LinkFetcher renders a URL to readable text.
type LinkFetcher interface {
	FetchRenderedText(ctx context.Context, link string) (string, error)
}

// Extractor pulls text out of one file format.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, data []byte) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}
