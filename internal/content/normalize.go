package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Normalizer produces canonical text for links and uploads.
type Normalizer struct {
	fetcher    LinkFetcher
	extractors map[Format]Extractor
}

// DefaultExtractors covers the formats accepted by the upload endpoints.
func DefaultExtractors() map[Format]Extractor {
	return map[Format]Extractor{
		FormatPDF:  ExtractorFunc(ExtractPDF),
		FormatDOCX: ExtractorFunc(ExtractDOCX),
	}
}

// NewNormalizer wires a link fetcher and per-format extractors. Text and
// unknown formats are always decoded directly.
func NewNormalizer(fetcher LinkFetcher, extractors map[Format]Extractor) *Normalizer {
	copied := make(map[Format]Extractor, len(extractors))
	for format, extractor := range extractors {
		if extractor != nil {
			copied[format] = extractor
		}
	}
	return &Normalizer{
		fetcher:    fetcher,
		extractors: copied,
	}
}

// Normalize returns canonical text, ErrEmptyContent or ErrExtractionFailed.
func (n *Normalizer) Normalize(ctx context.Context, in Input) (string, error) {
	if n == nil {
		return "", fmt.Errorf("normalizer is not initialized")
	}

	var (
		raw string
		err error
	)
	switch in.Kind {
	case KindLink:
		raw, err = n.fetchLink(ctx, in.Link)
	case KindFile:
		raw, err = n.extractFile(ctx, in)
	default:
		return "", fmt.Errorf("%w: unsupported input kind %q", ErrExtractionFailed, in.Kind)
	}
	if err != nil {
		return "", err
	}

	text := CleanText(raw)
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

func (n *Normalizer) fetchLink(ctx context.Context, link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("%w: link is blank", ErrEmptyContent)
	}
	if n.fetcher == nil {
		return "", fmt.Errorf("%w: no link fetcher configured", ErrExtractionFailed)
	}
	text, err := n.fetcher.FetchRenderedText(ctx, link)
	if err != nil {
		if errors.Is(err, ErrEmptyContent) {
			return "", err
		}
		return "", fmt.Errorf("%w: fetch %s: %w", ErrExtractionFailed, link, err)
	}
	return text, nil
}

func (n *Normalizer) extractFile(ctx context.Context, in Input) (string, error) {
	if len(in.Data) == 0 {
		return "", fmt.Errorf("%w: file is empty", ErrEmptyContent)
	}

	var extractErr error
	if extractor, ok := n.extractors[in.Format]; ok {
		text, err := extractor.Extract(ctx, in.Data)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		extractErr = err
		if extractErr == nil {
			extractErr = fmt.Errorf("%s extractor returned no text", in.Format)
		}
	}

	// A mislabeled plain-text upload still decodes; real binary payloads fail.
	if (in.Format.binary() && !utf8.Valid(in.Data)) || looksBinary(in.Data) {
		if extractErr == nil {
			extractErr = fmt.Errorf("binary content without a %s extractor", formatLabel(in.Format))
		}
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, extractErr)
	}

	text, err := DecodeText(in.Data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return text, nil
}

func formatLabel(f Format) string {
	if f == FormatUnknown {
		return "matching"
	}
	return string(f)
}
