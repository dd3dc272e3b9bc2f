package content

import (
	"mime"
	"path/filepath"
	"strings"
)

// Format is the declared file format of an upload.
type Format string

const (
	FormatUnknown Format = ""
	FormatText    Format = "text"
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// ResolveFormat prefers the file extension and falls back to the MIME type.
func ResolveFormat(fileName, mimeType string) Format {
	if format := FormatFromFileName(fileName); format != FormatUnknown {
		return format
	}
	return FormatFromMIME(mimeType)
}

func FormatFromFileName(name string) Format {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".txt", ".text", ".md":
		return FormatText
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	default:
		return FormatUnknown
	}
}

func FormatFromMIME(value string) Format {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(value))
	if err != nil {
		return FormatUnknown
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return FormatText
	case mediaType == "application/pdf":
		return FormatPDF
	case mediaType == docxMIME:
		return FormatDOCX
	default:
		return FormatUnknown
	}
}

func (f Format) binary() bool {
	return f == FormatPDF || f == FormatDOCX
}
