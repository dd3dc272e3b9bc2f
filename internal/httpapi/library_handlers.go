package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

type addLibraryRequest struct {
	EntryID int64 `json:"entry_id"`
}

type importLibraryRequest struct {
	Links string `json:"links"`
}

type libraryExport struct {
	UserID int64    `yaml:"user_id" json:"user_id"`
	Links  []string `yaml:"links" json:"links"`
}

func (s *Server) handleListLibrary(c echo.Context) error {
	items, err := s.library.List(c.Request().Context(), userIDFrom(c))
	if err != nil {
		return s.writePolicyError(c, err, "load library")
	}
	return success(c, map[string]any{"items": items})
}

func (s *Server) handleAddToLibrary(c echo.Context) error {
	var req addLibraryRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if req.EntryID <= 0 {
		return failValidation(c, map[string]string{"entry_id": "must be a positive integer"})
	}

	if err := s.library.AddExisting(c.Request().Context(), userIDFrom(c), req.EntryID); err != nil {
		return s.writePolicyError(c, err, "add library entry")
	}
	return successWithStatus(c, http.StatusCreated, map[string]any{"entry_id": req.EntryID})
}

func (s *Server) handleRemoveFromLibrary(c echo.Context) error {
	entryID, err := parseEntryID(c.Param("id"))
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	removed, err := s.library.Remove(c.Request().Context(), userIDFrom(c), entryID)
	if err != nil {
		return s.writePolicyError(c, err, "remove library entry")
	}
	return success(c, map[string]any{
		"entry_id": entryID,
		"removed":  removed,
	})
}

func (s *Server) handleRefreshLibrary(c echo.Context) error {
	report, err := s.library.RefreshAll(c.Request().Context(), userIDFrom(c))
	if err != nil {
		return s.writePolicyError(c, err, "refresh library")
	}
	return success(c, report)
}

// handleImportLibrary takes a newline-separated link list either as a
// text/plain body or as {"links": "..."}.
func (s *Server) handleImportLibrary(c echo.Context) error {
	text, err := readLinkList(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	report, err := s.library.ImportFromLinkList(c.Request().Context(), userIDFrom(c), text)
	if err != nil {
		return s.writePolicyError(c, err, "import library")
	}
	return success(c, map[string]any{
		"results":   report.Results,
		"library":   report.Library,
		"succeeded": report.Succeeded(),
	})
}

func readLinkList(c echo.Context) (string, error) {
	contentType := strings.ToLower(c.Request().Header.Get(echo.HeaderContentType))
	if strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		var req importLibraryRequest
		if err := decodeJSONBody(c, &req); err != nil {
			return "", err
		}
		return req.Links, nil
	}

	if c.Request().Body == nil {
		return "", fmt.Errorf("request body is required")
	}
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(raw), nil
}

func (s *Server) handleExportLibrary(c echo.Context) error {
	userID := userIDFrom(c)
	links, err := s.library.Export(c.Request().Context(), userID)
	if err != nil {
		return s.writePolicyError(c, err, "export library")
	}

	export := libraryExport{UserID: userID, Links: links}
	switch format := strings.ToLower(strings.TrimSpace(c.QueryParam("format"))); format {
	case "", "json":
		return success(c, export)
	case "text", "txt":
		body := strings.Join(links, "\n")
		if body != "" {
			body += "\n"
		}
		return c.String(http.StatusOK, body)
	case "yaml", "yml":
		raw, err := yaml.Marshal(export)
		if err != nil {
			return internalError(c, "Failed to encode export")
		}
		return c.Blob(http.StatusOK, "application/yaml", raw)
	default:
		return failValidation(c, map[string]string{"format": "must be json, text or yaml"})
	}
}
