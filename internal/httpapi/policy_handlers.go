package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/safeagree/internal/content"
	"horse.fit/safeagree/internal/policy"
)

type processLinkRequest struct {
	Link        string `json:"link"`
	CompanyName string `json:"company_name"`
}

type policyResponse struct {
	Entry   policy.CatalogEntry    `json:"entry"`
	Summary policy.SummaryArtifact `json:"summary"`
	Cached  bool                   `json:"cached"`
}

// handleProcessPolicy accepts either a JSON link submission or a multipart
// upload in the "file" field.
func (s *Server) handleProcessPolicy(c echo.Context) error {
	req, fieldErrors, err := s.readProcessRequest(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}
	req.UserID = userIDFrom(c)

	result, err := s.policies.ProcessDocument(c.Request().Context(), req)
	if err != nil {
		return s.writePolicyError(c, err, "process document")
	}

	status := http.StatusCreated
	if result.Cached {
		status = http.StatusOK
	}
	return successWithStatus(c, status, policyResponse{
		Entry:   result.Entry,
		Summary: result.Artifact,
		Cached:  result.Cached,
	})
}

func (s *Server) readProcessRequest(c echo.Context) (policy.ProcessRequest, map[string]string, error) {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(strings.ToLower(contentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return policy.ProcessRequest{}, map[string]string{"file": "is required"}, nil
		}
		f, err := fh.Open()
		if err != nil {
			return policy.ProcessRequest{}, nil, fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, s.opts.MaxUploadBytes+1))
		if err != nil {
			return policy.ProcessRequest{}, nil, fmt.Errorf("read upload: %w", err)
		}
		if int64(len(data)) > s.opts.MaxUploadBytes {
			return policy.ProcessRequest{}, map[string]string{"file": "is too large"}, nil
		}
		return policy.ProcessRequest{
			Input:       content.FileInput(fh.Filename, fh.Header.Get(echo.HeaderContentType), data),
			CompanyName: c.FormValue("company_name"),
			FileName:    fh.Filename,
		}, nil, nil
	}

	var body processLinkRequest
	if err := decodeJSONBody(c, &body); err != nil {
		return policy.ProcessRequest{}, nil, err
	}
	if strings.TrimSpace(body.Link) == "" {
		return policy.ProcessRequest{}, map[string]string{"link": "is required"}, nil
	}
	return policy.ProcessRequest{
		Input:       content.LinkInput(body.Link),
		CompanyName: body.CompanyName,
	}, nil, nil
}

func (s *Server) handleGetPolicy(c echo.Context) error {
	entryID, err := parseEntryID(c.Param("id"))
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	view, err := s.policies.GetEntry(c.Request().Context(), entryID)
	if err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			return failNotFound(c, "Policy not found")
		}
		return s.writePolicyError(c, err, "load policy")
	}
	return success(c, policyResponse{
		Entry:   view.Entry,
		Summary: view.Artifact,
		Cached:  true,
	})
}

func (s *Server) handleHistory(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), policy.DefaultHistoryLimit, 1, maxHistoryLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	entries, err := s.policies.History(c.Request().Context(), limit)
	if err != nil {
		return s.writePolicyError(c, err, "load history")
	}
	return success(c, map[string]any{
		"items": entries,
		"limit": limit,
	})
}

func decodeJSONBody(c echo.Context, dst any) error {
	body := c.Request().Body
	if body == nil {
		return fmt.Errorf("request body is required")
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
