package api

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/service"
)

func (s *Server) registerTransferRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "exportCatalog",
		Method:      http.MethodGet,
		Path:        "/api/v1/export",
		Summary:     "Export catalog",
		Description: "Returns the whole catalog as an XML document, categories parents first",
		Tags:        []string{tagTransfer},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Catalog document",
				Content:     map[string]*huma.MediaType{"application/xml": {}},
			},
		},
	}, s.handleExport)

	huma.Register(s.api, huma.Operation{
		OperationID:  "importCatalog",
		Method:       http.MethodPost,
		Path:         "/api/v1/import",
		Summary:      "Import catalog",
		Description:  "Merges an XML catalog document in one transaction",
		Tags:         []string{tagTransfer},
		MaxBodyBytes: MaxImportSize,
	}, s.handleImport)
}

// ExportOutput is the raw XML document.
type ExportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	CacheControl       string `header:"Cache-Control"`
	Body               []byte
}

// ImportInput is the raw XML document.
type ImportInput struct {
	RawBody []byte `contentType:"application/xml"`
}

// ImportOutput wraps the import summary for Huma.
type ImportOutput struct {
	Body service.ImportSummary
}

func (s *Server) handleExport(ctx context.Context, _ *struct{}) (*ExportOutput, error) {
	var buf bytes.Buffer
	if _, err := s.services.Transfer.Export(ctx, &buf); err != nil {
		return nil, err
	}

	name := "catalog-" + time.Now().UTC().Format("20060102-150405") + ".xml"
	return &ExportOutput{
		ContentType:        "application/xml; charset=utf-8",
		ContentDisposition: "attachment; filename=" + strconv.Quote(name),
		CacheControl:       CacheNoStore,
		Body:               buf.Bytes(),
	}, nil
}

func (s *Server) handleImport(ctx context.Context, input *ImportInput) (*ImportOutput, error) {
	if len(bytes.TrimSpace(input.RawBody)) == 0 {
		return nil, domainerrors.Validation("empty catalog document")
	}

	sum, err := s.services.Transfer.Import(ctx, bytes.NewReader(input.RawBody))
	if err != nil {
		return nil, err
	}
	return &ImportOutput{Body: sum}, nil
}
