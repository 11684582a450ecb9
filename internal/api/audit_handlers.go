package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/service"
)

func (s *Server) registerAuditRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "startCountAudit",
		Method:        http.MethodPost,
		Path:          "/api/v1/audit",
		Summary:       "Start count audit",
		Description:   "Starts recounting every term's relations in the background. Progress is streamed as audit events",
		Tags:          []string{tagAudit},
		DefaultStatus: http.StatusAccepted,
	}, s.handleStartAudit)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelCountAudit",
		Method:      http.MethodDelete,
		Path:        "/api/v1/audit",
		Summary:     "Cancel count audit",
		Description: "Cancels the running audit. Nothing it corrected is kept",
		Tags:        []string{tagAudit},
	}, s.handleCancelAudit)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCountAudit",
		Method:      http.MethodGet,
		Path:        "/api/v1/audit",
		Summary:     "Get count audit status",
		Description: "Returns the running audit, or the last one to finish",
		Tags:        []string{tagAudit},
	}, s.handleGetAudit)
}

// AuditJobOutput wraps an audit job for Huma.
type AuditJobOutput struct {
	Body domain.AuditJob
}

func (s *Server) handleStartAudit(_ context.Context, _ *struct{}) (*AuditJobOutput, error) {
	job, err := s.services.Audit.Start(service.TriggerAPI)
	if err != nil {
		return nil, err
	}
	return &AuditJobOutput{Body: job}, nil
}

func (s *Server) handleCancelAudit(_ context.Context, _ *struct{}) (*AuditJobOutput, error) {
	job, err := s.services.Audit.Cancel()
	if err != nil {
		return nil, err
	}
	return &AuditJobOutput{Body: job}, nil
}

func (s *Server) handleGetAudit(_ context.Context, _ *struct{}) (*AuditJobOutput, error) {
	return &AuditJobOutput{Body: s.services.Audit.Status()}, nil
}
