package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/service"
)

func TestCountAudit(t *testing.T) {
	ts := setupTestServer(t)
	tag := ts.createTerm(t, "tag", "Inbox", 0)
	ts.createTerm(t, "tag", "Empty", 0)
	ts.createItem(t, "Letter", tag.ID)

	resp := ts.api.Get("/api/v1/audit")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, domain.AuditIdle, decodeData[domain.AuditJob](t, resp).State)

	resp = ts.api.Delete("/api/v1/audit")
	requireError(t, resp, http.StatusConflict, "CONFLICT")

	resp = ts.api.Post("/api/v1/audit")
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	started := decodeData[domain.AuditJob](t, resp)
	assert.NotEmpty(t, started.ID)
	assert.Equal(t, service.TriggerAPI, started.Trigger)

	ts.services.Audit.Wait()

	resp = ts.api.Get("/api/v1/audit")
	require.Equal(t, http.StatusOK, resp.Code)
	job := decodeData[domain.AuditJob](t, resp)
	assert.Equal(t, started.ID, job.ID)
	assert.Equal(t, domain.AuditCompleted, job.State)
	require.NotNil(t, job.Result)
	assert.Equal(t, 2, job.Result.Checked)
	assert.Empty(t, job.Result.Corrections)
	assert.NotNil(t, job.FinishedAt)
}
