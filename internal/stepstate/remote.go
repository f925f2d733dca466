package stepstate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/jhphan/geneflow/internal/datamgr"
	"github.com/jhphan/geneflow/internal/definition"
	"github.com/jhphan/geneflow/internal/status"
)

// RemoteBackend submits one map item per task to an external HPC gateway's
// REST job API — the same gateway the "remote" datamgr scheme addresses
// for file staging, so a step running in this context both stages and
// submits through one configured RemoteCtx.
type RemoteBackend struct {
	Remote datamgr.RemoteCtx
	App    *definition.App
}

func (b *RemoteBackend) Context() string { return "remote" }

func (b *RemoteBackend) client() *resty.Client {
	if b.Remote.Client != nil {
		return b.Remote.Client.SetBaseURL(b.Remote.BaseURL).SetAuthToken(b.Remote.Token)
	}
	return resty.New().SetBaseURL(b.Remote.BaseURL).SetAuthToken(b.Remote.Token)
}

// remoteJobSubmitRequest is the HPC gateway's app-invocation body: a named
// app plus the resolved inputs/parameters the gateway's own app definition
// knows how to turn into a command line, not a raw shell string — the
// gateway's registered app is the thing that owns the command template.
type remoteJobSubmitRequest struct {
	Name   string         `json:"name"`
	AppID  string         `json:"appId"`
	Fields map[string]any `json:"fields"`
}

type remoteJobSubmitResponse struct {
	Result struct {
		ID string `json:"id"`
	} `json:"result"`
}

type remoteJobStatusResponse struct {
	Result struct {
		Status   string `json:"status"`
		QueueRef string `json:"queueRef"`
	} `json:"result"`
}

func (b *RemoteBackend) Submit(ctx context.Context, _ *MapItem, resolved map[string]any, taskName string) (string, string, error) {
	var out remoteJobSubmitResponse
	resp, err := b.client().R().SetContext(ctx).
		SetBody(remoteJobSubmitRequest{Name: taskName, AppID: b.App.Name, Fields: resolved}).
		SetResult(&out).
		Post("/jobs/submit")
	if err != nil {
		return "", "", fmt.Errorf("remote gateway submit: %w", err)
	}
	if resp.IsError() {
		return "", "", fmt.Errorf("remote gateway submit: %s", resp.Status())
	}
	if out.Result.ID == "" {
		return "", "", fmt.Errorf("remote gateway submit: empty job id in response")
	}
	return out.Result.ID, b.Remote.BaseURL + "/jobs/" + out.Result.ID + "/archive", nil
}

func (b *RemoteBackend) Poll(ctx context.Context, item *MapItem) (status.MapItemStatus, string, error) {
	attempt := item.CurrentAttempt()
	if attempt == nil {
		return status.MapItemUnknown, "", nil
	}

	var out remoteJobStatusResponse
	resp, err := b.client().R().SetContext(ctx).
		SetResult(&out).
		Get("/jobs/" + attempt.JobID)
	if err != nil {
		return status.MapItemUnknown, "", nil
	}
	if resp.StatusCode() == http.StatusNotFound {
		return status.MapItemUnknown, "", nil
	}
	if resp.IsError() {
		return status.MapItemUnknown, "", nil
	}
	return mapRemoteStatus(out.Result.Status), out.Result.QueueRef, nil
}

func mapRemoteStatus(raw string) status.MapItemStatus {
	switch raw {
	case "FINISHED", "ARCHIVING_FINISHED":
		return status.MapItemFinished
	case "RUNNING":
		return status.MapItemRunning
	case "QUEUED", "STAGED", "SUBMITTING":
		return status.MapItemQueued
	case "FAILED":
		return status.MapItemFailed
	case "STOPPED", "CANCELLED":
		return status.MapItemStopped
	default:
		return status.MapItemUnknown
	}
}

func (b *RemoteBackend) Cancel(ctx context.Context, item *MapItem) error {
	attempt := item.CurrentAttempt()
	if attempt == nil {
		return nil
	}
	resp, err := b.client().R().SetContext(ctx).
		Post("/jobs/" + attempt.JobID + "/cancel")
	if err != nil {
		return fmt.Errorf("remote gateway cancel: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("remote gateway cancel: %s", resp.Status())
	}
	return nil
}
