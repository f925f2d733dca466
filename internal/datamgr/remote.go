package datamgr

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// remoteBackend addresses an external HPC gateway's REST file-management
// API (the scheme this module calls "remote"; the original system's
// "agave" scheme). List/mkdir/delete/exists map onto the gateway's
// files-list/files-mkdir/files-delete endpoints; Open/Create stream
// through the gateway's download/upload endpoints.
type remoteBackend struct{}

type remoteFileEntry struct {
	Name string `json:"name"`
}

type remoteFileListResponse struct {
	Result []remoteFileEntry `json:"result"`
}

func (remoteBackend) client(c RemoteCtx) *resty.Client {
	if c.Client != nil {
		return c.Client.SetBaseURL(c.BaseURL).SetAuthToken(c.Token)
	}
	return resty.New().SetBaseURL(c.BaseURL).SetAuthToken(c.Token)
}

func (b remoteBackend) Exists(ctx context.Context, uri URI, c Ctx) (bool, error) {
	rc := c.(RemoteCtx)
	resp, err := b.client(rc).R().SetContext(ctx).
		SetQueryParam("path", uri.ChoppedPath).
		Get("/files/meta")
	if err != nil {
		return false, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.IsError() {
		return false, fmt.Errorf("remote gateway: %s", resp.Status())
	}
	return true, nil
}

func (b remoteBackend) List(ctx context.Context, uri URI, c Ctx) ([]string, error) {
	rc := c.(RemoteCtx)
	var out remoteFileListResponse
	resp, err := b.client(rc).R().SetContext(ctx).
		SetQueryParam("path", uri.ChoppedPath).
		SetResult(&out).
		Get("/files/list")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("remote gateway: %s", resp.Status())
	}
	names := make([]string, 0, len(out.Result))
	for _, e := range out.Result {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		names = append(names, e.Name)
	}
	return names, nil
}

func (b remoteBackend) Mkdir(ctx context.Context, uri URI, recursive bool, c Ctx) error {
	rc := c.(RemoteCtx)
	resp, err := b.client(rc).R().SetContext(ctx).
		SetFormData(map[string]string{
			"path":      uri.ChoppedPath,
			"recursive": fmt.Sprintf("%t", recursive),
		}).
		Post("/files/mkdir")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("remote gateway: %s", resp.Status())
	}
	return nil
}

func (b remoteBackend) Delete(ctx context.Context, uri URI, c Ctx) error {
	rc := c.(RemoteCtx)
	resp, err := b.client(rc).R().SetContext(ctx).
		SetQueryParam("path", uri.ChoppedPath).
		Delete("/files")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("remote gateway: %s", resp.Status())
	}
	return nil
}

func (b remoteBackend) Open(ctx context.Context, uri URI, c Ctx) (io.ReadCloser, error) {
	rc := c.(RemoteCtx)
	resp, err := b.client(rc).R().SetContext(ctx).
		SetDoNotParseResponse(true).
		SetQueryParam("path", uri.ChoppedPath).
		Get("/files/download")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		resp.RawBody().Close()
		return nil, fmt.Errorf("remote gateway: %s", resp.Status())
	}
	return resp.RawBody(), nil
}

func (b remoteBackend) Create(ctx context.Context, uri URI, c Ctx) (io.WriteCloser, error) {
	rc := c.(RemoteCtx)
	pr, pw := io.Pipe()
	errCh := make(chan error, 1)

	go func() {
		resp, err := b.client(rc).R().SetContext(ctx).
			SetFileReader("fileToUpload", uri.Name, pr).
			SetFormData(map[string]string{"path": uri.ChoppedPath}).
			Post("/files/upload")
		if err == nil && resp.IsError() {
			err = fmt.Errorf("remote gateway: %s", resp.Status())
		}
		pr.CloseWithError(err)
		errCh <- err
	}()

	return &remoteUpload{pw: pw, errCh: errCh}, nil
}

// remoteUpload adapts the streaming multipart upload request to
// io.WriteCloser: writes feed a pipe the upload goroutine reads from, and
// Close waits for the request to finish so Manager.Copy can report
// upload failures synchronously.
type remoteUpload struct {
	pw    *io.PipeWriter
	errCh chan error
}

func (u *remoteUpload) Write(p []byte) (int, error) { return u.pw.Write(p) }

func (u *remoteUpload) Close() error {
	if err := u.pw.Close(); err != nil {
		return err
	}
	return <-u.errCh
}
