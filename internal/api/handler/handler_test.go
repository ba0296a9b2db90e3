package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidmesh/vidmesh-be/internal/api/artifact"
	"github.com/vidmesh/vidmesh-be/internal/api/domain"
	"github.com/vidmesh/vidmesh-be/internal/api/dto"
	"github.com/vidmesh/vidmesh-be/internal/api/handler"
	"github.com/vidmesh/vidmesh-be/internal/api/jobstore"
	"github.com/vidmesh/vidmesh-be/internal/api/manager"
	"github.com/vidmesh/vidmesh-be/internal/api/router"
)

// recordingDispatcher captures dispatched jobs without talking to a
// worker. Dispatches are signalled on a channel because the upload
// handler fires them in a goroutine.
type recordingDispatcher struct {
	dispatched chan string
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{dispatched: make(chan string, 8)}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, jobID, _ string) {
	d.dispatched <- jobID
}

type testEnv struct {
	router     *gin.Engine
	manager    *manager.Manager
	store      *jobstore.MemoryStore
	dispatcher *recordingDispatcher
	dir        string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	files, err := artifact.NewStore(dir, logger)
	require.NoError(t, err)

	store := jobstore.NewMemoryStore()
	mgr := manager.New(store, files, logger)
	dispatcher := newRecordingDispatcher()

	r := router.SetupRouter(&handler.Dependencies{
		Logger:        logger,
		Manager:       mgr,
		Files:         files,
		Dispatcher:    dispatcher,
		MaxUploadSize: 1 << 20,
	})

	return &testEnv{router: r, manager: mgr, store: store, dispatcher: dispatcher, dir: dir}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func videoUploadBody(t *testing.T, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T) string {
	t.Helper()

	body, contentType := videoUploadBody(t, "clip.mp4", "video/mp4", "fake video bytes")
	w := e.do(t, http.MethodPost, "/api/v1/upload", body, contentType)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)
	return resp.JobID
}

func (e *testEnv) webhook(t *testing.T, payload dto.CompletionCallback) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return e.do(t, http.MethodPost, "/api/v1/webhook/complete", bytes.NewReader(body), "application/json")
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)

	jobID := env.upload(t)

	// The conversion request goes out in the background.
	assert.Equal(t, jobID, <-env.dispatcher.dispatched)

	job, err := env.manager.Status(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
	assert.FileExists(t, job.InputLocation)
}

func TestUpload_Rejected(t *testing.T) {
	tests := []struct {
		name        string
		body        func(t *testing.T) (io.Reader, string)
		wantMessage string
	}{
		{
			name: "non-video content type",
			body: func(t *testing.T) (io.Reader, string) {
				b, ct := videoUploadBody(t, "notes.txt", "text/plain", "not a video")
				return b, ct
			},
			wantMessage: "invalid file type",
		},
		{
			name: "missing file field",
			body: func(t *testing.T) (io.Reader, string) {
				var buf bytes.Buffer
				mw := multipart.NewWriter(&buf)
				require.NoError(t, mw.WriteField("name", "clip"))
				require.NoError(t, mw.Close())
				return &buf, mw.FormDataContentType()
			},
			wantMessage: "video file is required",
		},
		{
			name: "not multipart at all",
			body: func(t *testing.T) (io.Reader, string) {
				return strings.NewReader("raw bytes"), "application/octet-stream"
			},
			wantMessage: "video file is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			body, contentType := tt.body(t)
			w := env.do(t, http.MethodPost, "/api/v1/upload", body, contentType)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tt.wantMessage)

			// No job and no dispatch happened.
			jobs, err := env.store.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, jobs)
		})
	}
}

func TestStatus_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/status/ghost", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhook_UnknownJob(t *testing.T) {
	env := newTestEnv(t)

	w := env.webhook(t, dto.CompletionCallback{
		JobID:          "ghost",
		ResultLocation: "/tmp/out.obj",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhook_MalformedPayload(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/webhook/complete",
		strings.NewReader(`{"job_id":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_InvalidResultLocation(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t)

	w := env.webhook(t, dto.CompletionCallback{
		JobID:          jobID,
		ResultLocation: filepath.Join(env.dir, "never-written.obj"),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	job, err := env.manager.Status(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
}

func TestConversionLifecycle_Success(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t)

	// Worker reports success with a readable artifact.
	result := filepath.Join(env.dir, jobID+".obj")
	require.NoError(t, os.WriteFile(result, []byte("v 0 0 0\nv 1 0 0\n"), 0o644))

	w := env.webhook(t, dto.CompletionCallback{JobID: jobID, ResultLocation: result})
	require.Equal(t, http.StatusOK, w.Code)

	// Poll: completed.
	w = env.do(t, http.MethodGet, "/api/v1/status/"+jobID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var status dto.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, domain.JobStatusCompleted, status.Status)
	assert.Equal(t, result, status.ResultLocation)

	// Download streams the artifact.
	w = env.do(t, http.MethodGet, "/api/v1/download/"+jobID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v 0 0 0\nv 1 0 0\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), jobID+".obj")

	// The job and its files are gone.
	w = env.do(t, http.MethodGet, "/api/v1/status/"+jobID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/download/"+jobID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err := os.Stat(result)
	assert.True(t, os.IsNotExist(err))
}

func TestConversionLifecycle_Failure(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t)

	w := env.webhook(t, dto.CompletionCallback{JobID: jobID, Error: "conversion crashed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/status/"+jobID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var status dto.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, domain.JobStatusFailed, status.Status)
	assert.Equal(t, "conversion crashed", status.Error)

	// Failed jobs have nothing to download.
	w = env.do(t, http.MethodGet, "/api/v1/download/"+jobID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhook_DuplicateDelivery(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t)

	result := filepath.Join(env.dir, jobID+".obj")
	require.NoError(t, os.WriteFile(result, []byte("v 0 0 0\n"), 0o644))

	payload := dto.CompletionCallback{JobID: jobID, ResultLocation: result}
	require.Equal(t, http.StatusOK, env.webhook(t, payload).Code)

	// Retried delivery of the same report is acknowledged, and a late
	// contradictory failure report changes nothing.
	assert.Equal(t, http.StatusOK, env.webhook(t, payload).Code)
	assert.Equal(t, http.StatusOK, env.webhook(t, dto.CompletionCallback{
		JobID: jobID,
		Error: "late retry failure",
	}).Code)

	job, err := env.manager.Status(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
}

func TestDispatchFailureFailsJob(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t)
	<-env.dispatcher.dispatched

	// The dispatcher gave up reaching the worker.
	require.NoError(t, env.manager.MarkDispatchFailed(context.Background(), jobID))

	w := env.do(t, http.MethodGet, "/api/v1/status/"+jobID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var status dto.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, domain.JobStatusFailed, status.Status)
	assert.Equal(t, "worker unreachable", status.Error)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
