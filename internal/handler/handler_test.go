package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
	"visiondemo/internal/config"
	"visiondemo/internal/logger"
	"visiondemo/internal/middleware"
	"visiondemo/internal/model"
	"visiondemo/internal/repository"
	"visiondemo/internal/repository/sqlite"
	"visiondemo/internal/service"
	"visiondemo/internal/service/ai"
	"visiondemo/internal/service/catalog"
	"visiondemo/internal/service/engine"
	"visiondemo/internal/service/preview"
	"visiondemo/internal/service/session"
	"visiondemo/internal/service/websocket"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxUploadSize:     1 << 20,
		SessionTTL:        time.Minute,
		SessionSweepEvery: time.Second,
		HistoryLimit:      5,
	}
}

func newTestManager(t *testing.T) *service.Manager {
	t.Helper()
	return newTestManagerWith(t, logger.Nop(), nil)
}

func newTestManagerWith(t *testing.T, log *logger.Logger, runRepo repository.RunRepository) *service.Manager {
	t.Helper()

	hub := websocket.NewHubService(log)
	go hub.Run()

	m := service.NewManager(
		preview.NewStore(log),
		engine.NewSimulated(0, rand.NewSource(11), log),
		catalog.Default(),
		ai.NewAnnotatorService(log),
		hub,
		runRepo,
		testConfig(),
		log,
	)
	t.Cleanup(func() {
		m.Stop()
		hub.Stop()
	})
	return m
}

// serve runs h behind the session middleware as the given session.
func serve(h http.Handler, req *http.Request, sessionID string) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sessionID})
	rec := httptest.NewRecorder()
	middleware.SessionMiddleware(h).ServeHTTP(rec, req)
	return rec
}

type part struct {
	name string
	data []byte
}

// multipartUpload builds a form the way browsers send file inputs without a declared type.
func multipartUpload(t *testing.T, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := mw.CreateFormFile(UploadFormField, p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func waitIdle(t *testing.T, m *service.Manager, id string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Session(id).Wait(ctx))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrEmptyBatch, http.StatusBadRequest},
		{session.ErrInvalidMode, http.StatusBadRequest},
		{session.ErrInvalidScene, http.StatusBadRequest},
		{session.ErrProcessingAlreadyRunning, http.StatusConflict},
		{session.ErrAlreadyCompleted, http.StatusConflict},
		{session.ErrFileNotFound, http.StatusNotFound},
		{service.ErrNotProcessed, http.StatusNotFound},
		{preview.ErrHandleNotFound, http.StatusNotFound},
		{preview.ErrHandleReleased, http.StatusGone},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
			assert.Equal(t, tt.want, statusFor(errors.Join(errors.New("wrapped"), tt.err)))
		})
	}
}

func TestUploadHandler_FiltersNonImages(t *testing.T) {
	m := newTestManager(t)
	id := uuid.NewString()

	req := multipartUpload(t,
		part{"a.jpg", []byte{0xFF, 0xD8, 0xFF, 0xD9}},
		part{"notes.txt", []byte("hello")},
		part{"b.PNG", []byte{0x89, 'P', 'N', 'G'}},
	)
	rec := serve(UploadHandler(m, testConfig(), logger.Nop()), req, id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[uploadResponse](t, rec)
	assert.Equal(t, 1, resp.Rejected)
	require.Len(t, resp.Accepted, 2)
	assert.Equal(t, "a.jpg", resp.Accepted[0].Name)
	assert.Equal(t, "image/jpeg", resp.Accepted[0].ContentType)
	assert.Equal(t, "b.PNG", resp.Accepted[1].Name)
	assert.Equal(t, session.PhaseReady, resp.Session.Phase)
	assert.Len(t, m.Session(id).Snapshot().Files, 2)
}

func TestUploadHandler_OnlyRejectedFiles(t *testing.T) {
	m := newTestManager(t)
	id := uuid.NewString()

	rec := serve(UploadHandler(m, testConfig(), logger.Nop()), multipartUpload(t, part{"doc.pdf", []byte("%PDF")}), id)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[uploadResponse](t, rec)
	assert.Empty(t, resp.Accepted)
	assert.Equal(t, 1, resp.Rejected)
	assert.Equal(t, session.PhaseIdle, resp.Session.Phase)
}

func TestUploadHandler_RejectsBadRequests(t *testing.T) {
	m := newTestManager(t)
	h := UploadHandler(m, testConfig(), logger.Nop())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/upload", nil), uuid.NewString())
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec = serve(h, req, uuid.NewString())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessHandler_StatusCodes(t *testing.T) {
	m := newTestManager(t)
	id := uuid.NewString()
	h := ProcessHandler(m, logger.Nop())

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/process", nil), id)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	serve(UploadHandler(m, testConfig(), logger.Nop()), multipartUpload(t, part{"a.jpg", []byte{1}}, part{"b.jpg", []byte{2}}), id)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/process", nil), id)
	require.Equal(t, http.StatusAccepted, rec.Code)

	waitIdle(t, m, id)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/process", nil), id)
	assert.Equal(t, http.StatusConflict, rec.Code)

	snap := decode[session.Snapshot](t, serve(GetSessionHandler(m), httptest.NewRequest(http.MethodGet, "/api/session", nil), id))
	assert.Equal(t, session.PhaseCompleted, snap.Phase)
	require.NotNil(t, snap.Results)
	assert.Equal(t, 2, snap.Results.TotalImages)
	assert.Len(t, snap.Results.Detections, 2)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/process", nil), id)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSelectionHandlers(t *testing.T) {
	m := newTestManager(t)
	id := uuid.NewString()

	form := func(path, key, value string) *http.Request {
		return httptest.NewRequest(http.MethodPost, path+"?"+key+"="+value, nil)
	}

	rec := serve(SetModeHandler(m, logger.Nop()), form("/api/session/mode", "mode", "production"), id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ModeProduction, decode[session.Snapshot](t, rec).Mode)

	rec = serve(SetModeHandler(m, logger.Nop()), form("/api/session/mode", "mode", "staging"), id)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(SetSceneHandler(m, logger.Nop()), form("/api/session/scene", "scene", "helmet"), id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.SceneHelmet, decode[session.Snapshot](t, rec).Scene)

	rec = serve(SetSceneHandler(m, logger.Nop()), form("/api/session/scene", "scene", "mars"), id)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	scenes := decode[[]catalog.SceneInfo](t, serve(ScenesHandler(m), httptest.NewRequest(http.MethodGet, "/api/scenes", nil), id))
	assert.Len(t, scenes, len(model.Scenes))
}

func TestDeleteFileAndClearHandlers(t *testing.T) {
	m := newTestManager(t)
	id := uuid.NewString()

	up := decode[uploadResponse](t, serve(UploadHandler(m, testConfig(), logger.Nop()),
		multipartUpload(t, part{"a.jpg", []byte{1}}, part{"b.jpg", []byte{2}}), id))
	require.Len(t, up.Accepted, 2)

	del := DeleteFileHandler(m, logger.Nop())
	rec := serve(del, httptest.NewRequest(http.MethodPost, "/api/files/delete", nil), id)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(del, httptest.NewRequest(http.MethodPost, "/api/files/delete?id=missing", nil), id)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(del, httptest.NewRequest(http.MethodPost, "/api/files/delete?id="+up.Accepted[0].ID, nil), id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[session.Snapshot](t, rec).Files, 1)

	rec = serve(ClearHandler(m), httptest.NewRequest(http.MethodPost, "/api/clear", nil), id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.PhaseIdle, decode[session.Snapshot](t, rec).Phase)
	assert.Equal(t, 0, m.GetPreviewStore().Stats().Live)
}

func TestViewPreviewHandler_OwnBatchOnly(t *testing.T) {
	m := newTestManager(t)
	owner, stranger := uuid.NewString(), uuid.NewString()

	data := []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}
	up := decode[uploadResponse](t, serve(UploadHandler(m, testConfig(), logger.Nop()),
		multipartUpload(t, part{"a.jpg", data}), owner))
	fileID := up.Accepted[0].ID

	h := ViewPreviewHandler(m, logger.Nop())
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/previews/view?id="+fileID, nil), owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, data, rec.Body.Bytes())

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/previews/view?id="+fileID, nil), stranger)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/previews/view", nil), owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnnotatedPreviewHandler_Errors(t *testing.T) {
	m := newTestManager(t)
	id := uuid.NewString()
	h := AnnotatedPreviewHandler(m, logger.Nop())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/previews/annotated?index=x", nil), id)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/previews/annotated?index=0", nil), id)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunsHandler_HistoryDisabled(t *testing.T) {
	m := newTestManager(t)
	h := RunsHandler(m, testConfig(), logger.Nop())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/runs", nil), uuid.NewString())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/runs?id=nope", nil), uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogsHandlers(t *testing.T) {
	dir := t.TempDir()
	log := logger.NewLogger(&config.Config{LogDirectory: dir})
	log.Info("hello from the test")

	rec := httptest.NewRecorder()
	ShowLogsHandler(log, logger.InfoFile).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello from the test")

	rec = httptest.NewRecorder()
	ClearLogsHandler(log, logger.InfoFile).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/info/clear", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	ClearLogsHandler(log, logger.InfoFile).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logs/info/clear", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	content, err := os.ReadFile(filepath.Join(dir, logger.InfoFile))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "hello from the test")

	rec = httptest.NewRecorder()
	ShowLogsHandler(logger.Nop(), "missing.log").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunsHandler_DoesNotExposeSessionIDs(t *testing.T) {
	dir := t.TempDir()
	db, err := sqlite.New(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewLogger(&config.Config{LogDirectory: dir})
	m := newTestManagerWith(t, log, sqlite.NewRunRepository(db))
	id := uuid.NewString()

	serve(UploadHandler(m, testConfig(), log), multipartUpload(t, part{"a.jpg", []byte{1}}), id)
	require.Equal(t, http.StatusAccepted,
		serve(ProcessHandler(m, log), httptest.NewRequest(http.MethodPost, "/api/process", nil), id).Code)
	waitIdle(t, m, id)

	h := RunsHandler(m, testConfig(), log)
	var runs []map[string]interface{}
	require.Eventually(t, func() bool {
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/runs", nil), uuid.NewString())
		runs = nil
		return json.Unmarshal(rec.Body.Bytes(), &runs) == nil && len(runs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	for key, value := range runs[0] {
		assert.NotEqual(t, id, value, "field %s leaks the session id", key)
	}
	assert.NotContains(t, runs[0], "sessionId")

	runID, _ := runs[0]["runId"].(string)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/runs?id="+runID, nil), uuid.NewString())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), id)

	for _, name := range []string{logger.InfoFile, logger.WarningFile, logger.ErrorFile} {
		content, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.NotContains(t, string(content), id, "%s leaks the session id", name)
	}
}
