package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/artwork-review/internal/domain/model"
	"github.com/bigkaa/artwork-review/internal/domain/validation"
	"github.com/bigkaa/artwork-review/internal/notify"
	"github.com/bigkaa/artwork-review/internal/service"
	"github.com/bigkaa/artwork-review/internal/storage/artifact"
	"github.com/bigkaa/artwork-review/internal/storage/recordstore"
)

// pngHeader — минимальная сигнатура PNG для определения MIME-типа.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubNotifier возвращает заданный результат доставки.
type stubNotifier struct {
	delivery notify.Delivery
	err      error
}

func (s *stubNotifier) Notify(context.Context, notify.Event, *model.ArtworkRecord, notify.Extra) (notify.Delivery, error) {
	if s.err != nil {
		return notify.DeliveryFailed, s.err
	}
	return s.delivery, nil
}

type testEnv struct {
	router    http.Handler
	handler   *ArtworkHandler
	records   recordstore.Store
	artifacts *artifact.Local
	notifier  *stubNotifier
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()

	records, err := recordstore.OpenSnapshot(t.TempDir(), discardLogger())
	require.NoError(t, err)
	artifacts, err := artifact.NewLocal(t.TempDir())
	require.NoError(t, err)
	rules, err := validation.New(validation.RuleAmendNotesRequired)
	require.NoError(t, err)

	n := &stubNotifier{delivery: notify.DeliverySent}
	upload := service.NewUploadService(records, artifacts, n, rules, maxUpload, time.Second, discardLogger())
	review := service.NewReviewService(records, n, rules, model.TransitionPolicy{}, time.Second, discardLogger())
	artwork := service.NewArtworkService(records, artifacts, discardLogger())

	h := NewArtworkHandler(upload, review, artwork, maxUpload, discardLogger())
	r := chi.NewRouter()
	r.Post("/api/upload", h.Upload)
	r.Get("/api/artwork/{id}", h.GetArtwork)
	r.Post("/api/review/{id}", h.SubmitReview)
	r.Get("/review/{id}", h.ReviewRedirect)
	r.Get("/uploads/{name}", h.ServeUpload)

	return &testEnv{router: r, handler: h, records: records, artifacts: artifacts, notifier: n}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, email, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("artwork", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	if email != "" {
		require.NoError(t, mw.WriteField("clientEmail", email))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return errObj["code"].(string)
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := decodeBody(t, rec)["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return errObj["message"].(string)
}

func (e *testEnv) uploadOne(t *testing.T) string {
	t.Helper()
	rec := e.do(uploadRequest(t, "client@example.com", "logo.png", pngHeader))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody(t, rec)["id"].(string)
}

func newReviewRequest(id, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/review/"+id, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// --- Upload ---

func TestUpload_Success(t *testing.T) {
	env := newTestEnv(t, 1024)

	rec := env.do(uploadRequest(t, "client@example.com", "logo.png", pngHeader))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	id := body["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, "/review/"+id, body["reviewUrl"])
	assert.Equal(t, true, body["notificationSent"])
	assert.Equal(t, "sent", body["notification"])
	assert.NotContains(t, body, "warning")

	stored, err := env.records.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Equal(t, "logo.png", stored.OriginalName)
	assert.NotEqual(t, "logo.png", stored.StoredFileRef)
}

func TestUpload_MissingInput(t *testing.T) {
	env := newTestEnv(t, 1024)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"нет файла", uploadRequest(t, "client@example.com", "", nil)},
		{"нет email", uploadRequest(t, "", "logo.png", pngHeader)},
		{"не multipart", httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("x"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "MISSING_INPUT", errorCode(t, rec))
		})
	}
}

func TestUpload_FileTooLarge(t *testing.T) {
	env := newTestEnv(t, 16)

	rec := env.do(uploadRequest(t, "client@example.com", "logo.png", bytes.Repeat([]byte("a"), 64)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE_TOO_LARGE", errorCode(t, rec))

	counts, err := env.records.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts[model.StatusPending])
}

func TestUpload_MalformedForm(t *testing.T) {
	env := newTestEnv(t, 1024)

	full := uploadRequest(t, "client@example.com", "logo.png", pngHeader)
	raw, err := io.ReadAll(full.Body)
	require.NoError(t, err)
	truncated := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader(raw[:len(raw)-20]))
	truncated.Header.Set("Content-Type", full.Header.Get("Content-Type"))

	noBoundary := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader(raw))
	noBoundary.Header.Set("Content-Type", "multipart/form-data")

	for name, req := range map[string]*http.Request{"обрыв тела": truncated, "нет boundary": noBoundary} {
		t.Run(name, func(t *testing.T) {
			rec := env.do(req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
			assert.Equal(t, "Некорректное тело multipart/form-data", errorMessage(t, rec))
		})
	}
}

func TestUpload_FormSpoolFailureIsInternal(t *testing.T) {
	env := newTestEnv(t, 1024)
	// Любой файл уходит во временный каталог, которого нет
	env.handler.formMemory = 0
	missing := t.TempDir() + "/missing"
	t.Setenv("TMPDIR", missing)

	rec := env.do(uploadRequest(t, "client@example.com", "logo.png", pngHeader))
	assert.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
	assert.Equal(t, "Не удалось обработать загрузку", errorMessage(t, rec))
	assert.NotContains(t, rec.Body.String(), missing)
}

func TestUpload_NotificationFailureIsSoft(t *testing.T) {
	env := newTestEnv(t, 1024)
	env.notifier.err = errors.Join(notify.ErrDelivery, errors.New("smtp down"))

	rec := env.do(uploadRequest(t, "client@example.com", "logo.png", pngHeader))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["notificationSent"])
	assert.Equal(t, "failed", body["notification"])
	assert.NotEmpty(t, body["warning"])
}

// --- GetArtwork ---

func TestGetArtwork(t *testing.T) {
	env := newTestEnv(t, 1024)
	id := env.uploadOne(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/artwork/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, id, body["id"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "", body["notes"])
	assert.Equal(t, "logo.png", body["displayName"])
	assert.Equal(t, "image/png", body["contentType"])
	assert.Equal(t, true, body["artworkAvailable"])
	assert.True(t, strings.HasPrefix(body["artworkUrl"].(string), "/uploads/"))

	// Артефакт доступен по выданной ссылке
	file := env.do(httptest.NewRequest(http.MethodGet, body["artworkUrl"].(string), nil))
	assert.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, "nosniff", file.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, pngHeader, file.Body.Bytes())
}

func TestGetArtwork_NotFound(t *testing.T) {
	env := newTestEnv(t, 1024)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/artwork/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestGetArtwork_MissingArtifact(t *testing.T) {
	env := newTestEnv(t, 1024)
	id := env.uploadOne(t)

	stored, err := env.records.Get(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, env.artifacts.Delete(context.Background(), stored.StoredFileRef))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/artwork/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["artworkAvailable"])
	assert.NotContains(t, body, "artworkUrl")
}

// --- SubmitReview ---

func TestSubmitReview_Approve(t *testing.T) {
	env := newTestEnv(t, 1024)
	id := env.uploadOne(t)

	rec := env.do(newReviewRequest(id, `{"action":"approved","clientEmail":"client@example.com"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "approved", body["status"])
	assert.Equal(t, true, body["notificationSent"])

	stored, err := env.records.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, stored.Status)
}

func TestSubmitReview_Errors(t *testing.T) {
	env := newTestEnv(t, 1024)
	id := env.uploadOne(t)

	tests := []struct {
		name   string
		id     string
		body   string
		status int
		code   string
	}{
		{"неизвестный id", "unknown", `{"action":"approved"}`, http.StatusNotFound, "NOT_FOUND"},
		{"недопустимое действие", id, `{"action":"reject"}`, http.StatusBadRequest, "INVALID_ACTION"},
		{"правки без комментария", id, `{"action":"amend","notes":"  "}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"некорректный JSON", id, `{"action":`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"пустое тело", id, ``, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(newReviewRequest(tt.id, tt.body))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}

	stored, err := env.records.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
}

func TestSubmitReview_BodyErrorsDoNotEchoDecoder(t *testing.T) {
	env := newTestEnv(t, 1024)
	id := env.uploadOne(t)

	rec := env.do(newReviewRequest(id, `{"action": tru}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Некорректный JSON", errorMessage(t, rec))

	rec = env.do(newReviewRequest(id, ``))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
	assert.Equal(t, "Пустое тело запроса", errorMessage(t, rec))
}

func TestSubmitReview_Conflict(t *testing.T) {
	env := newTestEnv(t, 1024)
	id := env.uploadOne(t)

	rec := env.do(newReviewRequest(id, `{"action":"amend","notes":"Bigger logo"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(newReviewRequest(id, `{"action":"approved"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, rec))

	stored, err := env.records.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAmend, stored.Status)
	assert.Equal(t, "Bigger logo", stored.Notes)
}

// --- ReviewRedirect / ServeUpload ---

func TestReviewRedirect(t *testing.T) {
	env := newTestEnv(t, 1024)
	id := env.uploadOne(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/review/"+id, nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/artwork-approval.html?id="+id, rec.Header().Get("Location"))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/review/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeUpload_InvalidRef(t *testing.T) {
	env := newTestEnv(t, 1024)

	for _, name := range []string{"..%2Fsnapshot.json", "not-a-ref.png", "missing"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
	}
}

// --- Health ---

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeStats map[model.Status]int

func (f fakeStats) Stats(context.Context) (map[model.Status]int, error) { return f, nil }

type fakeDeps map[string]bool

func (f fakeDeps) Health() map[string]bool { return f }

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "artwork-review", body["service"])
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		records    Pinger
		deps       DependencyHealth
		wantCode   int
		wantStatus string
	}{
		{"всё доступно", fakePinger{}, nil, http.StatusOK, "ok"},
		{"хранилище недоступно", fakePinger{err: errors.New("disk")}, nil, http.StatusServiceUnavailable, "fail"},
		{"почтовый провайдер недоступен", fakePinger{}, fakeDeps{"email-provider": false}, http.StatusOK, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.records, fakePinger{}, fakeStats{model.StatusPending: 2}, tt.deps)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantStatus, body["status"])
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, map[string]any{"pending": float64(2)}, body["records"])
			}
		})
	}
}
