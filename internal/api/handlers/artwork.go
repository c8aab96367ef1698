// artwork.go — обработчики загрузки, просмотра и согласования макетов.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/artwork-review/internal/api/errors"
	"github.com/bigkaa/artwork-review/internal/service"
)

const (
	// multipartMemory — объём формы, который держится в памяти, остальное уходит во временные файлы
	multipartMemory = 32 << 20
	// multipartOverhead — запас на заголовки и текстовые поля формы сверх лимита файла
	multipartOverhead = 1 << 20
	// maxReviewBody — максимальный размер JSON решения клиента
	maxReviewBody = 64 << 10
)

// reviewPagePath — страница согласования, на которую ведёт ссылка из письма.
const reviewPagePath = "/artwork-approval.html"

// ArtworkHandler реализует API загрузки и согласования макетов.
type ArtworkHandler struct {
	upload    *service.UploadService
	review    *service.ReviewService
	artwork   *service.ArtworkService
	maxUpload int64
	// formMemory — лимит формы в памяти для ParseMultipartForm
	formMemory int64
	logger     *slog.Logger
}

// NewArtworkHandler создаёт обработчик API макетов.
func NewArtworkHandler(
	upload *service.UploadService,
	review *service.ReviewService,
	artwork *service.ArtworkService,
	maxUpload int64,
	logger *slog.Logger,
) *ArtworkHandler {
	return &ArtworkHandler{
		upload:     upload,
		review:     review,
		artwork:    artwork,
		maxUpload:  maxUpload,
		formMemory: multipartMemory,
		logger:     logger.With(slog.String("component", "artwork_handler")),
	}
}

// uploadResponse — ответ на успешную загрузку.
type uploadResponse struct {
	Success          bool   `json:"success"`
	ID               string `json:"id"`
	ReviewURL        string `json:"reviewUrl"`
	NotificationSent bool   `json:"notificationSent"`
	Notification     string `json:"notification"`
	Warning          string `json:"warning,omitempty"`
}

// artworkResponse — данные макета для страницы согласования.
type artworkResponse struct {
	ID               string `json:"id"`
	ArtworkURL       string `json:"artworkUrl,omitempty"`
	OriginalName     string `json:"originalName"`
	DisplayName      string `json:"displayName"`
	ContentType      string `json:"contentType,omitempty"`
	Status           string `json:"status"`
	Notes            string `json:"notes"`
	ArtworkAvailable bool   `json:"artworkAvailable"`
}

// reviewRequest — решение клиента.
type reviewRequest struct {
	Action      string `json:"action"`
	Notes       string `json:"notes"`
	ClientEmail string `json:"clientEmail"`
}

// reviewResponse — ответ на сохранённое решение.
type reviewResponse struct {
	Success          bool   `json:"success"`
	Status           string `json:"status"`
	NotificationSent bool   `json:"notificationSent"`
	Notification     string `json:"notification"`
	Warning          string `json:"warning,omitempty"`
}

// Upload обрабатывает POST /api/upload (multipart: artwork, clientEmail).
func (h *ArtworkHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)

	if err := r.ParseMultipartForm(h.formMemory); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			apierrors.FileTooLarge(w, "Файл превышает максимальный размер "+strconv.FormatInt(h.maxUpload, 10)+" байт")
		case errors.Is(err, http.ErrNotMultipart):
			apierrors.WriteCode(w, apierrors.CodeMissingInput, "Ожидается multipart/form-data с полями artwork и clientEmail")
		case isMalformedForm(err):
			h.logger.Warn("Некорректная multipart-форма", slog.String("error", err.Error()))
			apierrors.ValidationError(w, "Некорректное тело multipart/form-data")
		default:
			h.logger.Error("Ошибка разбора формы загрузки", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Не удалось обработать загрузку")
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	params := service.UploadParams{
		ClientEmail: r.FormValue("clientEmail"),
		Size:        -1,
	}

	file, header, err := r.FormFile("artwork")
	switch {
	case err == nil:
		defer func(f multipart.File) { _ = f.Close() }(file)
		params.Reader = file
		params.OriginalName = header.Filename
		params.Size = header.Size
	case errors.Is(err, http.ErrMissingFile):
		// Отсутствие файла проверяет сервис (MISSING_INPUT)
	default:
		h.logger.Error("Ошибка чтения загруженного файла", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось обработать загрузку")
		return
	}

	result, err := h.upload.Upload(r.Context(), params)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Success:          true,
		ID:               result.Record.ID,
		ReviewURL:        "/review/" + url.PathEscape(result.Record.ID),
		NotificationSent: result.Notification.Sent,
		Notification:     string(result.Notification.Delivery),
		Warning:          result.Notification.Warning,
	})
}

// isMalformedForm — ошибка в самом теле формы, а не на стороне сервера.
func isMalformedForm(err error) bool {
	return errors.Is(err, http.ErrMissingBoundary) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, multipart.ErrMessageTooLarge)
}

// GetArtwork обрабатывает GET /api/artwork/{id}.
func (h *ArtworkHandler) GetArtwork(w http.ResponseWriter, r *http.Request) {
	view, err := h.artwork.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	rec := view.Record
	resp := artworkResponse{
		ID:               rec.ID,
		OriginalName:     rec.OriginalName,
		DisplayName:      rec.DisplayName(),
		ContentType:      rec.ContentType,
		Status:           string(rec.Status),
		Notes:            rec.Notes,
		ArtworkAvailable: view.Available,
	}
	if view.Available {
		resp.ArtworkURL = "/uploads/" + url.PathEscape(rec.StoredFileRef)
	}

	writeJSON(w, http.StatusOK, resp)
}

// SubmitReview обрабатывает POST /api/review/{id} (JSON: action, notes, clientEmail).
func (h *ArtworkHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxReviewBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.ValidationError(w, "Тело запроса слишком большое")
			return
		}
		if errors.Is(err, io.EOF) {
			apierrors.ValidationError(w, "Пустое тело запроса")
			return
		}
		h.logger.Debug("Некорректный JSON решения", slog.String("error", err.Error()))
		apierrors.ValidationError(w, "Некорректный JSON")
		return
	}

	result, err := h.review.Submit(r.Context(), service.ReviewParams{
		ID:          chi.URLParam(r, "id"),
		Action:      req.Action,
		Notes:       req.Notes,
		ClientEmail: req.ClientEmail,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reviewResponse{
		Success:          true,
		Status:           string(result.Record.Status),
		NotificationSent: result.Notification.Sent,
		Notification:     string(result.Notification.Delivery),
		Warning:          result.Notification.Warning,
	})
}

// ReviewRedirect обрабатывает GET /review/{id}: ссылка из письма
// перенаправляет на страницу согласования.
func (h *ArtworkHandler) ReviewRedirect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.artwork.Exists(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	http.Redirect(w, r, reviewPagePath+"?id="+url.QueryEscape(id), http.StatusFound)
}

// ServeUpload обрабатывает GET /uploads/{name}: отдаёт артефакт
// по сгенерированному имени.
func (h *ArtworkHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	obj, err := h.artwork.OpenArtifact(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer func() { _ = obj.Body.Close() }()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}

	if rs, ok := obj.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, "", obj.ModTime, rs)
		return
	}

	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("Ошибка отправки артефакта",
			slog.String("stored_file_ref", chi.URLParam(r, "name")),
			slog.String("error", err.Error()),
		)
	}
}

// writeServiceError преобразует ошибку сервиса в JSON-ответ.
func (h *ArtworkHandler) writeServiceError(w http.ResponseWriter, err error) {
	svcErr := service.AsError(err)
	if svcErr.Code == apierrors.CodeInternalError || svcErr.Code == apierrors.CodeStoreWriteError {
		h.logger.Error("Ошибка обработки запроса",
			slog.String("code", svcErr.Code),
			slog.String("error", err.Error()),
		)
	}
	apierrors.WriteCode(w, svcErr.Code, svcErr.Message)
}

// writeJSON записывает JSON-ответ.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
