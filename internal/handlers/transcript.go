package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"localscribe/internal/asr"
	"localscribe/internal/ingestion"
	"localscribe/internal/storage"
	"localscribe/internal/worker"
)

// TranscriptHandler は文字起こしAPIのハンドラー
type TranscriptHandler struct {
	ingester *ingestion.AudioIngester
	worker   *worker.Worker
	repo     *storage.TranscriptRepository
	options  asr.DecodeOptions
	logger   *zap.Logger
}

// NewTranscriptHandler は新しいTranscriptHandlerを作成
func NewTranscriptHandler(
	ingester *ingestion.AudioIngester,
	w *worker.Worker,
	repo *storage.TranscriptRepository,
	logger *zap.Logger,
) *TranscriptHandler {
	return &TranscriptHandler{
		ingester: ingester,
		worker:   w,
		repo:     repo,
		options:  asr.DefaultDecodeOptions(),
		logger:   logger,
	}
}

// Transcribe はアップロードされた音声を文字起こしして保存
// POST /api/transcribe
func (h *TranscriptHandler) Transcribe(c echo.Context) error {
	ctx := c.Request().Context()

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file is required"})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read upload"})
	}
	defer src.Close()

	upload, err := h.ingester.Save(ingestion.AudioFile{Filename: fh.Filename, Reader: src})
	if errors.Is(err, ingestion.ErrUnsupportedFormat) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	defer upload.Remove()

	t, err := h.worker.Submit(ctx, &worker.Job{
		AudioPath:  upload.Path,
		SourceName: upload.Filename,
		Options:    h.options,
	})
	if err != nil {
		// 失敗した実行も保存されているのでIDを返す
		if t != nil && t.ID != "" {
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error(), "id": t.ID})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, t)
}

// List は文字起こし結果の一覧を取得
// GET /api/transcripts?limit=20
func (h *TranscriptHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	transcripts, err := h.repo.List(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, transcripts)
}

// Get は文字起こし結果をセグメント付きで取得
// GET /api/transcripts/:id
func (h *TranscriptHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	t, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if t == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "transcript not found"})
	}

	return c.JSON(http.StatusOK, t)
}

// UpdateSegmentRequest はセグメント修正のリクエスト
type UpdateSegmentRequest struct {
	Text string `json:"text"`
}

// UpdateSegment はセグメントのテキストを修正し、更新後の文字起こし結果を返す
// PATCH /api/transcripts/:id/segments/:idx
func (h *TranscriptHandler) UpdateSegment(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid segment index"})
	}

	var req UpdateSegmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}

	if err := h.repo.UpdateSegmentText(ctx, id, idx, text); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "segment not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	t, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if t == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "transcript not found"})
	}

	h.logger.Info("Segment updated", zap.String("id", id), zap.Int("idx", idx))
	return c.JSON(http.StatusOK, t)
}

// Delete は文字起こし結果を削除
// DELETE /api/transcripts/:id
func (h *TranscriptHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	t, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if t == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "transcript not found"})
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}
