package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"localscribe/internal/version"
)

// Health はヘルスチェック
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// Register はルートを登録
func Register(e *echo.Echo, transcripts *TranscriptHandler, stream *StreamHandler) {
	e.GET("/health", Health)

	api := e.Group("/api")
	api.POST("/transcribe", transcripts.Transcribe)
	api.GET("/transcripts", transcripts.List)
	api.GET("/transcripts/:id", transcripts.Get)
	api.DELETE("/transcripts/:id", transcripts.Delete)
	api.PATCH("/transcripts/:id/segments/:idx", transcripts.UpdateSegment)

	e.GET("/ws/transcribe", stream.Transcribe)
}
