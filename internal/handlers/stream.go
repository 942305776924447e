package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"localscribe/internal/asr"
	"localscribe/internal/ingestion"
	"localscribe/internal/transcript"
	"localscribe/internal/worker"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to receive the audio message.
	readWait = 60 * time.Second

	// Maximum audio message size.
	maxAudioSize = 200 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Messages sent to websocket clients. Numeric fields never use omitempty:
// a segment at 0.00 and progress 0 are real values.
type (
	SegmentMessage struct {
		Type string `json:"type"` // "segment"
		asr.Segment
	}

	ProgressMessage struct {
		Type    string `json:"type"` // "progress"
		Percent int    `json:"percent"`
	}

	DoneMessage struct {
		Type string `json:"type"` // "done"
		ID   string `json:"id"`
		asr.Info
		Text string `json:"text"`
	}

	ErrorMessage struct {
		Type    string `json:"type"` // "error"
		ID      string `json:"id,omitempty"`
		Message string `json:"message"`
	}
)

func errorMessage(id, message string) ErrorMessage {
	return ErrorMessage{Type: "error", ID: id, Message: message}
}

// StreamHandler はWebSocketで文字起こしを逐次返すハンドラー
type StreamHandler struct {
	ingester       *ingestion.AudioIngester
	worker         *worker.Worker
	assumedSeconds float64
	logger         *zap.Logger
}

// NewStreamHandler は新しいStreamHandlerを作成
func NewStreamHandler(ingester *ingestion.AudioIngester, w *worker.Worker, assumedSeconds float64, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		ingester:       ingester,
		worker:         w,
		assumedSeconds: assumedSeconds,
		logger:         logger,
	}
}

// Transcribe は1つのバイナリメッセージで音声を受け取り、セグメントごとに結果を送信
// GET /ws/transcribe?name=talk.mp3
func (h *StreamHandler) Transcribe(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}
	defer conn.Close()

	name := c.QueryParam("name")
	if name == "" {
		name = "stream.wav"
	}

	conn.SetReadLimit(maxAudioSize)
	conn.SetReadDeadline(time.Now().Add(readWait))
	messageType, audio, err := conn.ReadMessage()
	if err != nil {
		h.logger.Warn("Failed to read audio message", zap.Error(err))
		return nil
	}
	if messageType != websocket.BinaryMessage {
		h.send(conn, errorMessage("", "expected a binary audio message"))
		return nil
	}

	upload, err := h.ingester.Save(ingestion.AudioFile{Filename: name, Reader: bytes.NewReader(audio)})
	if err != nil {
		h.send(conn, errorMessage("", err.Error()))
		return nil
	}
	defer upload.Remove()

	h.logger.Info("Streaming transcription",
		zap.String("name", upload.Filename),
		zap.Int("bytes", len(audio)),
	)

	// OnSegment runs on the worker goroutine while this one waits in Submit
	var watermark float64
	writeFailed := false
	onSegment := func(seg asr.Segment) {
		if writeFailed {
			return
		}
		if seg.End > watermark {
			watermark = seg.End
		}
		if err := h.send(conn, SegmentMessage{Type: "segment", Segment: seg}); err != nil {
			writeFailed = true
			return
		}
		if err := h.send(conn, ProgressMessage{
			Type:    "progress",
			Percent: transcript.Percent(watermark, h.assumedSeconds),
		}); err != nil {
			writeFailed = true
		}
	}

	t, err := h.worker.Submit(c.Request().Context(), &worker.Job{
		AudioPath:  upload.Path,
		SourceName: upload.Filename,
		Options:    asr.DefaultDecodeOptions(),
		OnSegment:  onSegment,
	})
	if err != nil {
		var id string
		if t != nil {
			id = t.ID
		}
		h.send(conn, errorMessage(id, err.Error()))
		return nil
	}

	h.send(conn, ProgressMessage{Type: "progress", Percent: 100})
	h.send(conn, DoneMessage{Type: "done", ID: t.ID, Info: t.Info(), Text: t.Text()})

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

func (h *StreamHandler) send(conn *websocket.Conn, msg any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Warn("Failed to write message", zap.Error(err))
		return err
	}
	return nil
}
