package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"localscribe/internal/asr"
	"localscribe/internal/asr/asrtest"
	"localscribe/internal/ingestion"
	"localscribe/internal/models"
	"localscribe/internal/storage"
	"localscribe/internal/worker"
)

func newTestServer(t *testing.T, engine *asrtest.Engine) (*echo.Echo, *storage.TranscriptRepository) {
	t.Helper()

	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := storage.NewTranscriptRepository(db)
	logger := zap.NewNop()
	w := worker.NewWorker(engine, asr.NewEngineConfig("large-v3", false), repo, logger)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})

	ingester := ingestion.NewAudioIngester(dir)
	e := echo.New()
	Register(e,
		NewTranscriptHandler(ingester, w, repo, logger),
		NewStreamHandler(ingester, w, 21.8, logger),
	)
	return e, repo
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t, asrtest.Demo())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["version"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestTranscribeUploadAndFetch(t *testing.T) {
	e, _ := newTestServer(t, asrtest.Demo())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "demo.wav", "RIFF"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var created models.Transcript
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.SourcePath != "demo.wav" || created.Language != "en" {
		t.Errorf("created = %+v", created)
	}
	if len(created.Segments) != 2 || created.Segments[0].Text != "hello" {
		t.Errorf("segments = %+v", created.Segments)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transcripts/"+created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var fetched models.Transcript
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatal(err)
	}
	if fetched.ID != created.ID || len(fetched.Segments) != 2 || fetched.Segments[1].Text != "world" {
		t.Errorf("fetched = %+v", fetched)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transcripts?limit=5", nil))
	var list []models.Transcript
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list = %+v", list)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/transcripts/"+created.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
}

func TestTranscribeUploadErrors(t *testing.T) {
	tests := []struct {
		name       string
		engineErr  error
		filename   string
		wantStatus int
	}{
		{name: "unsupported format", filename: "notes.txt", wantStatus: http.StatusBadRequest},
		{name: "engine failure", filename: "bad.mp3", engineErr: errors.New("decode failed"), wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := asrtest.Demo()
			engine.Err = tt.engineErr
			e, repo := newTestServer(t, engine)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, uploadRequest(t, tt.filename, "data"))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			if tt.engineErr == nil {
				return
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			stored, err := repo.GetByID(context.Background(), body["id"])
			if err != nil || stored == nil || stored.Status != models.TranscriptStatusFailed {
				t.Errorf("stored = %+v, err = %v", stored, err)
			}
		})
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	e, _ := newTestServer(t, asrtest.Demo())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transcribe", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestGetTranscriptNotFound(t *testing.T) {
	e, _ := newTestServer(t, asrtest.Demo())

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(method, "/api/transcripts/missing", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d", method, rec.Code)
		}
	}
}

func patchSegment(t *testing.T, e *echo.Echo, id, idx, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/api/transcripts/"+id+"/segments/"+idx, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestUpdateSegment(t *testing.T) {
	e, _ := newTestServer(t, asrtest.Demo())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "demo.wav", "RIFF"))
	var created models.Transcript
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = patchSegment(t, e, created.ID, "1", `{"text":"  there "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var updated models.Transcript
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Text() != "hello there" {
		t.Errorf("text = %q", updated.Text())
	}

	tests := []struct {
		name       string
		id         string
		idx        string
		body       string
		wantStatus int
	}{
		{name: "empty text", id: created.ID, idx: "0", body: `{"text":"   "}`, wantStatus: http.StatusBadRequest},
		{name: "missing text", id: created.ID, idx: "0", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "bad index", id: created.ID, idx: "first", body: `{"text":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "negative index", id: created.ID, idx: "-1", body: `{"text":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown segment", id: created.ID, idx: "5", body: `{"text":"x"}`, wantStatus: http.StatusNotFound},
		{name: "unknown transcript", id: "missing", idx: "0", body: `{"text":"x"}`, wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := patchSegment(t, e, tt.id, tt.idx, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func dialStream(t *testing.T, e *echo.Echo, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/transcribe" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// streamEvent decodes any of the stream message types
type streamEvent struct {
	Type                string     `json:"type"`
	Start               float64    `json:"start"`
	End                 float64    `json:"end"`
	Text                string     `json:"text"`
	Words               []asr.Word `json:"words"`
	Percent             int        `json:"percent"`
	ID                  string     `json:"id"`
	Language            string     `json:"language"`
	LanguageProbability float64    `json:"language_probability"`
	Message             string     `json:"message"`

	fields map[string]json.RawMessage
}

func readMessages(t *testing.T, conn *websocket.Conn) []streamEvent {
	t.Helper()
	var msgs []streamEvent
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return msgs
		}
		var msg streamEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid message %s: %v", data, err)
		}
		if err := json.Unmarshal(data, &msg.fields); err != nil {
			t.Fatal(err)
		}
		msgs = append(msgs, msg)
		if msg.Type == "done" || msg.Type == "error" {
			return msgs
		}
	}
}

func TestStreamTranscribe(t *testing.T) {
	e, repo := newTestServer(t, asrtest.Demo())
	conn := dialStream(t, e, "?name=demo.wav")

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("RIFF")); err != nil {
		t.Fatal(err)
	}
	msgs := readMessages(t, conn)

	var types []string
	for _, m := range msgs {
		types = append(types, m.Type)
	}
	want := "segment,progress,segment,progress,progress,done"
	if got := strings.Join(types, ","); got != want {
		t.Fatalf("message types = %s, want %s", got, want)
	}

	if msgs[0].Text != "hello" || msgs[2].Text != "world" || msgs[2].End != 3.0 {
		t.Errorf("segments = %+v, %+v", msgs[0], msgs[2])
	}
	if msgs[1].Percent != 6 || msgs[3].Percent != 13 || msgs[4].Percent != 100 {
		t.Errorf("progress = %d, %d, %d", msgs[1].Percent, msgs[3].Percent, msgs[4].Percent)
	}

	done := msgs[5]
	if done.Language != "en" || done.ID == "" || done.Text != "hello world" {
		t.Errorf("done = %+v", done)
	}
	stored, err := repo.GetByID(context.Background(), done.ID)
	if err != nil || stored == nil || stored.SourcePath != "demo.wav" {
		t.Errorf("stored = %+v, err = %v", stored, err)
	}
}

func TestStreamTranscribeErrors(t *testing.T) {
	t.Run("text message", func(t *testing.T) {
		e, _ := newTestServer(t, asrtest.Demo())
		conn := dialStream(t, e, "")
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))

		msgs := readMessages(t, conn)
		if len(msgs) != 1 || msgs[0].Type != "error" {
			t.Errorf("messages = %+v", msgs)
		}
	})

	t.Run("engine failure", func(t *testing.T) {
		engine := asrtest.Demo()
		engine.Segments = nil
		engine.Err = errors.New("decode failed")
		e, _ := newTestServer(t, engine)
		conn := dialStream(t, e, "?name=bad.mp3")
		conn.WriteMessage(websocket.BinaryMessage, []byte("data"))

		msgs := readMessages(t, conn)
		if len(msgs) != 1 || msgs[0].Type != "error" || msgs[0].Message != "decode failed" || msgs[0].ID == "" {
			t.Errorf("messages = %+v", msgs)
		}
	})
}

func TestStreamTranscribe_ZeroValuesOnWire(t *testing.T) {
	engine := asrtest.Demo()
	engine.Segments = []asr.Segment{{Start: 0, End: 0.1, Text: "hi"}}
	e, _ := newTestServer(t, engine)
	conn := dialStream(t, e, "?name=short.wav")

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("RIFF")); err != nil {
		t.Fatal(err)
	}
	msgs := readMessages(t, conn)
	if len(msgs) < 2 {
		t.Fatalf("messages = %+v", msgs)
	}

	tests := []struct {
		msg   streamEvent
		typ   string
		field string
		want  string
	}{
		{msg: msgs[0], typ: "segment", field: "start", want: "0"},
		{msg: msgs[0], typ: "segment", field: "end", want: "0.1"},
		{msg: msgs[1], typ: "progress", field: "percent", want: "0"},
	}
	for _, tt := range tests {
		if tt.msg.Type != tt.typ {
			t.Errorf("type = %q, want %q", tt.msg.Type, tt.typ)
			continue
		}
		raw, ok := tt.msg.fields[tt.field]
		if !ok {
			t.Errorf("%s message has no %q field", tt.typ, tt.field)
			continue
		}
		if string(raw) != tt.want {
			t.Errorf("%s.%s = %s, want %s", tt.typ, tt.field, raw, tt.want)
		}
	}
	if _, ok := msgs[0].fields["percent"]; ok {
		t.Error("segment message carries a percent field")
	}
}
