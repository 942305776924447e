package models

import (
	"time"

	"localscribe/internal/asr"
)

// Transcript は保存された文字起こし結果
type Transcript struct {
	ID                  string        `json:"id"`
	SourcePath          string        `json:"source_path"`
	Model               string        `json:"model"`
	Device              string        `json:"device"`
	Precision           string        `json:"precision"`
	Language            string        `json:"language"`
	LanguageProbability float64       `json:"language_probability"`
	Status              string        `json:"status"`
	Error               string        `json:"error,omitempty"`
	Segments            []asr.Segment `json:"segments,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
}

// 文字起こしステータス
const (
	TranscriptStatusCompleted = "completed"
	TranscriptStatusFailed    = "failed"
)

// Info は言語情報を返す
func (t *Transcript) Info() asr.Info {
	return asr.Info{
		Language:            t.Language,
		LanguageProbability: t.LanguageProbability,
	}
}

// Text はセグメントのテキストを連結して返す
func (t *Transcript) Text() string {
	var text string
	for i, seg := range t.Segments {
		if i > 0 {
			text += " "
		}
		text += seg.Text
	}
	return text
}
