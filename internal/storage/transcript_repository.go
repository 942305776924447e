package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"localscribe/internal/asr"
	"localscribe/internal/models"
)

// ErrNotFound は更新対象の文字起こしまたはセグメントが存在しない
var ErrNotFound = errors.New("not found")

// TranscriptRepository は文字起こし結果のデータアクセス層
type TranscriptRepository struct {
	db *DB
}

// NewTranscriptRepository は新しいTranscriptRepositoryを作成
func NewTranscriptRepository(db *DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// Create は文字起こし結果とセグメントを1トランザクションで保存
func (r *TranscriptRepository) Create(ctx context.Context, t *models.Transcript) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Status == "" {
		t.Status = models.TranscriptStatusCompleted
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transcripts (id, source_path, model, device, precision, language, language_probability, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SourcePath, t.Model, t.Device, t.Precision,
		t.Language, t.LanguageProbability, t.Status, nullString(t.Error), t.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transcript: %w", err)
	}

	for i, seg := range t.Segments {
		var words *string
		if seg.HasWords() {
			data, err := json.Marshal(seg.Words)
			if err != nil {
				return fmt.Errorf("failed to marshal words: %w", err)
			}
			s := string(data)
			words = &s
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO segments (transcript_id, idx, start_time, end_time, text, words)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, i, seg.Start, seg.End, seg.Text, words,
		)
		if err != nil {
			return fmt.Errorf("failed to insert segment %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetByID はIDで文字起こし結果をセグメント付きで取得
func (r *TranscriptRepository) GetByID(ctx context.Context, id string) (*models.Transcript, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, source_path, model, device, precision, language, language_probability, status, error, created_at
		FROM transcripts WHERE id = ?`, id)

	t, err := scanTranscript(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	segments, err := r.listSegments(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Segments = segments
	return t, nil
}

// List は新しい順に文字起こし結果を取得（セグメントは含まない）
func (r *TranscriptRepository) List(ctx context.Context, limit int) ([]*models.Transcript, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_path, model, device, precision, language, language_probability, status, error, created_at
		FROM transcripts ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transcripts []*models.Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		transcripts = append(transcripts, t)
	}
	return transcripts, rows.Err()
}

// Delete は文字起こし結果を削除（セグメントはCASCADEで削除）
func (r *TranscriptRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transcripts WHERE id = ?`, id)
	return err
}

// UpdateSegmentText はセグメントのテキストを修正する
// 単語タイミングは元の認識結果のまま残す
func (r *TranscriptRepository) UpdateSegmentText(ctx context.Context, transcriptID string, idx int, text string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE segments SET text = ?
		WHERE transcript_id = ? AND idx = ?`,
		text, transcriptID, idx,
	)
	if err != nil {
		return fmt.Errorf("failed to update segment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("segment %d of transcript %s: %w", idx, transcriptID, ErrNotFound)
	}
	return nil
}

func (r *TranscriptRepository) listSegments(ctx context.Context, id string) ([]asr.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT start_time, end_time, text, words
		FROM segments WHERE transcript_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []asr.Segment
	for rows.Next() {
		var seg asr.Segment
		var words sql.NullString
		if err := rows.Scan(&seg.Start, &seg.End, &seg.Text, &words); err != nil {
			return nil, err
		}
		if words.Valid {
			if err := json.Unmarshal([]byte(words.String), &seg.Words); err != nil {
				return nil, fmt.Errorf("failed to unmarshal words: %w", err)
			}
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTranscript(row rowScanner) (*models.Transcript, error) {
	var t models.Transcript
	var errMsg sql.NullString
	var createdAt int64
	err := row.Scan(
		&t.ID, &t.SourcePath, &t.Model, &t.Device, &t.Precision,
		&t.Language, &t.LanguageProbability, &t.Status, &errMsg, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	t.Error = errMsg.String
	t.CreatedAt = time.UnixMilli(createdAt)
	return &t, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
