package ingestion

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"localscribe/internal/asr"
)

// ErrUnsupportedFormat is returned for files ffmpeg is not expected to decode
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// AudioIngester stores uploaded audio until it has been transcribed
type AudioIngester struct {
	dataDir string
}

// NewAudioIngester creates a new AudioIngester writing under dataDir
func NewAudioIngester(dataDir string) *AudioIngester {
	return &AudioIngester{dataDir: dataDir}
}

// AudioFile represents an uploaded audio file
type AudioFile struct {
	Filename string
	Reader   io.Reader
}

// Upload is a saved audio file. Remove deletes it.
type Upload struct {
	ID       string
	Filename string
	Path     string
	dir      string
}

// Remove deletes the upload directory
func (u *Upload) Remove() error {
	return os.RemoveAll(u.dir)
}

// Save copies the file into its own directory under dataDir/uploads
func (i *AudioIngester) Save(file AudioFile) (*Upload, error) {
	name := filepath.Base(file.Filename)
	if name == "." || name == string(filepath.Separator) || !asr.IsSupportedFormat(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, file.Filename)
	}

	id := uuid.New().String()
	dir := filepath.Join(i.dataDir, "uploads", id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	upload := &Upload{
		ID:       id,
		Filename: name,
		Path:     filepath.Join(dir, name),
		dir:      dir,
	}

	dest, err := os.Create(upload.Path)
	if err != nil {
		upload.Remove()
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	_, err = io.Copy(dest, file.Reader)
	if cerr := dest.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		upload.Remove()
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	return upload, nil
}
