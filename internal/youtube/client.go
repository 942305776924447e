// Package youtube downloads audio tracks for transcription.
package youtube

import (
	"strings"

	"github.com/kkdai/youtube/v2"
)

// Client はYouTube API操作を抽象化するクライアント
type Client struct {
	client youtube.Client
}

// NewClient は新しいYouTubeクライアントを作成
func NewClient() *Client {
	return &Client{
		client: youtube.Client{},
	}
}

// IsVideoURL はYouTubeの動画URLかどうかを判定
func IsVideoURL(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "youtube.com/") || strings.Contains(s, "youtu.be/")
}
