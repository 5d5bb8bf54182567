package resolver

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/lrstanley/go-ytdlp"
)

// YTDLPExtractor downloads the best audio stream and transcodes it with
// yt-dlp's audio post-processor.
type YTDLPExtractor struct {
	AudioFormat  string
	AudioQuality string
}

var _ Extractor = YTDLPExtractor{}

func (e YTDLPExtractor) Extract(ctx context.Context, url, dir, name string) error {
	res, err := ytdlp.New().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat(e.AudioFormat).
		AudioQuality(e.AudioQuality).
		Output(filepath.Join(dir, name+".%(ext)s")).
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, url)
	if err != nil {
		if res != nil && res.Stderr != "" {
			return fmt.Errorf("yt-dlp failed: %w: %s", err, res.Stderr)
		}
		return fmt.Errorf("yt-dlp failed: %w", err)
	}
	return nil
}
