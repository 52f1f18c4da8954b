package uploader

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	mp4 "github.com/abema/go-mp4"
	"github.com/gabriel-vasile/mimetype"

	"github.com/motorscan/carhealth/internal/types/media"
)

// VideoInfo holds the intrinsic properties read from an mp4 container.
type VideoInfo struct {
	Width    int
	Height   int
	Duration float64
}

// ProbeImage decodes just enough of the file to read its pixel
// dimensions. The file handle is released on every exit path.
func ProbeImage(path string) (media.Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.Dimensions{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return media.Dimensions{}, fmt.Errorf("failed to decode image: %w", err)
	}

	return media.Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

// ProbeVideo reads duration and track dimensions from an mp4 file.
// Duration comes from the movie header; dimensions from the first
// video track that carries them.
func ProbeVideo(path string) (VideoInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	info, err := mp4.Probe(f)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("failed to read video metadata: %w", err)
	}

	out := VideoInfo{}
	if info.Timescale > 0 {
		out.Duration = float64(info.Duration) / float64(info.Timescale)
	}
	for _, track := range info.Tracks {
		if track.AVC != nil {
			out.Width = int(track.AVC.Width)
			out.Height = int(track.AVC.Height)
			break
		}
	}

	return out, nil
}

// DetectMimeType sniffs the MIME type from file content rather than
// trusting the extension.
func DetectMimeType(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect mime type: %w", err)
	}
	return mtype.String(), nil
}
