package uploader

import (
	"errors"
	"fmt"
)

// Upload policy. The backend enforces the same bounds on the
// authorization endpoint; rejecting here saves the round trip.
const (
	MaxPhotoSize = 10 * 1024 * 1024
	MaxVideoSize = 50 * 1024 * 1024

	MinVideoDuration = 10.0
	MaxVideoDuration = 20.0
)

var (
	AllowedPhotoMimeTypes = []string{"image/jpeg", "image/jpg", "image/png"}
	AllowedVideoMimeTypes = []string{"video/mp4"}
)

var ErrEmptyFile = errors.New("file is empty")

// ValidateOptions describes one candidate file. Duration is only
// consulted when CheckDuration is set, since it is unknown until the
// video has been decoded.
type ValidateOptions struct {
	FileName      string
	MimeType      string
	Size          int64
	IsVideo       bool
	CheckDuration bool
	Duration      float64
}

// ValidateFile runs the type, size and duration checks in that order
// and returns the first failure. It performs no I/O.
func ValidateFile(opts ValidateOptions) error {
	if err := ValidateFileType(opts.MimeType, opts.IsVideo); err != nil {
		return err
	}
	if err := ValidateFileSize(opts.Size, opts.IsVideo); err != nil {
		return err
	}
	if opts.IsVideo && opts.CheckDuration {
		if err := ValidateVideoDuration(opts.Duration); err != nil {
			return err
		}
	}
	return nil
}

// ValidateFileType checks the declared MIME type against the allowed
// set for the media kind.
func ValidateFileType(mimeType string, isVideo bool) error {
	allowed := AllowedPhotoMimeTypes
	label, expected := "photo", "JPG or PNG"
	if isVideo {
		allowed = AllowedVideoMimeTypes
		label, expected = "video", "MP4"
	}

	for _, t := range allowed {
		if mimeType == t {
			return nil
		}
	}
	return fmt.Errorf("invalid file type: only %s %ss are allowed", expected, label)
}

// ValidateFileSize enforces the byte ceiling for the media kind.
// Zero-byte files are always rejected.
func ValidateFileSize(size int64, isVideo bool) error {
	maxSize, label := int64(MaxPhotoSize), "photo"
	if isVideo {
		maxSize, label = MaxVideoSize, "video"
	}

	if size > maxSize {
		return fmt.Errorf("%s size exceeds maximum allowed size of %dMB", label, maxSize/(1024*1024))
	}
	if size == 0 {
		return ErrEmptyFile
	}
	return nil
}

// ValidateVideoDuration enforces the engine-sound clip bounds.
func ValidateVideoDuration(duration float64) error {
	if duration < MinVideoDuration {
		return fmt.Errorf("video must be at least %.0f seconds long", MinVideoDuration)
	}
	if duration > MaxVideoDuration {
		return fmt.Errorf("video must be no longer than %.0f seconds", MaxVideoDuration)
	}
	return nil
}
