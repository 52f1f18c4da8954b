// Package uploader implements the client side of the car media
// pipeline: validate a file, read its intrinsic metadata, obtain an
// upload authorization, transfer the bytes with progress reporting,
// and register the result. A failed direct transfer falls back to the
// backend proxy exactly once; nothing else is retried.
package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/motorscan/carhealth/internal/types/media"
)

// uploadScale reserves the progress tail for registration: transfer
// fills 0-90, the registering phase holds 90, completed lands on 100.
const uploadScale = 0.9

type Uploader struct {
	api   *Client
	store *Store
}

func NewUploader(api *Client) *Uploader {
	return &Uploader{
		api:   api,
		store: NewStore(),
	}
}

// Store exposes the progress map for rendering. Snapshot it; do not
// hold references across updates.
func (u *Uploader) Store() *Store {
	return u.store
}

// Upload pushes one file through the whole pipeline. On success
// exactly one asset reaches completed in the store; on failure the
// store entry (if an authorization was granted) carries the error and
// the error is returned. Re-invoking after a failure starts over with
// a fresh authorization; there is no partial resume.
func (u *Uploader) Upload(ctx context.Context, carID, path string, mediaType media.MediaType, photoType media.PhotoType) error {
	isVideo := mediaType == media.TypeVideo

	mimeType, err := DetectMimeType(path)
	if err != nil {
		return err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	size := fi.Size()
	fileName := filepath.Base(path)

	// Videos are probed before validation: the duration bound cannot
	// be checked until the container has been decoded.
	var width, height int
	var duration float64
	if isVideo {
		info, err := ProbeVideo(path)
		if err != nil {
			return err
		}
		width, height, duration = info.Width, info.Height, info.Duration
	}

	if err := ValidateFile(ValidateOptions{
		FileName:      fileName,
		MimeType:      mimeType,
		Size:          size,
		IsVideo:       isVideo,
		CheckDuration: isVideo,
		Duration:      duration,
	}); err != nil {
		return err
	}

	if !isVideo {
		dims, err := ProbeImage(path)
		if err != nil {
			return err
		}
		width, height = dims.Width, dims.Height
	}

	auth, err := u.api.RequestUpload(ctx, carID, media.UploadRequest{
		Type:      mediaType,
		PhotoType: photoType,
		FileName:  fileName,
		MimeType:  mimeType,
		FileSize:  size,
		Width:     width,
		Height:    height,
		Duration:  duration,
	})
	if err != nil {
		return err
	}

	u.store.Put(Progress{
		MediaID:   auth.MediaID,
		Type:      mediaType,
		PhotoType: photoType,
		FileName:  fileName,
		Percent:   0,
		Status:    StatusPending,
	})

	if err := u.transferAndRegister(ctx, carID, path, mimeType, size, width, height, duration, mediaType, fileName, auth); err != nil {
		u.store.Update(auth.MediaID, func(p *Progress) {
			p.Status = StatusFailed
			p.Error = err.Error()
		})
		return err
	}

	u.store.Update(auth.MediaID, func(p *Progress) {
		p.Status = StatusCompleted
		p.Percent = 100
	})
	return nil
}

func (u *Uploader) transferAndRegister(ctx context.Context, carID, path, mimeType string, size int64, width, height int, duration float64, mediaType media.MediaType, fileName string, auth media.UploadAuthorization) error {
	u.store.Update(auth.MediaID, func(p *Progress) {
		p.Status = StatusUploading
		p.Percent = 0
	})

	onProgress := func(fraction float64) {
		u.store.Update(auth.MediaID, func(p *Progress) {
			p.Percent = int(math.Round(fraction * uploadScale * 100))
		})
	}

	// Ordered attempt list: the presigned destination first, then the
	// backend proxy, which stores and registers in one call. The proxy
	// is tried only when the direct attempt failed at the transport
	// level; see shouldFallback.
	usedProxy := false
	err := directTransfer(ctx, u.api.httpClient, auth.UploadURL, path, mimeType, size, onProgress)
	if err != nil {
		if !shouldFallback(err) {
			return err
		}
		slog.Warn("direct upload failed, falling back to backend proxy",
			slog.String("media_id", auth.MediaID),
			slog.String("error", err.Error()))

		f, openErr := os.Open(path)
		if openErr != nil {
			return fmt.Errorf("failed to open file: %w", openErr)
		}
		defer f.Close()

		if err := u.api.ProxyUpload(ctx, carID, auth.MediaID, fileName, mimeType, f, size, onProgress); err != nil {
			return err
		}
		usedProxy = true
	}

	if usedProxy {
		return nil
	}

	u.store.Update(auth.MediaID, func(p *Progress) {
		p.Status = StatusRegistering
		p.Percent = 90
	})

	req := media.RegisterRequest{
		StorageKey: extractStorageKey(auth.UploadURL),
		StorageURL: stripQuery(auth.UploadURL),
		Metadata: &media.Metadata{
			OriginalFileName: fileName,
			UploadedAt:       time.Now().UTC().Format(time.RFC3339),
		},
	}
	if mediaType == media.TypePhoto {
		req.ThumbnailURL = req.StorageURL
	}
	if width > 0 && height > 0 {
		req.Metadata.Dimensions = &media.Dimensions{Width: width, Height: height}
	}
	if duration > 0 {
		req.Metadata.Duration = duration
	}

	return u.api.RegisterMedia(ctx, carID, auth.MediaID, req)
}

// PhotoSet maps each shot angle to a local file path.
type PhotoSet map[media.PhotoType]string

// UploadAll fans out one Upload per photo plus one for the video when
// given, and waits for all of them. Each file's store entry is keyed
// by its own media id, so the in-flight uploads never contend.
func (u *Uploader) UploadAll(ctx context.Context, carID string, photos PhotoSet, videoPath string) error {
	g, ctx := errgroup.WithContext(ctx)

	for photoType, path := range photos {
		g.Go(func() error {
			if err := u.Upload(ctx, carID, path, media.TypePhoto, photoType); err != nil {
				return fmt.Errorf("%s: %w", photoType, err)
			}
			return nil
		})
	}

	if videoPath != "" {
		g.Go(func() error {
			if err := u.Upload(ctx, carID, videoPath, media.TypeVideo, ""); err != nil {
				return fmt.Errorf("video: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// extractStorageKey pulls the object key out of a presigned URL: the
// path without its leading slash. The backend treats it as opaque and
// stores whatever the client derived.
func extractStorageKey(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return stripQuery(rawURL)
	}
	return strings.TrimPrefix(parsed.Path, "/")
}

// stripQuery drops the query string, which only encodes transfer
// authorization, leaving the durable public URL.
func stripQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
