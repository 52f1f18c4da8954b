package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/motorscan/carhealth/internal/types"
	"github.com/motorscan/carhealth/internal/types/media"
)

// Client is the thin REST client for the car health backend. It owns
// the normalization of backend payloads into canonical types; nothing
// above it ever touches a raw response shape.
//
// No request timeout is set beyond the transport defaults: a hung
// transfer blocks that file's progress rather than erroring out.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{},
	}
}

// envelope is the backend's JSON response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if env.Error != "" {
			return fmt.Errorf("%s", env.Error)
		}
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// CreateCar registers a new car submission and returns its id. Callers
// thread the id through the rest of the flow explicitly; there is no
// ambient "current car" anywhere.
func (c *Client) CreateCar(ctx context.Context, req types.CarCreateRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/cars", req, &out); err != nil {
		return "", fmt.Errorf("create car: %w", err)
	}
	return out.ID, nil
}

// SubmitCar moves a car into the analysis queue. The backend applies
// the loose gate: at least one photo.
func (c *Client) SubmitCar(ctx context.Context, carID string) error {
	if err := c.do(ctx, http.MethodPost, "/cars/"+carID+"/submit", nil, nil); err != nil {
		return fmt.Errorf("submit car: %w", err)
	}
	return nil
}

// RequestUpload asks for a transfer authorization: an opaque media id
// plus a presigned destination URL.
func (c *Client) RequestUpload(ctx context.Context, carID string, req media.UploadRequest) (media.UploadAuthorization, error) {
	var out media.UploadAuthorization
	if err := c.do(ctx, http.MethodPost, "/cars/"+carID+"/media/upload-request", req, &out); err != nil {
		return media.UploadAuthorization{}, fmt.Errorf("upload authorization: %w", err)
	}
	return out, nil
}

// RegisterMedia confirms a completed direct transfer and hands the
// backend the final storage location plus derived metadata.
func (c *Client) RegisterMedia(ctx context.Context, carID, mediaID string, req media.RegisterRequest) error {
	if err := c.do(ctx, http.MethodPut, "/cars/"+carID+"/media/"+mediaID+"/register", req, nil); err != nil {
		return fmt.Errorf("register media: %w", err)
	}
	return nil
}

// ProxyUpload routes the file bytes through the backend, which stores
// and registers them in one call. Progress is reported through the
// same callback contract as the direct path.
func (c *Client) ProxyUpload(ctx context.Context, carID, mediaID, fileName, mimeType string, r io.Reader, size int64, onProgress ProgressFunc) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, newProgressReader(r, size, onProgress)); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	url := fmt.Sprintf("%s/cars/%s/media/%s/upload", c.baseURL, carID, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return fmt.Errorf("failed to build proxy request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("proxy upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("proxy upload failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// ListMedia returns the backend's view of a car's assets, normalized.
func (c *Client) ListMedia(ctx context.Context, carID string) ([]media.Media, error) {
	var raw []rawMedia
	if err := c.do(ctx, http.MethodGet, "/cars/"+carID+"/media", nil, &raw); err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}

	out := make([]media.Media, 0, len(raw))
	for _, r := range raw {
		out = append(out, normalizeMedia(r))
	}
	return out, nil
}

// ValidateMedia runs the server-side required-media check.
func (c *Client) ValidateMedia(ctx context.Context, carID string) (media.ValidationResult, error) {
	var out media.ValidationResult
	if err := c.do(ctx, http.MethodGet, "/cars/"+carID+"/media/validate", nil, &out); err != nil {
		return media.ValidationResult{}, fmt.Errorf("validate media: %w", err)
	}
	return out, nil
}

// rawMedia tolerates the payload shapes different backend versions
// have used for the same fields. It exists only as input to
// normalizeMedia; callers never see it.
type rawMedia struct {
	ID      string `json:"id"`
	MediaID string `json:"media_id"`

	Type      media.MediaType `json:"type"`
	MediaType media.MediaType `json:"media_type"`

	PhotoType      media.PhotoType `json:"photoType"`
	PhotoTypeSnake media.PhotoType `json:"photo_type"`
	Angle          media.PhotoType `json:"angle"`

	FileName         string `json:"file_name"`
	FileNameCamel    string `json:"fileName"`
	OriginalFileName string `json:"original_file_name"`

	MimeType      string `json:"mime_type"`
	MimeTypeCamel string `json:"mimeType"`

	FileSize      int64 `json:"file_size"`
	FileSizeCamel int64 `json:"fileSize"`

	StorageKey      string `json:"storage_key"`
	StorageKeyCamel string `json:"storageKey"`

	URL             string `json:"url"`
	StorageURL      string `json:"storage_url"`
	StorageURLCamel string `json:"storageUrl"`

	ThumbnailURL      string `json:"thumbnail_url"`
	ThumbnailURLCamel string `json:"thumbnailUrl"`

	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`

	IsUploaded      bool `json:"is_uploaded"`
	IsUploadedCamel bool `json:"isUploaded"`
}

// normalizeMedia maps whichever shape the backend sent into the one
// canonical Media type. First non-zero candidate wins per field.
func normalizeMedia(r rawMedia) media.Media {
	return media.Media{
		ID:               firstString(r.ID, r.MediaID),
		Type:             media.MediaType(firstString(string(r.Type), string(r.MediaType))),
		PhotoType:        media.PhotoType(firstString(string(r.PhotoType), string(r.PhotoTypeSnake), string(r.Angle))),
		FileName:         firstString(r.FileName, r.FileNameCamel),
		OriginalFileName: r.OriginalFileName,
		MimeType:         firstString(r.MimeType, r.MimeTypeCamel),
		FileSize:         firstInt64(r.FileSize, r.FileSizeCamel),
		StorageKey:       firstString(r.StorageKey, r.StorageKeyCamel),
		StorageURL:       firstString(r.StorageURL, r.StorageURLCamel, r.URL),
		ThumbnailURL:     firstString(r.ThumbnailURL, r.ThumbnailURLCamel),
		Width:            r.Width,
		Height:           r.Height,
		Duration:         r.Duration,
		IsUploaded:       r.IsUploaded || r.IsUploadedCamel,
	}
}

func firstString(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

func firstInt64(candidates ...int64) int64 {
	for _, c := range candidates {
		if c != 0 {
			return c
		}
	}
	return 0
}
