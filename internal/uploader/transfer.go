package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

// ProgressFunc receives the transfer fraction in [0, 1].
type ProgressFunc func(fraction float64)

// StatusError is an application-level rejection: the destination
// answered, just not with a 2xx. It never triggers the proxy fallback.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upload failed with status %d", e.StatusCode)
}

// progressReader counts bytes as they are consumed and reports the
// running fraction of the known total.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	fn    ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, fn: fn}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		if p.fn != nil && p.total > 0 {
			p.fn(float64(p.read) / float64(p.total))
		}
	}
	return n, err
}

// directTransfer PUTs the raw file bytes to the presigned destination.
// Success is any 2xx; a response outside that range is a StatusError
// and anything that prevented a response at all comes back as the
// transport error it was.
func directTransfer(ctx context.Context, httpClient *http.Client, uploadURL, path, mimeType string, size int64, onProgress ProgressFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, newProgressReader(f, size, onProgress))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", mimeType)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

// shouldFallback decides whether a failed direct transfer advances to
// the proxy strategy. Only transport-level failures qualify: the
// request never produced an HTTP response (connection refused, DNS,
// TLS, the browser-era CORS rejection class). An HTTP status of any
// kind means the destination heard us and said no; that is terminal.
func shouldFallback(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false
	}

	// Cancellation is the caller's decision, not a transport fault.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
