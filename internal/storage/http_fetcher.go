package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	apperrors "go-image-forensics/internal/errors"
)

// FetchedImage is a remote image downloaded for analysis
type FetchedImage struct {
	Data     []byte
	Filename string
	ModTime  time.Time
}

// ImageFetcher downloads the raw bytes of a remote image
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*FetchedImage, error)
}

// HTTPImageFetcher implements ImageFetcher with bounded retries
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
	attempts int
	backoff  time.Duration
}

// NewHTTPImageFetcher creates an HTTP image fetcher that refuses bodies
// larger than maxBytes.
func NewHTTPImageFetcher(maxBytes int64) *HTTPImageFetcher {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
		attempts: 3,
		backoff:  time.Second,
	}
}

// FetchImage retries network errors and 5xx responses with linear backoff.
// 4xx responses are final.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (*FetchedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid URL", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/tiff, image/bmp, */*")
	req.Header.Set("User-Agent", "go-image-forensics/1.0")

	var lastErr error
	for attempt := 0; attempt < h.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("image download cancelled", ctx.Err())
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return h.readBody(resp, imageURL)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			resp.Body.Close()
			return nil, apperrors.NewValidationError(fmt.Sprintf("client error: status code %d", resp.StatusCode), nil)
		default:
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
		}
	}

	return nil, apperrors.NewIOError(fmt.Sprintf("failed to fetch image after %d attempts", h.attempts), lastErr)
}

func (h *HTTPImageFetcher) readBody(resp *http.Response, imageURL string) (*FetchedImage, error) {
	defer resp.Body.Close()

	if resp.ContentLength > h.maxBytes {
		return nil, apperrors.NewValidationError("remote image too large", nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, apperrors.NewIOError("failed to read image body", err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, apperrors.NewValidationError("remote image too large", nil)
	}

	fetched := &FetchedImage{Data: data, Filename: filenameFromURL(imageURL)}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if ts, err := http.ParseTime(lm); err == nil {
			fetched.ModTime = ts
		}
	}
	return fetched, nil
}

func filenameFromURL(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "remote"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "remote"
	}
	return name
}
