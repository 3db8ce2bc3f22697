// Package drive fetches purchased assets from Google Drive: link
// parsing, download-to-temp for direct upload, and shareable links (with
// a QR code) for link delivery.
package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// SizeWarnLimit is Discord's upload ceiling for servers without a boost
// level; larger files may fail to attach.
const SizeWarnLimit = 8 * 1024 * 1024

const defaultBaseURL = "https://drive.google.com/uc?export=download&id="

// DeliveryError marks a post-payment asset failure so the caller knows
// to run the compensating refund.
type DeliveryError struct {
	Cause error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("asset delivery failed: %v", e.Cause)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

// ParseID extracts a Drive file id from the link shapes admins paste:
// /file/d/<id>/..., ?id=<id>&..., or a bare id.
func ParseID(linkOrID string) string {
	trimmed := strings.TrimSpace(linkOrID)
	if !strings.Contains(trimmed, "drive.google.com") {
		return trimmed
	}

	if u, err := url.Parse(trimmed); err == nil {
		if id := u.Query().Get("id"); id != "" {
			return id
		}
		parts := strings.Split(u.Path, "/")
		for i, p := range parts {
			if p == "d" && i+1 < len(parts) && parts[i+1] != "" {
				return parts[i+1]
			}
		}
	}
	return trimmed
}

// DirectLink rewrites a file id into a directly fetchable URL for link
// delivery.
func DirectLink(driveID string) string {
	return defaultBaseURL + url.QueryEscape(driveID)
}

// QRCode renders the delivery link as a PNG.
func QRCode(link string) ([]byte, error) {
	return qrcode.Encode(link, qrcode.Medium, 256)
}

// Fetcher downloads Drive files to ephemeral local storage.
type Fetcher struct {
	client  *http.Client
	baseURL string
}

// NewFetcher builds a Fetcher with a bounded request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: defaultBaseURL,
	}
}

// Download fetches the file into a fresh temp directory and returns the
// local path and size. Missing files, permission errors and empty
// bodies all surface as *DeliveryError.
func (f *Fetcher) Download(ctx context.Context, driveID string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+url.QueryEscape(driveID), nil)
	if err != nil {
		return "", 0, &DeliveryError{Cause: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, &DeliveryError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, &DeliveryError{Cause: fmt.Errorf("drive returned status %d", resp.StatusCode)}
	}

	dir, err := os.MkdirTemp("", "shopbot_")
	if err != nil {
		return "", 0, &DeliveryError{Cause: err}
	}

	path := filepath.Join(dir, driveID+".mp4")
	out, err := os.Create(path)
	if err != nil {
		os.RemoveAll(dir)
		return "", 0, &DeliveryError{Cause: err}
	}

	size, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.RemoveAll(dir)
		return "", 0, &DeliveryError{Cause: err}
	}
	if size == 0 {
		os.RemoveAll(dir)
		return "", 0, &DeliveryError{Cause: fmt.Errorf("downloaded file is empty (check sharing permissions)")}
	}

	return path, size, nil
}
