// Package httpclient provides the retrieval capability consumed by the
// network probe, version oracle, installer, and config synchronizer.
package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// ErrUnexpectedStatus indicates the server answered with a non-OK status.
var ErrUnexpectedStatus = errors.New("unexpected http status")

// Client is the retrieval contract: given a URL, return body bytes or fail.
type Client interface {
	// Get retrieves the URL and returns the response body.
	Get(ctx context.Context, url string) ([]byte, error)

	// GetFile retrieves the URL and streams the response body to the
	// destination path, creating parent directories as needed.
	GetFile(ctx context.Context, url string, destinationPath string) error
}

// HTTPClient is the net/http backed Client. TLS 1.2 is the floor for every
// connection.
type HTTPClient struct {
	client *http.Client
	fs     afero.Fs
}

// NewHTTPClient builds an HTTPClient with the given overall request timeout.
func NewHTTPClient(timeout time.Duration, fs afero.Fs) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		fs: fs,
	}
}

// Get retrieves the URL and returns the response body.
func (client *HTTPClient) Get(ctx context.Context, url string) ([]byte, error) {
	body, err := client.open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(body)

	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return content, nil
}

// GetFile retrieves the URL and streams the response body to destinationPath.
func (client *HTTPClient) GetFile(ctx context.Context, url string, destinationPath string) error {
	body, err := client.open(ctx, url)
	if err != nil {
		return err
	}
	defer closeQuietly(body)

	if err := client.fs.MkdirAll(filepath.Dir(destinationPath), 0o750); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	file, err := client.fs.Create(destinationPath)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}

	if _, err := io.Copy(file, body); err != nil {
		closeQuietly(file)
		return fmt.Errorf("write destination file: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close destination file: %w", err)
	}

	return nil
}

func (client *HTTPClient) open(ctx context.Context, url string) (io.ReadCloser, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	response, err := client.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}

	if response.StatusCode != http.StatusOK {
		closeQuietly(response.Body)
		return nil, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, response.StatusCode, url)
	}

	return response.Body, nil
}

func closeQuietly(closer io.Closer) {
	_ = closer.Close()
}
