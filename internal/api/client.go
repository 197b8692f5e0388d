package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 5 * time.Minute
	httpTimeoutEnvKey  = "AUDIOCONV_HTTP_TIMEOUT"
)

// ConvertOptions describes one upload to POST /convert.
type ConvertOptions struct {
	Source       io.Reader
	SourceName   string
	TargetFormat string
}

// Client is a simple HTTP client for the audioconv API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var resp HealthResponse
	return c.getJSON(ctx, "/health", &resp)
}

// Service returns the service banner from GET /.
func (c *Client) Service(ctx context.Context) (ServiceResponse, error) {
	var resp ServiceResponse
	err := c.getJSON(ctx, "/", &resp)
	return resp, err
}

// Convert uploads a file and returns the artifact descriptor.
func (c *Client) Convert(ctx context.Context, opts ConvertOptions) (ConvertResponse, error) {
	var out ConvertResponse
	resp, err := c.postConvert(ctx, opts, false)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

// ConvertInline uploads a file and streams the converted bytes to w.
func (c *Client) ConvertInline(ctx context.Context, opts ConvertOptions, w io.Writer) (DownloadResult, error) {
	resp, err := c.postConvert(ctx, opts, true)
	if err != nil {
		return DownloadResult{}, err
	}
	defer resp.Body.Close()
	return copyBody(resp, w)
}

// Download fetches a previously produced artifact by name and writes it to w.
func (c *Client) Download(ctx context.Context, filename string, w io.Writer) (DownloadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download/"+url.PathEscape(filename), nil)
	if err != nil {
		return DownloadResult{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return DownloadResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return DownloadResult{}, decodeError(resp)
	}
	result, err := copyBody(resp, w)
	if result.Filename == "" {
		result.Filename = filename
	}
	return result, err
}

func (c *Client) postConvert(ctx context.Context, opts ConvertOptions, inline bool) (*http.Response, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	sourceName := strings.TrimSpace(opts.SourceName)
	if sourceName == "" {
		sourceName = "upload"
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeConvertForm(mw, opts, sourceName, inline)
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert", pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func writeConvertForm(mw *multipart.Writer, opts ConvertOptions, sourceName string, inline bool) error {
	if err := mw.WriteField("target_format", opts.TargetFormat); err != nil {
		return err
	}
	if err := mw.WriteField("download", strconv.FormatBool(inline)); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", sourceName)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, opts.Source)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func copyBody(resp *http.Response, w io.Writer) (DownloadResult, error) {
	result := DownloadResult{
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    filenameFromDisposition(resp.Header.Get("Content-Disposition")),
	}
	n, err := io.Copy(w, resp.Body)
	result.SizeBytes = n
	return result, err
}

func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Message:   errResp.Error,
		}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
