// Package api is the HTTP client for the results server and the optional remote policy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/evacsim/pkg/core"
)

const (
	healthPath = "/healthcheck"
	uploadPath = "/api/v1/runs/add"
	decidePath = "/api/v1/policy/decide"
)

// StatusError is returned when the server answers with anything but 200.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Op, e.Code)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithTimeout replaces the request timeout. Policy calls run once per decision interval and
// need a much shorter one than uploads.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.httpClient.Timeout = d
	return c
}

// do sends req and decodes a JSON body into out when out is non-nil.
func (c *Client) do(op string, req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: op, Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) Healthcheck() error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do("healthcheck", req, nil)
}

// Upload streams a results file (report CSV or gzipped run export) as a multipart form.
func (c *Client) Upload(filePath string, meta core.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	name := filepath.Base(filePath)
	fields := [][2]string{
		{"secret", c.apiKey},
		{"filename", name},
		{"runId", meta.RunID},
		{"panicMode", meta.PanicMode},
		{"episodes", strconv.Itoa(meta.Episodes)},
		{"successRate", strconv.FormatFloat(meta.SuccessRate, 'f', 6, 64)},
		{"tag", meta.Tag},
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, fields, name, file))
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+uploadPath, pr)
	if err != nil {
		_ = pr.Close()
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return c.do("upload", req, nil)
}

func writeForm(form *multipart.Writer, fields [][2]string, name string, body io.Reader) error {
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return form.Close()
}

// DecideRequest is one observation sent to the remote policy.
type DecideRequest struct {
	OccupantID  core.EntityID `json:"occupantId"`
	Observation []float32     `json:"observation"`
	Reward      float64       `json:"reward"`
}

// DecideResponse carries the policy's choice. Override false leaves the occupant to its own
// state machine.
type DecideResponse struct {
	State    string `json:"state"`
	Override bool   `json:"override"`
}

func (c *Client) Decide(ctx context.Context, in DecideRequest) (DecideResponse, error) {
	var out DecideResponse
	body, err := json.Marshal(in)
	if err != nil {
		return out, fmt.Errorf("failed to encode observation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+decidePath, bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	err = c.do("decide", req, &out)
	return out, err
}
