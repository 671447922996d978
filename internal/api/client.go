// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
)

// TokenHeader carries the operator token on every request when configured.
const TokenHeader = "X-Operator-Token"

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string // "error" field of a JSON body, if any
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client handles communication with the vehicle backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the operator token sent in X-Operator-Token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a new API client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health probes /api/health.
func (c *Client) Health(ctx context.Context) (core.Health, error) {
	var h core.Health
	err := c.getJSON(ctx, "/api/health", &h)
	return h, err
}

// Config fetches the backend's alert thresholds.
func (c *Client) Config(ctx context.Context) (core.BackendConfig, error) {
	cfg := core.DefaultBackendConfig()
	err := c.getJSON(ctx, "/api/config", &cfg)
	return cfg, err
}

// LatestTelemetry returns the last limit samples, oldest first.
func (c *Client) LatestTelemetry(ctx context.Context, limit int) ([]core.TelemetrySample, error) {
	var rows []core.TelemetrySample
	err := c.getJSON(ctx, "/api/telemetry/latest?limit="+strconv.Itoa(limit), &rows)
	return rows, err
}

// Events returns the last limit events in server order (oldest first).
func (c *Client) Events(ctx context.Context, limit int) ([]core.Event, error) {
	path := "/api/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var rows []core.Event
	err := c.getJSON(ctx, path, &rows)
	return rows, err
}

// DeleteEvent removes one event.
func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	return c.delete(ctx, "/api/events/"+idPath(id))
}

// DeleteAllEvents clears the event log.
func (c *Client) DeleteAllEvents(ctx context.Context) error {
	return c.delete(ctx, "/api/events")
}

// Missions lists missions in server order.
func (c *Client) Missions(ctx context.Context) ([]core.Mission, error) {
	var rows []core.Mission
	err := c.getJSON(ctx, "/api/missions", &rows)
	return rows, err
}

// CreateMission posts a new mission. The backend answers with the full list,
// which is discarded; callers re-sync missions instead.
func (c *Client) CreateMission(ctx context.Context, m core.NewMission) error {
	return c.sendJSON(ctx, http.MethodPost, "/api/missions", m, nil)
}

// DeleteMission removes one mission.
func (c *Client) DeleteMission(ctx context.Context, id int64) error {
	return c.delete(ctx, "/api/missions/"+idPath(id))
}

// VideoClips lists recorded clips.
func (c *Client) VideoClips(ctx context.Context) ([]core.VideoClip, error) {
	var rows []core.VideoClip
	err := c.getJSON(ctx, "/api/video-clips", &rows)
	return rows, err
}

// DeleteVideoClip removes one clip.
func (c *Client) DeleteVideoClip(ctx context.Context, id int64) error {
	return c.delete(ctx, "/api/video-clips/"+idPath(id))
}

// DeleteAllVideoClips removes every clip.
func (c *Client) DeleteAllVideoClips(ctx context.Context) error {
	return c.delete(ctx, "/api/video-clips")
}

// Targets lists target images.
func (c *Client) Targets(ctx context.Context) ([]core.Target, error) {
	var rows []core.Target
	err := c.getJSON(ctx, "/api/targets", &rows)
	return rows, err
}

// DeleteTarget removes one target image.
func (c *Client) DeleteTarget(ctx context.Context, id int64) error {
	return c.delete(ctx, "/api/targets/"+idPath(id))
}

// MatchTarget marks a target as matched.
func (c *Client) MatchTarget(ctx context.Context, id int64) error {
	return c.sendJSON(ctx, http.MethodPost, "/api/targets/"+idPath(id)+"/match", nil, nil)
}

// AutoState reads the autonomy state.
func (c *Client) AutoState(ctx context.Context) (core.AutoState, error) {
	var s core.AutoState
	err := c.getJSON(ctx, "/api/auto/state", &s)
	return s, err
}

// SetAutoState writes the autonomy state and returns what the server accepted.
func (c *Client) SetAutoState(ctx context.Context, u core.AutoStateUpdate) (core.AutoState, error) {
	var s core.AutoState
	err := c.sendJSON(ctx, http.MethodPost, "/api/auto/state", u, &s)
	return s, err
}

// SendManual posts a manual command.
func (c *Client) SendManual(ctx context.Context, cmd core.ManualCommand) (core.CommandAck, error) {
	var ack core.CommandAck
	err := c.sendJSON(ctx, http.MethodPost, "/api/commands/manual", cmd, &ack)
	return ack, err
}

// UploadTarget sends a target image as multipart form data.
func (c *Client) UploadTarget(ctx context.Context, up core.TargetUpload) error {
	file, err := os.Open(up.Path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// Write form fields and file in goroutine
	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		if up.Label != "" {
			_ = writer.WriteField("label", up.Label)
		}
		if up.MissionID > 0 {
			_ = writer.WriteField("mission_id", idPath(up.MissionID))
		}

		part, err := writer.CreateFormFile("image", filepath.Base(up.Path))
		if err != nil {
			errCh <- fmt.Errorf("failed to create form file: %w", err)
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			errCh <- fmt.Errorf("failed to copy file: %w", err)
			pw.CloseWithError(err)
			return
		}
		errCh <- nil
	}()

	const path = "/api/targets/upload"
	req, err := c.newRequest(ctx, http.MethodPost, path, pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	// Check goroutine error
	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}

	return checkStatus(resp, http.MethodPost, path)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set(TokenHeader, c.token)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, method, path); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// checkStatus turns a non-2xx response into a *StatusError.
func checkStatus(resp *http.Response, method, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	se := &StatusError{Method: method, Path: trimQuery(path), StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) == nil {
		se.Message = body.Error
	}
	return se
}

func trimQuery(path string) string {
	if u, err := url.Parse(path); err == nil {
		return u.Path
	}
	return path
}

func idPath(id int64) string {
	return strconv.FormatInt(id, 10)
}
