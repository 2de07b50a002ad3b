package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/hollis-dev/rollcall/internal/model"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultProbeTimeout = 8 * time.Second
	probeRetries        = 2
	probeBackoff        = 500 * time.Millisecond
)

// Config holds backend connection settings.
type Config struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

// Client talks to the attendance backend. Every call carries the device
// account's auth token and a request id for backend-side log correlation.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	probeClient *http.Client
	logger      *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a backend client. The token may be empty until Login.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		probeClient: &http.Client{Timeout: cfg.ProbeTimeout},
		logger:      logger,
	}
}

// Token returns the current auth token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Login exchanges credentials for an auth token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"username": email, "email": email, "password": password}

	var lr LoginResponse
	if err := c.do(ctx, http.MethodPost, "/login/", body, &lr); err != nil {
		return nil, err
	}
	c.setToken(lr.Token)
	return &lr, nil
}

// Logout invalidates the token server-side and forgets it locally.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/logout/", nil, nil); err != nil {
		return err
	}
	c.setToken("")
	return nil
}

// ListAttendance returns all attendance records visible to the device
// account. Regular accounts see only their own records; staff see everyone's,
// so callers must still filter by user.
func (c *Client) ListAttendance(ctx context.Context) ([]model.AttendanceRecord, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/attendance/", nil, &raw); err != nil {
		return nil, err
	}

	// Paginated deployments wrap the list in {"results": [...]}.
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results []model.AttendanceRecord `json:"results"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, &FetchError{Op: "list attendance", Err: fmt.Errorf("decode response: %w", err)}
		}
		return page.Results, nil
	}

	var records []model.AttendanceRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &FetchError{Op: "list attendance", Err: fmt.Errorf("decode response: %w", err)}
	}
	return records, nil
}

// GetAttendance fetches one record by id.
func (c *Client) GetAttendance(ctx context.Context, id int64) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/attendance/%d/", id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CheckIn creates a new attendance record.
func (c *Client) CheckIn(ctx context.Context, req CheckInRequest) (*model.AttendanceRecord, error) {
	var env attendanceEnvelope
	if err := c.do(ctx, http.MethodPost, "/attendance/check-in/", req, &env); err != nil {
		return nil, err
	}
	if env.Attendance == nil {
		return nil, &FetchError{Op: "check in", Err: fmt.Errorf("response missing attendance record")}
	}
	return env.Attendance, nil
}

// CheckOut closes the given attendance record.
func (c *Client) CheckOut(ctx context.Context, req CheckOutRequest) (*model.AttendanceRecord, error) {
	var env attendanceEnvelope
	if err := c.do(ctx, http.MethodPost, "/attendance/check-out/", req, &env); err != nil {
		return nil, err
	}
	if env.Attendance == nil {
		return nil, &FetchError{Op: "check out", Err: fmt.Errorf("response missing attendance record")}
	}
	return env.Attendance, nil
}

// UpdateAttendance partially updates a record, e.g. upgrading its
// verification method after a face match.
func (c *Client) UpdateAttendance(ctx context.Context, id int64, update AttendanceUpdate) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/attendance/%d/", id), update, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Summary returns the current-month attendance summary.
func (c *Client) Summary(ctx context.Context) (*Summary, error) {
	var s Summary
	if err := c.do(ctx, http.MethodGet, "/attendance/summary/", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// FaceCheckIn submits a captured image plus coordinates for face matching.
// The endpoint is also the backend's only pure-verification operation, and it
// may create an attendance record as a side effect; the result carries that
// record when present.
func (c *Client) FaceCheckIn(ctx context.Context, image []byte, coords model.Coordinates) (*FaceCheckInResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("face_image", "face_verification.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}
	w.WriteField("latitude", strconv.FormatFloat(coords.Latitude, 'f', 6, 64))
	w.WriteField("longitude", strconv.FormatFloat(coords.Longitude, 'f', 6, 64))
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/face/check-in/", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "face check-in", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Op: "face check-in", Status: resp.StatusCode, Err: readError(resp.Body)}
	}

	var env faceCheckInEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &FetchError{Op: "face check-in", Err: fmt.Errorf("decode response: %w", err)}
	}

	result := &FaceCheckInResult{Attendance: env.Attendance}
	if env.FaceVerification != nil {
		result.Matched = env.FaceVerification.matched()
		result.Confidence = env.FaceVerification.confidencePercent()
	} else if env.Attendance != nil {
		// Older response shape: a created record implies a match.
		result.Matched = true
		result.Confidence = 95
	}
	return result, nil
}

// HasFaceImage asks whether the device account has a reference face image
// registered. This is an idempotent probe, so it gets the short timeout and a
// small bounded retry.
func (c *Client) HasFaceImage(ctx context.Context) (bool, error) {
	var probe faceProbeResponse

	backoff := retry.WithMaxRetries(probeRetries, retry.NewExponential(probeBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doWith(ctx, c.probeClient, http.MethodGet, "/face/check/", nil, &probe)
		if err == nil {
			return nil
		}
		// Retry transport failures and server errors; auth and client
		// errors will not improve on their own.
		var fe *FetchError
		if errors.As(err, &fe) {
			if fe.Status != 0 && fe.Status < 500 {
				return err
			}
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return probe.HasFaceImage || probe.HasMultipleImages, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doWith(ctx, c.httpClient, method, path, body, out)
}

func (c *Client) doWith(ctx context.Context, client *http.Client, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{Op: op, Status: resp.StatusCode, Err: readError(resp.Body)}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
}

// readError pulls a human-readable message out of an error response body.
func readError(body io.Reader) error {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))

	var payload struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Error != "":
			return fmt.Errorf("%s", payload.Error)
		case payload.Detail != "":
			return fmt.Errorf("%s", payload.Detail)
		case payload.Message != "":
			return fmt.Errorf("%s", payload.Message)
		}
	}
	return fmt.Errorf("%s", strings.TrimSpace(string(data)))
}
