// Package client is a Go client for the Kaizen HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	model "github.com/jlynch25/kaizen_api/models"
)

const DefaultBaseURL = "http://localhost:4000"

// BaseURLFromEnv resolves the API base URL the same way the web frontend does.
func BaseURLFromEnv() string {
	for _, key := range []string{"NEXT_PUBLIC_API_URL", "NEXT_PUBLIC_BACKEND_URL"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return DefaultBaseURL
}

// Error is a non-2xx API answer carrying the server's {"error": ...} message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithToken returns a copy that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) APIURL(endpoint string) string {
	return c.baseURL + endpoint
}

// ImageURL resolves a stored image path. Absolute http(s) URLs pass through.
func (c *Client) ImageURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http") {
		return path
	}
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.APIURL(endpoint), body)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Message: payload.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode %s: %w", endpoint, err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}
	return c.do(ctx, method, endpoint, contentType, body, out)
}

func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) Register(ctx context.Context, username, email, password string) (model.User, error) {
	in := map[string]string{"username": username, "email": email, "password": password}
	var out struct {
		User model.User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/register", in, &out); err != nil {
		return model.User{}, err
	}
	return out.User, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	in := map[string]string{"email": email, "password": password}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", in, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.doJSON(ctx, http.MethodGet, "/api/users/me", nil, &user)
	return user, err
}

type EventQuery struct {
	Category string
	// Day filters by calendar day, formatted YYYY-MM-DD.
	Day string
}

func (c *Client) Events(ctx context.Context, q EventQuery) ([]model.Event, error) {
	params := url.Values{}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Day != "" {
		params.Set("date", q.Day)
	}
	endpoint := "/api/events"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	events := []model.Event{}
	err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &events)
	return events, err
}

func (c *Client) Event(ctx context.Context, id string) (model.Event, error) {
	var event model.Event
	err := c.doJSON(ctx, http.MethodGet, "/api/events/"+url.PathEscape(id), nil, &event)
	return event, err
}

func (c *Client) SearchEvents(ctx context.Context, query string) ([]model.Event, error) {
	events := []model.Event{}
	err := c.doJSON(ctx, http.MethodGet, "/api/events/search/"+url.PathEscape(query), nil, &events)
	return events, err
}

type CreateEventInput struct {
	Title       string
	Description string
	Date        time.Time
	Location    string
	Price       float64
	Seats       int
	Category    string
	UserID      string
	// Image is optional; ImageName supplies the uploaded file name.
	Image     io.Reader
	ImageName string
}

// CreateEvent posts the event as a multipart form, the way the web form does.
func (c *Client) CreateEvent(ctx context.Context, in CreateEventInput) (model.Event, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"title", in.Title},
		{"description", in.Description},
		{"date", in.Date.UTC().Format(time.RFC3339)},
		{"location", in.Location},
		{"price", strconv.FormatFloat(in.Price, 'f', -1, 64)},
		{"seats", strconv.Itoa(in.Seats)},
		{"category", in.Category},
		{"user", in.UserID},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return model.Event{}, fmt.Errorf("client: write form: %w", err)
		}
	}

	if in.Image != nil {
		name := in.ImageName
		if name == "" {
			name = "image"
		}
		part, err := w.CreateFormFile("image", name)
		if err != nil {
			return model.Event{}, fmt.Errorf("client: write form: %w", err)
		}
		if _, err := io.Copy(part, in.Image); err != nil {
			return model.Event{}, fmt.Errorf("client: write image: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return model.Event{}, fmt.Errorf("client: write form: %w", err)
	}

	var event model.Event
	err := c.do(ctx, http.MethodPost, "/api/events", w.FormDataContentType(), &buf, &event)
	return event, err
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/events/"+url.PathEscape(id), nil, nil)
}
