// Package client is a typed HTTP client for the CampusSafe API, plus the
// small client-side state machines a mobile front end drives: debounced
// user search and pull-to-refresh.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campussafe/internal/models"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response. Message is the server's "error" field.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("campussafe api: %d %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client with an existing session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

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

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Login opens a session and keeps its bearer token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	var out authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.setToken(out.Token)
	return out.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.setToken("")
	return err
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out authResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.UserSearchResult, error) {
	var out struct {
		Users []models.UserSearchResult `json:"users"`
	}
	path := "/api/friends/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) SendFriendRequest(ctx context.Context, userID uuid.UUID) (*models.FriendRequest, error) {
	var out struct {
		Request *models.FriendRequest `json:"request"`
	}
	body := map[string]string{"user_id": userID.String()}
	if err := c.do(ctx, http.MethodPost, "/api/friends/requests", body, &out); err != nil {
		return nil, err
	}
	return out.Request, nil
}

func (c *Client) Friends(ctx context.Context) ([]models.Friend, error) {
	var out struct {
		Friends []models.Friend `json:"friends"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/friends", nil, &out); err != nil {
		return nil, err
	}
	return out.Friends, nil
}

func (c *Client) SetSharing(ctx context.Context, enabled bool) (*models.FriendLocation, error) {
	var out struct {
		Location *models.FriendLocation `json:"location"`
	}
	body := map[string]bool{"enabled": enabled}
	if err := c.do(ctx, http.MethodPut, "/api/locations/sharing", body, &out); err != nil {
		return nil, err
	}
	return out.Location, nil
}

func (c *Client) PublishLocation(ctx context.Context, lat, lng float64, at time.Time) (*models.FriendLocation, error) {
	var out struct {
		Location *models.FriendLocation `json:"location"`
	}
	body := map[string]any{"latitude": lat, "longitude": lng}
	if !at.IsZero() {
		body["timestamp"] = at.UTC()
	}
	if err := c.do(ctx, http.MethodPost, "/api/locations", body, &out); err != nil {
		return nil, err
	}
	return out.Location, nil
}

func (c *Client) FriendLocations(ctx context.Context) ([]models.LocationView, error) {
	var out struct {
		Locations []models.LocationView `json:"locations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/locations/friends", nil, &out); err != nil {
		return nil, err
	}
	return out.Locations, nil
}

type ReportIncidentParams struct {
	Category     models.IncidentCategory `json:"category"`
	Description  string                  `json:"description"`
	Latitude     *float64                `json:"latitude,omitempty"`
	Longitude    *float64                `json:"longitude,omitempty"`
	LocationText *string                 `json:"location_text,omitempty"`
}

func (c *Client) ReportIncident(ctx context.Context, params ReportIncidentParams) (*models.Incident, error) {
	var out struct {
		Incident *models.Incident `json:"incident"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/incidents", params, &out); err != nil {
		return nil, err
	}
	return out.Incident, nil
}

func (c *Client) NearbyIncidents(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyIncident, error) {
	var out struct {
		Incidents []models.NearbyIncident `json:"incidents"`
	}
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	if radiusKm > 0 {
		q.Set("radius_km", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	}
	if err := c.do(ctx, http.MethodGet, "/api/incidents/nearby?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Incidents, nil
}

func (c *Client) Tips(ctx context.Context) ([]models.TipCategory, error) {
	var out struct {
		Categories []models.TipCategory `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tips", nil, &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}
