// Package homecrewsdk is a minimal Homecrew HTTP API client for worker
// apps and integrations.
package homecrewsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one Homecrew server. Set APIKey for worker device keys
// or BearerToken for conciergerie JWTs.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Mission is the API mission model.
type Mission struct {
	ID             string   `json:"id"`
	HomeID         string   `json:"home_id"`
	Conciergerie   string   `json:"conciergerie"`
	Tasks          []string `json:"tasks"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	Status         string   `json:"status"`
	EmployeeID     string   `json:"employee_id,omitempty"`
	EstimatedHours float64  `json:"estimated_hours"`
	TotalPoints    int      `json:"total_points"`
	PointsPerDay   float64  `json:"points_per_day"`
}

// Home is the API home model (partial).
type Home struct {
	ID           string `json:"id"`
	Conciergerie string `json:"conciergerie"`
	Title        string `json:"title"`
	Zone         string `json:"zone,omitempty"`
}

// Employee is the API worker model.
type Employee struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Approval      string `json:"approval"`
	EmailVerified bool   `json:"email_verified"`
}

// Registration is the result of a worker signup.
type Registration struct {
	Employee  Employee `json:"employee"`
	DeviceKey string   `json:"device_key"`
}

// Load is one day of held points.
type Load struct {
	EmployeeID string  `json:"employee_id"`
	Day        string  `json:"day"`
	Points     float64 `json:"points"`
	Cap        float64 `json:"cap"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Register signs up a worker. The device key in the response is shown
// exactly once; store it.
func (c *Client) Register(ctx context.Context, name, email, phone, conciergerie string) (Registration, error) {
	body := map[string]any{
		"name":                   name,
		"email":                  email,
		"phone":                  phone,
		"preferred_conciergerie": conciergerie,
	}
	var resp Registration
	err := c.do(ctx, http.MethodPost, "employees", body, &resp)
	return resp, err
}

// Verify confirms the registration email with the mailed code.
func (c *Client) Verify(ctx context.Context, employeeID, code string) (Employee, error) {
	var resp Employee
	endpoint := fmt.Sprintf("employees/%s/verify", url.PathEscape(employeeID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"code": code}, &resp)
	return resp, err
}

// AvailableMissions lists the unassigned pool visible to this worker.
func (c *Client) AvailableMissions(ctx context.Context) ([]Mission, error) {
	var resp []Mission
	err := c.do(ctx, http.MethodGet, "missions?available=true", nil, &resp)
	return resp, err
}

// MyMissions lists the missions this worker holds.
func (c *Client) MyMissions(ctx context.Context) ([]Mission, error) {
	var resp []Mission
	err := c.do(ctx, http.MethodGet, "missions", nil, &resp)
	return resp, err
}

// GetMission fetches one mission.
func (c *Client) GetMission(ctx context.Context, id string) (Mission, error) {
	var resp Mission
	err := c.do(ctx, http.MethodGet, "missions/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Accept takes an available mission.
func (c *Client) Accept(ctx context.Context, missionID string) (Mission, error) {
	return c.transition(ctx, missionID, "accept")
}

// Start begins work on an accepted mission.
func (c *Client) Start(ctx context.Context, missionID string) (Mission, error) {
	return c.transition(ctx, missionID, "start")
}

// Complete finishes a started mission. Completion is final.
func (c *Client) Complete(ctx context.Context, missionID string) (Mission, error) {
	return c.transition(ctx, missionID, "complete")
}

// Cancel returns a held mission to the pool.
func (c *Client) Cancel(ctx context.Context, missionID string) (Mission, error) {
	return c.transition(ctx, missionID, "cancel")
}

func (c *Client) transition(ctx context.Context, missionID, action string) (Mission, error) {
	var resp Mission
	endpoint := fmt.Sprintf("missions/%s/%s", url.PathEscape(missionID), action)
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// EmployeeLoad returns held points for one day (YYYY-MM-DD, empty for
// today).
func (c *Client) EmployeeLoad(ctx context.Context, employeeID, day string) (Load, error) {
	endpoint := fmt.Sprintf("employees/%s/load", url.PathEscape(employeeID))
	if day != "" {
		endpoint += "?day=" + url.QueryEscape(day)
	}
	var resp Load
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Homes lists homes, optionally filtered by conciergerie.
func (c *Client) Homes(ctx context.Context, conciergerie string) ([]Home, error) {
	endpoint := "homes"
	if conciergerie != "" {
		endpoint += "?conciergerie=" + url.QueryEscape(conciergerie)
	}
	var resp []Home
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
