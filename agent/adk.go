package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoSession indicates a run call was issued before the session was created
// on the service. Callers should create the session and retry the run
// themselves; this client never does so implicitly.
var ErrNoSession = errors.New("agent: no active session")

// DefaultADKBaseURL is where a locally started api_server listens.
const DefaultADKBaseURL = "http://localhost:8000"

// ADKClient talks to a running agent api_server over its REST surface.
// The matchmaker instruction lives in the server-side agent definition, so
// Invoke sends only the user message; the instruction argument is ignored.
type ADKClient struct {
	BaseURL    string
	AppName    string
	UserID     string
	SessionID  string
	HTTPClient *http.Client
}

// NewADKClient returns a client for one app/user/session triple.
func NewADKClient(baseURL, appName, userID, sessionID string) *ADKClient {
	if baseURL == "" {
		baseURL = DefaultADKBaseURL
	}
	return &ADKClient{
		BaseURL:    baseURL,
		AppName:    appName,
		UserID:     userID,
		SessionID:  sessionID,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type runRequest struct {
	AppName    string  `json:"app_name"`
	UserID     string  `json:"user_id"`
	SessionID  string  `json:"session_id"`
	NewMessage Content `json:"new_message"`
}

// CreateSession registers the session on the service. It must be called once
// before Run; the service rejects runs against unknown sessions.
func (c *ADKClient) CreateSession(ctx context.Context) error {
	url := fmt.Sprintf("%s/apps/%s/users/%s/sessions/%s", c.BaseURL, c.AppName, c.UserID, c.SessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("agent: create session: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("agent: create session failed with status %d: %s", res.StatusCode, string(b))
	}
	return nil
}

// Run sends the user message to the run endpoint and returns the turn's
// events in service order.
func (c *ADKClient) Run(ctx context.Context, userMessage string) ([]Event, error) {
	body, err := json.Marshal(runRequest{
		AppName:   c.AppName,
		UserID:    c.UserID,
		SessionID: c.SessionID,
		NewMessage: Content{
			Role:  "user",
			Parts: []Part{{Text: userMessage}},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent: run: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		b, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%w: %s", ErrNoSession, string(b))
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("agent: run failed with status %d: %s", res.StatusCode, string(b))
	}

	var events []Event
	if err := json.NewDecoder(res.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("agent: decode run response: %w", err)
	}
	return events, nil
}

// Invoke implements Invoker. The instruction argument is unused: the
// server-side agent definition owns it.
func (c *ADKClient) Invoke(ctx context.Context, _ string, userMessage string) ([]Event, error) {
	return c.Run(ctx, userMessage)
}
