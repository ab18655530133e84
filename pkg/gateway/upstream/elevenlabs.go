// Package upstream connects redeemed sessions to the ElevenLabs
// conversational agent: it exchanges the agent id for a signed WebSocket
// URL, dials it, and builds the initiation frame the agent expects first.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pathwise-app/conversation-service/pkg/gateway/apierror"
	"github.com/pathwise-app/conversation-service/pkg/gateway/relay"
)

const DefaultBaseURL = "https://api.elevenlabs.io"

const apiKeyHeader = "xi-api-key"

// Connector obtains live sockets to the conversational agent. One Connector
// is constructed at process start and shared across sessions; each Dial
// returns a connection owned exclusively by the caller.
type Connector struct {
	apiKey  string
	agentID string
	baseURL string

	httpClient      *http.Client
	dialer          *websocket.Dialer
	maxMessageBytes int64
}

type Options struct {
	// BaseURL overrides the ElevenLabs API origin; used by tests.
	BaseURL string

	HTTPClient *http.Client
	Dialer     *websocket.Dialer

	// MaxMessageBytes caps inbound frames from the agent socket.
	MaxMessageBytes int64
}

func NewConnector(apiKey, agentID string, opts Options) *Connector {
	c := &Connector{
		apiKey:          apiKey,
		agentID:         agentID,
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		httpClient:      opts.HTTPClient,
		dialer:          opts.Dialer,
		maxMessageBytes: opts.MaxMessageBytes,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	return c
}

// SignedURL asks the provider for a short-lived authenticated WebSocket URL
// for the configured agent.
func (c *Connector) SignedURL(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/convai/conversation/get-signed-url?agent_id=%s",
		c.baseURL, url.QueryEscape(c.agentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apierror.E(apierror.KindUpstreamUnavailable, "failed to obtain agent signed url")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apierror.E(apierror.KindUpstreamUnavailable, "failed to obtain agent signed url")
	}

	var body struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || strings.TrimSpace(body.SignedURL) == "" {
		return "", apierror.E(apierror.KindUpstreamUnavailable, "agent response missing signed_url")
	}
	return body.SignedURL, nil
}

// Dial obtains a signed URL and opens the agent socket, presenting the
// provider API key. The returned connection is live but uninitialized: the
// caller must send the initiation frame before forwarding client frames.
func (c *Connector) Dial(ctx context.Context) (relay.Conn, error) {
	signed, err := c.SignedURL(ctx)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set(apiKeyHeader, c.apiKey)
	conn, _, err := c.dialer.DialContext(ctx, signed, header)
	if err != nil {
		return nil, apierror.E(apierror.KindUpstreamUnavailable, "failed to connect to agent")
	}
	if c.maxMessageBytes > 0 {
		conn.SetReadLimit(c.maxMessageBytes)
	}
	return conn, nil
}
