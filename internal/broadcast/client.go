package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/untoldecay/gram/internal/graph"
)

// DefaultTimeout bounds a single relay round trip.
const DefaultTimeout = 15 * time.Second

// Client talks to the HTTP broadcast relay of spec.md §6.2. The relay
// itself is an external collaborator; this client only knows its wire
// surface.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient builds a client against endpoint (e.g. "https://relay.example").
func NewClient(endpoint string) *Client {
	return &Client{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// CreateResult is the relay's response to POST /broadcast.
type CreateResult struct {
	BroadcastId graph.Id
	Token       graph.Id
	Expiration  int64
}

// Create publishes episode (the db's last_updated timestamp at publish
// time) with body as its initial bytes, and returns the relay-assigned
// broadcast id, bearer token, and expiration.
func (c *Client) Create(ctx context.Context, episode int64, body []byte) (CreateResult, error) {
	url := fmt.Sprintf("%s/broadcast?episode=%d", c.Endpoint, episode)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return CreateResult{}, &InvalidBroadcastUrlError{Url: url, Err: err}
	}

	resp, respBody, err := c.do(req)
	if err != nil {
		return CreateResult{}, err
	}
	if resp.StatusCode != http.StatusCreated {
		return CreateResult{}, &InvalidBroadcastResponseError{Url: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var wire struct {
		BroadcastId string `json:"broadcast_id"`
		Token       string `json:"token"`
		Expiration  int64  `json:"expiration"`
	}
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return CreateResult{}, &InvalidBroadcastResponseError{Url: url, Err: err}
	}
	bid, err := graph.ParseId(wire.BroadcastId)
	if err != nil {
		return CreateResult{}, &InvalidBroadcastResponseError{Url: url, Err: err}
	}
	token, err := graph.ParseId(wire.Token)
	if err != nil {
		return CreateResult{}, &InvalidBroadcastResponseError{Url: url, Err: err}
	}
	return CreateResult{BroadcastId: bid, Token: token, Expiration: wire.Expiration}, nil
}

// ListEpisodes fetches a broadcast's episode timestamps, sorted ascending
// (spec.md I6).
func (c *Client) ListEpisodes(ctx context.Context, broadcastId graph.Id) ([]int64, error) {
	url := fmt.Sprintf("%s/broadcast/%s", c.Endpoint, broadcastId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &InvalidBroadcastUrlError{Url: url, Err: err}
	}

	resp, respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &BroadcastIdNotFoundError{BroadcastId: broadcastId.String()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &InvalidBroadcastResponseError{Url: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var raw []string
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, &InvalidBroadcastResponseError{Url: url, Err: err}
	}
	episodes := make([]int64, len(raw))
	for i, s := range raw {
		t, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, &InvalidBroadcastResponseError{Url: url, Err: err}
		}
		episodes[i] = t
	}
	return episodes, nil
}

// GetEpisode fetches one episode's raw bytes.
func (c *Client) GetEpisode(ctx context.Context, broadcastId graph.Id, episode int64) ([]byte, error) {
	url := fmt.Sprintf("%s/broadcast/%s/%d", c.Endpoint, broadcastId, episode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &InvalidBroadcastUrlError{Url: url, Err: err}
	}

	resp, respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &BroadcastIdNotFoundError{BroadcastId: broadcastId.String()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &InvalidBroadcastResponseError{Url: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return respBody, nil
}

// PutEpisode pushes a new or replacement episode under token's authority.
// created reports whether the relay reported 201 (new) rather than 200
// (replaced); callers treat both as success (spec.md's "200/201 ambiguity").
func (c *Client) PutEpisode(ctx context.Context, broadcastId graph.Id, episode int64, token graph.Id, body []byte) (created bool, err error) {
	url := fmt.Sprintf("%s/broadcast/%s/%d", c.Endpoint, broadcastId, episode)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return false, &InvalidBroadcastUrlError{Url: url, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token.String())

	resp, _, err := c.do(req)
	if err != nil {
		return false, err
	}
	switch resp.StatusCode {
	case http.StatusCreated:
		return true, nil
	case http.StatusOK:
		return false, nil
	default:
		return false, &InvalidBroadcastResponseError{Url: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
}

// Delete removes a broadcast under token's authority.
func (c *Client) Delete(ctx context.Context, broadcastId, token graph.Id) error {
	url := fmt.Sprintf("%s/broadcast/%s", c.Endpoint, broadcastId)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return &InvalidBroadcastUrlError{Url: url, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token.String())

	resp, _, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &InvalidBroadcastResponseError{Url: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, &InvalidBroadcastUrlError{Url: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &InvalidBroadcastResponseError{Url: req.URL.String(), Err: err}
	}
	return resp, body, nil
}
