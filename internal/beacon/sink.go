// Package beacon reports space visits and clicks to metric collectors without
// blocking the response path.
package beacon

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

	"github.com/patrickwarner/spaceforward/internal/db"
	"github.com/patrickwarner/spaceforward/internal/models"
)

// Event is a countable space interaction.
type Event string

const (
	EventVisit Event = "visits"
	EventClick Event = "clicks"
)

// Sink records a single event somewhere.
type Sink interface {
	Name() string
	Record(ctx context.Context, event Event, network models.Network, space string) error
}

// GraphQLSink sends the increment mutation to the beacon GraphQL endpoint.
type GraphQLSink struct {
	URL    string
	Client *http.Client
}

func (s *GraphQLSink) Name() string { return "graphql" }

func (s *GraphQLSink) Record(ctx context.Context, event Event, _ models.Network, space string) error {
	// JSON string literals are valid GraphQL string literals
	spaceLit, err := json.Marshal(space)
	if err != nil {
		return fmt.Errorf("encode space id: %w", err)
	}
	body, err := json.Marshal(map[string]string{
		"query": fmt.Sprintf("mutation { increment(eventType: %s, spaceId: %s) { message } }", event, spaceLit),
	})
	if err != nil {
		return fmt.Errorf("marshal mutation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return send(client(s.Client), req)
}

// RESTSink PUTs to the per-space counter endpoints of the beacon API.
type RESTSink struct {
	BaseURL string
	Client  *http.Client
}

func (s *RESTSink) Name() string { return "rest" }

func (s *RESTSink) Record(ctx context.Context, event Event, _ models.Network, space string) error {
	path := "/api/v1/space/"
	if event == EventClick {
		path += "click/"
	}
	target := strings.TrimRight(s.BaseURL, "/") + path + url.PathEscape(space)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return send(client(s.Client), req)
}

// RedisSink keeps daily per-space counters in Redis.
type RedisSink struct {
	Store *db.RedisStore
	Now   func() time.Time
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Record(ctx context.Context, event Event, network models.Network, space string) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	_, err := s.Store.IncrementSpaceCounter(ctx, network.Name, space, string(event), now())
	return err
}

func client(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

func send(c *http.Client, req *http.Request) error {
	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("http %d from %s", resp.StatusCode, req.URL)
	}
	return nil
}
