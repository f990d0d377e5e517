// Package graph adapts the social-graph collaborator that supplies the
// interest set for presence fan-out. The graph itself is owned by the CRUD
// backend; this package only asks it questions.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"dm-relay/contract"
)

// Static is an in-memory interest map, used in tests and as a fallback when
// no backend URL is configured. Interest is recorded symmetrically: routing
// a message between two users makes each interested in the other.
type Static struct {
	mu         sync.RWMutex
	interested map[string]map[string]struct{}
}

var _ contract.SocialGraph = (*Static)(nil)

func NewStatic() *Static {
	return &Static{interested: make(map[string]map[string]struct{})}
}

func (g *Static) AddInterest(a, b string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.link(a, b)
	g.link(b, a)
}

func (g *Static) link(from, to string) {
	if g.interested[to] == nil {
		g.interested[to] = make(map[string]struct{})
	}
	g.interested[to][from] = struct{}{}
}

func (g *Static) InterestedParties(_ context.Context, userID string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	parties := make([]string, 0, len(g.interested[userID]))
	for party := range g.interested[userID] {
		parties = append(parties, party)
	}
	return parties, nil
}

// Client queries the CRUD backend over HTTP:
// GET {baseURL}/users/{id}/contacts -> JSON array of user ids.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ contract.SocialGraph = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *Client) InterestedParties(ctx context.Context, userID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/users/%s/contacts", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("social graph returned %d for %s", resp.StatusCode, userID)
	}
	var parties []string
	if err := json.NewDecoder(resp.Body).Decode(&parties); err != nil {
		return nil, err
	}
	return parties, nil
}
