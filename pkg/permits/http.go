package permits

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPClient implements Client against the permission authority's
// JSON endpoint. Transient failures are retried with exponential
// backoff until MaxElapsedTime.
type HTTPClient struct {
	Client         *http.Client
	URL            string
	MaxElapsedTime time.Duration
}

// GetPermits posts the request and decodes the authority's reply.
func (c *HTTPClient) GetPermits(ctx context.Context, req Request) (*Reply, error) {
	body, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.MaxElapsedTime
	var reply *Reply
	err = backoff.Retry(func() error {
		reply, err = c.getPermits(ctx, body)
		return err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *HTTPClient) getPermits(ctx context.Context, body []byte) (*Reply, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("permission authority: status %d", resp.StatusCode)
	}
	reply := new(Reply)
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Assert HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
