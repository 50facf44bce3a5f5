package audionode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// doJSON: arma URL, agrega Authorization, maneja 404 y 429 con Retry-After simple.
func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, body, out any) error {
	return c.do(ctx, method, path, q, body, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any, retry bool) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("audio node encode: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("audio node request: %w", err)
	}
	req.Header.Set("Authorization", c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("audio node http: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests && retry {
		if sec, _ := strconv.Atoi(res.Header.Get("Retry-After")); sec > 0 {
			select {
			case <-time.After(time.Duration(sec) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			// un reintento
			return c.do(ctx, method, path, q, body, out, false)
		}
	}

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &APIError{Status: res.StatusCode, Body: string(b)}
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("audio node decode: %w", err)
	}
	return nil
}
