// Package shellyclient implements the single operation the polling engine
// needs from a device: a JSON-RPC call over HTTP to http://{host}/rpc. It
// owns no retry or backoff policy — that belongs to the scheduler.
package shellyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// Kind classifies a call failure so callers can branch without parsing
// error text.
type Kind string

const (
	KindTimeout            Kind = "Timeout"
	KindConnect            Kind = "Connect"
	KindAuthDenied         Kind = "AuthDenied"
	KindHTTPStatus         Kind = "HttpStatus"
	KindMalformedResponse  Kind = "MalformedResponse"
	KindRPCError           Kind = "RpcError"
)

// Error wraps a classified Device Client failure.
type Error struct {
	Kind   Kind
	Method string
	Host   string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("shelly rpc %s@%s: %s: %s", e.Method, e.Host, e.Kind, e.Detail)
}

// Auth carries optional HTTP Basic credentials. Zero value means no auth.
type Auth struct {
	Username string
	Password string
}

func (a Auth) enabled() bool {
	return a.Username != "" || a.Password != ""
}

// Client is a shared, keep-alive-pooled JSON-RPC client for every target.
// A single instance is meant to be reused across the whole process.
type Client struct {
	http *http.Client
	id   atomic.Uint64
}

// New builds a Client with a connection pool tuned for many small,
// frequent requests to many hosts.
func New() *Client {
	transport := &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &Client{
		http: &http.Client{Transport: transport},
	}
}

type rpcRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call issues method against host with the given timeout and optional
// auth, returning the raw `result` object on success.
func (c *Client) Call(ctx context.Context, host, method string, auth Auth, timeout time.Duration) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{ID: c.id.Add(1), Method: method})
	if err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Method: method, Host: host, Detail: err.Error()}
	}

	url := fmt.Sprintf("http://%s/rpc", host)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindConnect, Method: method, Host: host, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if auth.enabled() {
		req.SetBasicAuth(auth.Username, auth.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindTimeout, Method: method, Host: host, Detail: err.Error()}
		}
		return nil, &Error{Kind: KindConnect, Method: method, Host: host, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &Error{Kind: KindAuthDenied, Method: method, Host: host, Detail: resp.Status}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Kind: KindHTTPStatus, Method: method, Host: host, Detail: resp.Status}
	}

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Method: method, Host: host, Detail: err.Error()}
	}
	if parsed.Error != nil {
		return nil, &Error{Kind: KindRPCError, Method: method, Host: host, Detail: parsed.Error.Message}
	}
	if parsed.Result == nil {
		return nil, &Error{Kind: KindMalformedResponse, Method: method, Host: host, Detail: "missing result"}
	}
	return parsed.Result, nil
}

// GetDeviceInfo calls Shelly.GetDeviceInfo.
func (c *Client) GetDeviceInfo(ctx context.Context, host string, auth Auth, timeout time.Duration) (json.RawMessage, error) {
	return c.Call(ctx, host, "Shelly.GetDeviceInfo", auth, timeout)
}

// GetStatus calls Shelly.GetStatus.
func (c *Client) GetStatus(ctx context.Context, host string, auth Auth, timeout time.Duration) (json.RawMessage, error) {
	return c.Call(ctx, host, "Shelly.GetStatus", auth, timeout)
}
