// Package ariarpc provides a client for the JSON-RPC interface of the aria2 download daemon.
package ariarpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/ariatop/internal/logger"
	"github.com/powerman/rpc-codec/jsonrpc2"
)

const (
	DefaultHost    = "http://localhost"
	DefaultPort    = 6800
	DefaultTimeout = 60 * time.Second
)

// Config holds the connection parameters of a Client. They cannot change after New.
type Config struct {
	Host    string
	Port    int
	Secret  string
	Timeout time.Duration
}

// Client sends JSON-RPC requests to an aria2 daemon over HTTP.
// It is safe for concurrent use.
type Client struct {
	config Config
	url    string
	wsURL  string
	http   *http.Client
	log    logger.Logger

	mRPC sync.Mutex
	rpc  *jsonrpc2.Client

	metrics *clientMetrics
}

// New returns a client for the daemon described by cfg. It does not connect.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", cfg.Host, err)
	}
	var wsScheme string
	switch u.Scheme {
	case "http":
		wsScheme = "ws"
	case "https":
		wsScheme = "wss"
	default:
		return nil, fmt.Errorf("invalid host %q: scheme must be http or https", cfg.Host)
	}
	if u.Host == "" || u.Port() != "" {
		return nil, fmt.Errorf("invalid host %q: give the port separately", cfg.Host)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("invalid timeout: %s", cfg.Timeout)
	}
	hostPart := strings.TrimPrefix(cfg.Host, u.Scheme)
	return &Client{
		config:  cfg,
		url:     fmt.Sprintf("%s:%d/jsonrpc", cfg.Host, cfg.Port),
		wsURL:   fmt.Sprintf("%s%s:%d/jsonrpc", wsScheme, hostPart, cfg.Port),
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     logger.New("rpc client"),
		metrics: newClientMetrics(),
	}, nil
}

// Config returns the connection parameters.
func (c *Client) Config() Config { return c.config }

// URL of the JSON-RPC endpoint.
func (c *Client) URL() string { return c.url }

// String returns the endpoint address. The secret is never included.
func (c *Client) String() string { return c.url }

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.mRPC.Lock()
	defer c.mRPC.Unlock()
	defer c.http.CloseIdleConnections()
	if c.rpc == nil {
		return nil
	}
	err := c.rpc.Close()
	c.rpc = nil
	return err
}

func (c *Client) rpcClient() *jsonrpc2.Client {
	c.mRPC.Lock()
	defer c.mRPC.Unlock()
	if c.rpc == nil {
		c.rpc = jsonrpc2.NewCustomHTTPClient(c.url, daemonDoer{c.http})
	}
	return c.rpc
}

// unreachable prefixes the message of errors from the HTTP round trip so classify can tell them from daemon errors.
const unreachable = "daemon unreachable: "

// daemonDoer adapts daemon responses to what the codec accepts.
// The daemon labels bodies "application/json-rpc" and answers error objects with a 4xx/5xx status.
type daemonDoer struct {
	client *http.Client
}

func (d daemonDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		// The codec passes only the message on, as an internal error object.
		return nil, errors.New(unreachable + err.Error())
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return resp, nil
	}
	resp.Header.Set("Content-Type", "application/json")
	if resp.StatusCode >= 400 {
		resp.StatusCode = http.StatusOK
		resp.Status = "200 OK"
	}
	return resp, nil
}

// reset drops clt so the next call starts on a fresh connection.
// net/rpc refuses all calls on a client after its first read failure.
func (c *Client) reset(clt *jsonrpc2.Client) {
	c.mRPC.Lock()
	if c.rpc == clt {
		c.rpc = nil
	}
	c.mRPC.Unlock()
	_ = clt.Close()
}

// Call invokes method with positional params and decodes the result into reply.
// reply may be nil when the result is not needed.
// The secret token is inserted automatically.
func (c *Client) Call(ctx context.Context, method string, params []any, reply any) error {
	start := time.Now()
	err := c.call(ctx, method, c.withSecret(method, params), reply)
	c.metrics.observe(start, err)
	return err
}

func (c *Client) call(ctx context.Context, method string, params []any, reply any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return &TransportError{Method: method, Err: err}
	}

	var args any
	if len(params) > 0 {
		args = params
	}
	c.log.Debugf("calling %s", method)
	clt := c.rpcClient()
	var raw json.RawMessage
	done := make(chan error, 1)
	go func() { done <- clt.Call(method, args, &raw) }()
	select {
	case err := <-done:
		if err != nil {
			err = classify(method, err)
			if IsTransport(err) || IsProtocol(err) {
				c.reset(clt)
			}
			return err
		}
	case <-ctx.Done():
		return &TransportError{Method: method, Err: ctx.Err()}
	}
	if reply == nil {
		return nil
	}
	if err := json.Unmarshal(raw, reply); err != nil {
		return &ProtocolError{Method: method, Err: err}
	}
	return nil
}

func (c *Client) withSecret(method string, params []any) []any {
	if c.config.Secret == "" {
		return params
	}
	if method == Multicall && len(params) == 1 {
		// Entries given as decoded JSON, e.g. by the call command.
		if entries, ok := params[0].([]any); ok {
			out := make([]any, len(entries))
			for i, e := range entries {
				out[i] = e
				m, ok := e.(map[string]any)
				if !ok {
					continue
				}
				name, _ := m["methodName"].(string)
				sub, _ := m["params"].([]any)
				m2 := make(map[string]any, len(m))
				for k, v := range m {
					m2[k] = v
				}
				m2["params"] = c.withSecret(name, sub)
				out[i] = m2
			}
			return []any{out}
		}
	}
	if !strings.HasPrefix(method, "aria2.") {
		return params
	}
	return append([]any{"token:" + c.config.Secret}, params...)
}

// MethodCall is a single entry of a multicall.
type MethodCall struct {
	Method string
	Params []any
}

type multicallEntry struct {
	MethodName string `json:"methodName"`
	Params     []any  `json:"params"`
}

// Result is the outcome of one entry in a multicall.
type Result struct {
	Method string
	Raw    json.RawMessage
	Err    error
}

// Decode unmarshals the result value into v, or returns the error of the entry.
func (r Result) Decode(v any) error {
	if r.Err != nil {
		return r.Err
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return &ProtocolError{Method: r.Method, Err: err}
	}
	return nil
}

// Multicall sends all calls in a single system.multicall request.
// The returned error is set only when the request as a whole failed;
// failures of individual entries are reported in the Err field of their Result.
func (c *Client) Multicall(ctx context.Context, calls []MethodCall) ([]Result, error) {
	entries := make([]multicallEntry, len(calls))
	for i, mc := range calls {
		params := c.withSecret(mc.Method, mc.Params)
		if params == nil {
			params = []any{}
		}
		entries[i] = multicallEntry{MethodName: mc.Method, Params: params}
	}
	var raw []json.RawMessage
	start := time.Now()
	err := c.call(ctx, Multicall, []any{entries}, &raw)
	c.metrics.observe(start, err)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(calls) {
		return nil, &ProtocolError{Method: Multicall, Err: fmt.Errorf("got %d results for %d calls", len(raw), len(calls))}
	}
	results := make([]Result, len(calls))
	for i, r := range raw {
		results[i] = parseMulticallResult(calls[i].Method, r)
		if IsRemote(results[i].Err) {
			c.metrics.RemoteErrors.Inc(1)
		}
	}
	return results, nil
}

// parseMulticallResult unwraps an entry of a multicall response:
// either a one-element array holding the value or an error struct.
func parseMulticallResult(method string, raw json.RawMessage) Result {
	res := Result{Method: method}
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		var values []json.RawMessage
		if err := json.Unmarshal(trimmed, &values); err != nil {
			res.Err = &ProtocolError{Method: method, Err: err}
		} else if len(values) != 1 {
			res.Err = &ProtocolError{Method: method, Err: fmt.Errorf("expected 1 value, got %d", len(values))}
		} else {
			res.Raw = values[0]
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		var e struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &e); err != nil {
			res.Err = &ProtocolError{Method: method, Err: err}
		} else {
			res.Err = &RemoteError{Method: method, Code: e.Code, Message: e.Message}
		}
	default:
		res.Err = &ProtocolError{Method: method, Err: errors.New("unexpected multicall result: " + string(trimmed))}
	}
	return res
}
