// Package fakedaemon serves a scriptable imitation of the aria2 JSON-RPC and WebSocket endpoints for tests.
package fakedaemon

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/cenkalti/ariatop/internal/rpctypes"
	"github.com/gorilla/websocket"
)

// Handler answers a single method call. params no longer contain the secret token.
type Handler func(params []json.RawMessage) (any, *rpctypes.Error)

// Call is a recorded method invocation.
type Call struct {
	Method string
	Params []json.RawMessage
}

type request struct {
	Version string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type response struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpctypes.Error `json:"error,omitempty"`
}

type Daemon struct {
	Secret string

	server   *httptest.Server
	upgrader websocket.Upgrader

	m        sync.Mutex
	handlers map[string]Handler
	calls    []Call
	sockets  []*websocket.Conn
	socketC  chan struct{}
}

// New starts a daemon listening on a random local port.
func New(secret string) *Daemon {
	d := &Daemon{
		Secret:   secret,
		handlers: make(map[string]Handler),
		socketC:  make(chan struct{}, 16),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	d.server = httptest.NewServer(http.HandlerFunc(d.serveHTTP))
	return d
}

// Handle registers h for method. A later registration replaces an earlier one.
func (d *Daemon) Handle(method string, h Handler) {
	d.m.Lock()
	d.handlers[method] = h
	d.m.Unlock()
}

// Reply registers a handler that always returns result.
func (d *Daemon) Reply(method string, result any) {
	d.Handle(method, func([]json.RawMessage) (any, *rpctypes.Error) { return result, nil })
}

// Fail registers a handler that always returns an error object.
func (d *Daemon) Fail(method string, code int, message string) {
	d.Handle(method, func([]json.RawMessage) (any, *rpctypes.Error) {
		return nil, &rpctypes.Error{Code: code, Message: message}
	})
}

// Calls returns the calls received so far, multicall entries expanded in order.
func (d *Daemon) Calls() []Call {
	d.m.Lock()
	defer d.m.Unlock()
	return append([]Call(nil), d.calls...)
}

// Methods returns the names of the calls received so far.
func (d *Daemon) Methods() []string {
	calls := d.Calls()
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Method
	}
	return names
}

// Host returns the scheme and host part of the server address, without port.
func (d *Daemon) Host() string {
	host, _, _ := net.SplitHostPort(strings.TrimPrefix(d.server.URL, "http://"))
	return "http://" + host
}

func (d *Daemon) Port() int {
	_, port, _ := net.SplitHostPort(strings.TrimPrefix(d.server.URL, "http://"))
	p, _ := strconv.Atoi(port)
	return p
}

// Close stops the server and drops all WebSocket connections.
func (d *Daemon) Close() {
	d.DropSockets()
	d.server.Close()
}

// WaitSocket blocks until a WebSocket client has connected.
func (d *Daemon) WaitSocket() {
	<-d.socketC
}

// DropSockets closes all WebSocket connections from the server side.
func (d *Daemon) DropSockets() {
	d.m.Lock()
	sockets := d.sockets
	d.sockets = nil
	d.m.Unlock()
	for _, c := range sockets {
		_ = c.Close()
	}
}

// Notify pushes a notification about gid to every connected WebSocket client.
func (d *Daemon) Notify(method, gid string) error {
	n := rpctypes.Notification{
		Version: "2.0",
		Method:  method,
		Params:  []rpctypes.NotificationParams{{GID: gid}},
	}
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return d.SendRaw(b)
}

// SendRaw writes b as a text frame to every connected WebSocket client.
func (d *Daemon) SendRaw(b []byte) error {
	d.m.Lock()
	defer d.m.Unlock()
	for _, c := range d.sockets {
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			return err
		}
	}
	return nil
}

func (d *Daemon) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/jsonrpc" {
		http.NotFound(w, r)
		return
	}
	if websocket.IsWebSocketUpgrade(r) {
		d.serveSocket(w, r)
		return
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, rerr := d.dispatch(req.Method, req.Params)
	resp := response{Version: "2.0", ID: req.ID, Result: result, Error: rerr}
	w.Header().Set("Content-Type", "application/json-rpc")
	if rerr != nil {
		w.WriteHeader(http.StatusBadRequest)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (d *Daemon) serveSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	d.m.Lock()
	d.sockets = append(d.sockets, conn)
	d.m.Unlock()
	select {
	case d.socketC <- struct{}{}:
	default:
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			_ = conn.Close()
			return
		}
	}
}

func (d *Daemon) dispatch(method string, params []json.RawMessage) (any, *rpctypes.Error) {
	if method == "system.multicall" {
		return d.multicall(params)
	}
	params, rerr := d.checkSecret(method, params)
	if rerr != nil {
		return nil, rerr
	}
	d.m.Lock()
	d.calls = append(d.calls, Call{Method: method, Params: params})
	h, ok := d.handlers[method]
	d.m.Unlock()
	if !ok {
		return nil, &rpctypes.Error{Code: -32601, Message: "Method not found."}
	}
	return h(params)
}

func (d *Daemon) checkSecret(method string, params []json.RawMessage) ([]json.RawMessage, *rpctypes.Error) {
	if d.Secret == "" || !strings.HasPrefix(method, "aria2.") {
		return params, nil
	}
	var token string
	if len(params) > 0 {
		_ = json.Unmarshal(params[0], &token)
	}
	if token != "token:"+d.Secret {
		return nil, &rpctypes.Error{Code: 1, Message: "Unauthorized"}
	}
	return params[1:], nil
}

func (d *Daemon) multicall(params []json.RawMessage) (any, *rpctypes.Error) {
	var entries []struct {
		MethodName string            `json:"methodName"`
		Params     []json.RawMessage `json:"params"`
	}
	if len(params) != 1 || json.Unmarshal(params[0], &entries) != nil {
		return nil, &rpctypes.Error{Code: -32602, Message: "Invalid params."}
	}
	results := make([]any, len(entries))
	for i, e := range entries {
		result, rerr := d.dispatch(e.MethodName, e.Params)
		if rerr != nil {
			results[i] = rerr
		} else {
			results[i] = []any{result}
		}
	}
	return results, nil
}
