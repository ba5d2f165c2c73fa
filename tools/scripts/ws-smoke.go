// Package main provides a CI-friendly smoke test for taskhub notifications.
//
// It validates:
//   - register (idempotent) + login for an access token
//   - handshake + subprotocol selection for two clients
//   - a text frame from A reaches both A and B
//   - task create/update/delete over REST are broadcast to B
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	v1 "taskhub/contracts/notify/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	name string
	conn *websocket.Conn
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8000", "HTTP base URL of the server")
		origin   = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		username = flag.String("user", "smoke", "Username to register/login")
		pass     = flag.String("password", "smoke-password-123", "Password")
		text     = flag.String("text", "hello taskhub", "Message text to relay")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, err := validateBaseURL(*baseURL)
	if err != nil {
		fatalf("invalid -url: %v", err)
	}

	root := context.Background()

	mustRegister(root, base, *username, *pass, *timeout)
	access := mustLogin(root, base, *username, *pass, *timeout)

	a := mustConnect(root, "A", wsURL(base, "smoke-a", access), *origin, *timeout)
	defer closeWS(a.conn)
	b := mustConnect(root, "B", wsURL(base, "smoke-b", access), *origin, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: A B origin=%q\n", *origin)
	}

	// The server registers a connection after the handshake returns, so give
	// both a moment before relying on fan-out.
	time.Sleep(200 * time.Millisecond)

	mustWrite(root, a, v1.New(*text), *timeout)
	a.mustRead(root, *text, *timeout)
	b.mustRead(root, *text, *timeout)

	title := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	var task struct {
		ID int64 `json:"id"`
	}
	mustDo(root, http.MethodPost, base+"/api/v1/tasks", access, map[string]any{"title": title}, &task, *timeout)
	b.mustRead(root, "New task created: "+title, *timeout)

	id := strconv.FormatInt(task.ID, 10)
	mustDo(root, http.MethodPut, base+"/api/v1/tasks/"+id, access, map[string]any{"completed": true}, nil, *timeout)
	b.mustRead(root, "Task "+id+" updated", *timeout)

	mustDo(root, http.MethodDelete, base+"/api/v1/tasks/"+id, access, nil, nil, *timeout)
	b.mustRead(root, "Task "+id+" deleted", *timeout)

	fmt.Printf("OK: user=%s task_id=%s\n", *username, id)
}

func validateBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", errors.New("missing host")
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func wsURL(base, clientID, access string) string {
	u, _ := url.Parse(base)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/api/v1/ws/tasks/" + url.PathEscape(clientID)
	u.RawQuery = url.Values{"access_token": {access}}.Encode()
	return u.String()
}

func mustRegister(parent context.Context, base, user, pass string, timeout time.Duration) {
	body := map[string]any{
		"username":  user,
		"full_name": "Smoke Test",
		"email":     user + "@example.invalid",
		"age":       0,
		"password":  pass,
	}
	status, raw, err := doJSON(parent, http.MethodPost, base+"/api/v1/register", "", body, timeout)
	if err != nil {
		fatalf("register: %v", err)
	}
	// 409 means the user exists from a previous run.
	if status != http.StatusOK && status != http.StatusConflict {
		fatalf("register: status=%d body=%s", status, raw)
	}
}

func mustLogin(parent context.Context, base, user, pass string, timeout time.Duration) string {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	mustDo(parent, http.MethodPost, base+"/api/v1/login", "", map[string]any{"username": user, "password": pass}, &out, timeout)
	if strings.TrimSpace(out.AccessToken) == "" {
		fatalf("login: empty access_token")
	}
	return out.AccessToken
}

func mustDo(parent context.Context, method, u, bearer string, body, out any, timeout time.Duration) {
	status, raw, err := doJSON(parent, method, u, bearer, body, timeout)
	if err != nil {
		fatalf("%s %s: %v", method, u, err)
	}
	if status != http.StatusOK {
		fatalf("%s %s: status=%d body=%s", method, u, status, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fatalf("%s %s: decode: %v", method, u, err)
		}
	}
}

func doJSON(parent context.Context, method, u, bearer string, body any, timeout time.Duration) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	return resp.StatusCode, raw, err
}

func mustConnect(parent context.Context, name, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	if got := conn.Subprotocol(); got != "" && got != v1.Subprotocol {
		fatalf("subprotocol mismatch (%s): got=%q want=%q", name, got, v1.Subprotocol)
	}

	conn.SetReadLimit(maxReadBytes)
	return &smokeClient{name: name, conn: conn}
}

func mustWrite(parent context.Context, c *smokeClient, msg v1.Message, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(msg)
	if err != nil {
		fatalf("marshal (%s): %v", c.name, err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write (%s): %v", c.name, err)
	}
}

// mustRead reads frames until one carries want.
func (c *smokeClient) mustRead(parent context.Context, want string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			fatalf("read (%s) waiting for %q: %v", c.name, want, err)
		}
		m, err := v1.Decode(data)
		if err != nil {
			fatalf("decode (%s): %v raw=%s", c.name, err, data)
		}
		if m.Message == want {
			return
		}
	}
}

func closeWS(c *websocket.Conn) {
	if c == nil {
		return
	}
	_ = c.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
