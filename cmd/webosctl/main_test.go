package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-webos/internal/bridges/webos"
	"github.com/nerrad567/gray-logic-webos/internal/discovery/ssdp"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-webos/internal/pairing"
)

// fakeTV is a television speaking just enough of the second-screen protocol.
type fakeTV struct {
	srv      *httptest.Server
	issueKey string

	mu        sync.Mutex
	responses map[string]string
	keysSeen  []string
	uris      []string
	payloads  []string
}

type tvFrame struct {
	ID      json.RawMessage `json:"id"`
	Type    string          `json:"type"`
	URI     string          `json:"uri,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newFakeTV(t *testing.T, issueKey string) *fakeTV {
	t.Helper()
	tv := &fakeTV{issueKey: issueKey, responses: make(map[string]string)}
	upgrader := websocket.Upgrader{}

	tv.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var in tvFrame
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			var reply tvFrame
			switch in.Type {
			case "register":
				var reg struct {
					ClientKey string `json:"client-key"`
				}
				_ = json.Unmarshal(in.Payload, &reg)
				tv.mu.Lock()
				tv.keysSeen = append(tv.keysSeen, reg.ClientKey)
				tv.mu.Unlock()
				reply = tvFrame{ID: in.ID, Type: "registered", Payload: json.RawMessage(`{"client-key":"` + tv.issueKey + `"}`)}
			case "request":
				tv.mu.Lock()
				tv.uris = append(tv.uris, in.URI)
				tv.payloads = append(tv.payloads, string(in.Payload))
				body, ok := tv.responses[in.URI]
				tv.mu.Unlock()
				if !ok {
					body = `{"returnValue":true}`
				}
				reply = tvFrame{ID: in.ID, Type: "response", Payload: json.RawMessage(body)}
			default:
				continue
			}
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(tv.srv.Close)
	return tv
}

func (tv *fakeTV) respond(uri, payload string) {
	tv.mu.Lock()
	tv.responses[uri] = payload
	tv.mu.Unlock()
}

// target returns the --address and --port flags for the server.
func (tv *fakeTV) target(t *testing.T) []string {
	t.Helper()
	host, port, err := net.SplitHostPort(tv.srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := strconv.Atoi(port); err != nil {
		t.Fatal(err)
	}
	return []string{"--address", host, "--port", port, "--timeout", "3s"}
}

func (tv *fakeTV) firstKey() string {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	if len(tv.keysSeen) == 0 {
		return "<no register>"
	}
	return tv.keysSeen[0]
}

func (tv *fakeTV) requests() ([]string, []string) {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	return append([]string{}, tv.uris...), append([]string{}, tv.payloads...)
}

// fakeFinder implements finder for testing.
type fakeFinder struct {
	cfg      ssdp.Config
	startErr error
	devices  []ssdp.Device
	started  bool
	stopped  bool
}

func (f *fakeFinder) Start(context.Context) error {
	f.started = true
	return f.startErr
}

func (f *fakeFinder) Stop() { f.stopped = true }

func (f *fakeFinder) Devices() []ssdp.Device { return f.devices }

func testCLI(f *fakeFinder) *cli {
	c := defaultCLI()
	if f != nil {
		c.newFinder = func(cfg ssdp.Config) finder {
			f.cfg = cfg
			return f
		}
	}
	return c
}

func executeCommand(c *cli, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root := newRootCmd(c)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestVolume_GetPairsAndPrintsKey(t *testing.T) {
	tv := newFakeTV(t, "issued-key")
	tv.respond(webos.URIGetVolume, `{"returnValue":true,"volumeStatus":{"volume":17,"muteStatus":true}}`)

	out, err := executeCommand(testCLI(nil), append([]string{"volume"}, tv.target(t)...)...)
	if err != nil {
		t.Fatalf("volume failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "volume: 17 (muted)") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "client key: issued-key") {
		t.Errorf("new key not printed: %q", out)
	}
	if tv.firstKey() != "" {
		t.Errorf("register sent key %q, want none", tv.firstKey())
	}
}

func TestVolume_SetWithKnownKey(t *testing.T) {
	tv := newFakeTV(t, "known-key")

	args := append([]string{"volume", "30", "--key", "known-key"}, tv.target(t)...)
	out, err := executeCommand(testCLI(nil), args...)
	if err != nil {
		t.Fatalf("volume failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "volume set to 30") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "client key:") {
		t.Errorf("unchanged key should not be printed: %q", out)
	}

	uris, payloads := tv.requests()
	if len(uris) != 1 || uris[0] != webos.URISetVolume {
		t.Fatalf("uris = %v", uris)
	}
	if payloads[0] != `{"volume":30}` {
		t.Errorf("payload = %s", payloads[0])
	}
	if tv.firstKey() != "known-key" {
		t.Errorf("register key = %q", tv.firstKey())
	}
}

func TestVolume_InvalidLevel(t *testing.T) {
	for _, arg := range []string{"loud", "-1", "101"} {
		_, err := executeCommand(testCLI(nil), "volume", "--address", "127.0.0.1", "--", arg)
		if err == nil || !strings.Contains(err.Error(), "between 0 and 100") {
			t.Errorf("volume %s error = %v", arg, err)
		}
	}
}

func TestToast(t *testing.T) {
	tv := newFakeTV(t, "k")
	tv.respond(webos.URICreateToast, `{"returnValue":true,"toastId":"com.webos.toast-3"}`)

	out, err := executeCommand(testCLI(nil), append([]string{"toast", "Dinner is ready", "--key", "k"}, tv.target(t)...)...)
	if err != nil {
		t.Fatalf("toast failed: %v", err)
	}
	if !strings.Contains(out, "toast shown (com.webos.toast-3)") {
		t.Errorf("output = %q", out)
	}
	_, payloads := tv.requests()
	if payloads[0] != `{"message":"Dinner is ready"}` {
		t.Errorf("payload = %s", payloads[0])
	}
}

func TestToast_RequiresMessage(t *testing.T) {
	if _, err := executeCommand(testCLI(nil), "toast", "--address", "127.0.0.1"); err == nil {
		t.Error("toast without message should fail")
	}
}

func TestRequest(t *testing.T) {
	tv := newFakeTV(t, "k")
	tv.respond("ssap://tv/getCurrentChannel", `{"returnValue":true,"channelId":"7_1"}`)

	args := append([]string{"request", "--key", "k", "--uri", "ssap://tv/getCurrentChannel", "--payload", `{"full":true}`}, tv.target(t)...)
	out, err := executeCommand(testCLI(nil), args...)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if !strings.Contains(out, "\"channelId\": \"7_1\"") {
		t.Errorf("output not indented JSON: %q", out)
	}
	_, payloads := tv.requests()
	if payloads[0] != `{"full":true}` {
		t.Errorf("payload = %s", payloads[0])
	}
}

func TestRequest_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing uri", []string{"request", "--address", "127.0.0.1"}, "--uri is required"},
		{"bad payload", []string{"request", "--address", "127.0.0.1", "--uri", "ssap://x/y", "--payload", "{"}, "not valid JSON"},
		{"no target", []string{"request", "--uri", "ssap://x/y"}, errNoTarget.Error()},
		{"unknown device", []string{"request", "--uri", "ssap://x/y", "--device", "attic"}, "not in the config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(testCLI(nil), tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRequest_DeviceFromConfig(t *testing.T) {
	tv := newFakeTV(t, "file-key")
	host, port, _ := net.SplitHostPort(tv.srv.Listener.Addr().String())

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
webos:
  enabled: true
  devices:
    - id: den
      address: "` + host + `"
      port: ` + port + `
      client_key: file-key
`
	if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand(testCLI(nil), "request", "--config", cfgPath, "--device", "den", "--uri", webos.URIGetVolume, "--timeout", "3s")
	if err != nil {
		t.Fatalf("request failed: %v\n%s", err, out)
	}
	if tv.firstKey() != "file-key" {
		t.Errorf("register key = %q, want key from config", tv.firstKey())
	}
	if strings.Contains(out, "client key:") {
		t.Errorf("unchanged key should not be printed: %q", out)
	}
}

func TestRequest_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	_, err = executeCommand(testCLI(nil), "request", "--address", "127.0.0.1", "--port", port, "--uri", "ssap://x/y", "--timeout", "2s")
	if !errors.Is(err, webos.ErrConnectionFailed) {
		t.Errorf("error = %v, want ErrConnectionFailed", err)
	}
}

func TestDiscover_Table(t *testing.T) {
	f := &fakeFinder{devices: []ssdp.Device{
		{ID: "bbb", Address: "192.168.1.41", FriendlyName: "Bedroom", ModelName: "43UN7300"},
		{ID: "aaa", Address: "192.168.1.40", FriendlyName: "[LG] webOS TV", ModelName: "OLED55C1PUB"},
	}}

	start := time.Now()
	out, err := executeCommand(testCLI(f), "discover", "--timeout", "50ms")
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("discover returned before the timeout")
	}
	if !f.started || !f.stopped {
		t.Errorf("finder started=%v stopped=%v", f.started, f.stopped)
	}
	if f.cfg.SearchTarget != ssdp.DefaultSearchTarget {
		t.Errorf("search target = %q", f.cfg.SearchTarget)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("output = %q", out)
	}
	if !strings.HasPrefix(lines[1], "aaa") || !strings.Contains(lines[1], "OLED55C1PUB") {
		t.Errorf("rows not sorted by id: %q", out)
	}
}

func TestDiscover_JSON(t *testing.T) {
	f := &fakeFinder{devices: []ssdp.Device{{ID: "aaa", Address: "192.168.1.40"}}}

	out, err := executeCommand(testCLI(f), "discover", "--json", "--timeout", "10ms")
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	var devices []ssdp.Device
	if err := json.Unmarshal([]byte(out), &devices); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(devices) != 1 || devices[0].Address != "192.168.1.40" {
		t.Errorf("devices = %+v", devices)
	}
}

func TestDiscover_NoneFound(t *testing.T) {
	out, err := executeCommand(testCLI(&fakeFinder{}), "discover", "--timeout", "10ms")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No televisions found.") {
		t.Errorf("output = %q", out)
	}
}

func TestDiscover_StartError(t *testing.T) {
	f := &fakeFinder{startErr: ssdp.ErrBindFailed}
	_, err := executeCommand(testCLI(f), "discover", "--timeout", "10ms")
	if !errors.Is(err, ssdp.ErrBindFailed) {
		t.Errorf("error = %v, want ErrBindFailed", err)
	}
}

// pairingConfig writes a config file whose database holds a key for "den".
func pairingConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "bridge.db")

	db, err := database.Open(database.Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := pairing.NewSQLiteStore(db.DB).Save(context.Background(), "den", "den-key", "192.168.1.40"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	cfgPath := filepath.Join(dir, "config.yaml")
	content := "database:\n  path: \"" + dbPath + "\"\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestPairedAndUnpair(t *testing.T) {
	cfgPath := pairingConfig(t)

	out, err := executeCommand(testCLI(nil), "paired", "--config", cfgPath)
	if err != nil {
		t.Fatalf("paired failed: %v", err)
	}
	if !strings.Contains(out, "den") || !strings.Contains(out, "192.168.1.40") {
		t.Errorf("paired output = %q", out)
	}
	if strings.Contains(out, "den-key") {
		t.Error("paired must not print client keys")
	}

	out, err = executeCommand(testCLI(nil), "unpair", "den", "--config", cfgPath)
	if err != nil {
		t.Fatalf("unpair failed: %v", err)
	}
	if !strings.Contains(out, "pairing key for den deleted") {
		t.Errorf("unpair output = %q", out)
	}

	out, err = executeCommand(testCLI(nil), "paired", "--config", cfgPath)
	if err != nil || !strings.Contains(out, "No paired televisions.") {
		t.Errorf("paired after unpair = %q, %v", out, err)
	}

	_, err = executeCommand(testCLI(nil), "unpair", "den", "--config", cfgPath)
	if !errors.Is(err, pairing.ErrKeyNotFound) {
		t.Errorf("second unpair error = %v, want ErrKeyNotFound", err)
	}
}

func TestUnpair_RequiresDevice(t *testing.T) {
	if _, err := executeCommand(testCLI(nil), "unpair"); err == nil {
		t.Error("unpair without a device should fail")
	}
}
