package webos

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-webos/internal/discovery/ssdp"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/mqtt"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	handlers      map[string]mqtt.MessageHandler
	jsonTopics    []string
	unsubscribed  []string
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) PublishJSON(topic string, v any, retained bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.jsonTopics = append(m.jsonTopics, topic)
	m.mu.Unlock()
	return m.Publish(topic, data, 1, retained)
}

func (m *MockMQTTClient) GetJSONTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.jsonTopics...)
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

// Unsubscribe records topic but keeps its handler, so tests can deliver a
// message that was already in flight.
func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *MockMQTTClient) GetUnsubscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unsubscribed...)
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions
}

// SimulateMessage delivers payload on topic to the handler subscribed with
// filter.
func (m *MockMQTTClient) SimulateMessage(filter, topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[filter]
	m.mu.Unlock()
	if !ok {
		return errors.New("no subscription for " + filter)
	}
	return handler(topic, payload)
}

// waitPublished waits for a message on topic whose decoded payload satisfies match.
func (m *MockMQTTClient) waitPublished(t *testing.T, topic string, match func(map[string]any) bool) map[string]any {
	t.Helper()
	var found map[string]any
	waitFor(t, "publish on "+topic, func() bool {
		for _, p := range m.GetPublished() {
			if p.Topic != topic {
				continue
			}
			var msg map[string]any
			if err := json.Unmarshal(p.Payload, &msg); err != nil {
				continue
			}
			if match == nil || match(msg) {
				found = msg
				return true
			}
		}
		return false
	})
	return found
}

// mockKeyStore implements KeyStore in memory.
type mockKeyStore struct {
	mu        sync.Mutex
	keys      map[string]string
	addresses map[string]string
}

func newMockKeyStore() *mockKeyStore {
	return &mockKeyStore{keys: make(map[string]string), addresses: make(map[string]string)}
}

func (s *mockKeyStore) Get(_ context.Context, deviceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[deviceID], nil
}

func (s *mockKeyStore) Save(_ context.Context, deviceID, clientKey, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[deviceID] = clientKey
	s.addresses[deviceID] = address
	return nil
}

func (s *mockKeyStore) get(deviceID string) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[deviceID], s.addresses[deviceID]
}

// mockMetrics records command outcomes.
type mockMetrics struct {
	mu       sync.Mutex
	outcomes []string
	volumes  []int
	states   []string
	found    []string
}

func (m *mockMetrics) WriteCommandMetric(_, command string, _ time.Duration, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, command+":"+outcome)
}

func (m *mockMetrics) WriteVolume(_ string, volume int, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumes = append(m.volumes, volume)
}

func (m *mockMetrics) WriteSessionState(_, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func (m *mockMetrics) WriteDiscovery(deviceID, _, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.found = append(m.found, deviceID)
}

func (m *mockMetrics) outcomeList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outcomes...)
}

// mockFinder implements DeviceFinder.
type mockFinder struct {
	mu      sync.Mutex
	onDev   func(ssdp.Device)
	devices []ssdp.Device
}

func (f *mockFinder) SetOnDevice(fn func(ssdp.Device)) {
	f.mu.Lock()
	f.onDev = fn
	f.mu.Unlock()
}

func (f *mockFinder) Devices() []ssdp.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ssdp.Device(nil), f.devices...)
}

func (f *mockFinder) announce(dev ssdp.Device) {
	f.mu.Lock()
	f.devices = append(f.devices, dev)
	fn := f.onDev
	f.mu.Unlock()
	if fn != nil {
		fn(dev)
	}
}

type bridgeFixture struct {
	bridge  *Bridge
	mqtt    *MockMQTTClient
	dialer  *fakeDialer
	keys    *mockKeyStore
	metrics *mockMetrics
	finder  *mockFinder
}

func newBridgeFixture(t *testing.T, cfg config.WebOSConfig) *bridgeFixture {
	t.Helper()
	f := &bridgeFixture{
		mqtt:    NewMockMQTTClient(),
		dialer:  newFakeDialer(),
		keys:    newMockKeyStore(),
		metrics: &mockMetrics{},
		finder:  &mockFinder{},
	}
	b, err := NewBridge(BridgeOptions{
		Config:     cfg,
		Version:    "test",
		MQTTClient: f.mqtt,
		Dialer:     f.dialer,
		KeyStore:   f.keys,
		Metrics:    f.metrics,
		Finder:     f.finder,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	f.bridge = b
	return f
}

func (f *bridgeFixture) start(t *testing.T) {
	t.Helper()
	if err := f.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(f.bridge.Stop)
}

func (f *bridgeFixture) command(t *testing.T, deviceID, payload string) {
	t.Helper()
	topics := mqtt.Topics{}
	if err := f.mqtt.SimulateMessage(topics.AllCommands(), topics.Command(deviceID), []byte(payload)); err != nil {
		t.Fatalf("command rejected: %v", err)
	}
}

func livingRoom() config.WebOSConfig {
	return config.WebOSConfig{
		Enabled: true,
		Devices: []config.WebOSDeviceConfig{
			{ID: "living-room", Name: "Living Room", Address: "192.168.1.40"},
		},
	}
}

func ackFor(id string) func(map[string]any) bool {
	return func(m map[string]any) bool { return m["command_id"] == id }
}

func TestNewBridge_RequiresMQTT(t *testing.T) {
	if _, err := NewBridge(BridgeOptions{}); err == nil {
		t.Error("NewBridge() without MQTT client should fail")
	}
}

func TestBridge_StartSubscribes(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	f.start(t)

	subs := f.mqtt.GetSubscriptions()
	if len(subs) != 1 || subs[0].Topic != "graylogic/command/webos/+" || subs[0].QoS != 1 {
		t.Errorf("subscriptions = %+v", subs)
	}

	f.mqtt.waitPublished(t, "graylogic/health/webos", func(m map[string]any) bool { return m["status"] == "starting" })
	f.mqtt.waitPublished(t, "graylogic/health/webos", func(m map[string]any) bool {
		return m["status"] == "healthy" && m["devices_managed"] == float64(1)
	})

	sessions := f.bridge.Sessions()
	if len(sessions) != 1 || sessions[0].DeviceID != "living-room" || sessions[0].Name != "Living Room" {
		t.Errorf("Sessions() = %+v", sessions)
	}
	if f.dialer.dialCount() != 0 {
		t.Error("Start should not connect to televisions")
	}
}

func TestBridge_StoredKeyUsed(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	f.keys.keys["living-room"] = "stored-key"
	f.start(t)

	f.command(t, "living-room", `{"id":"c1","command":"turn_off"}`)
	tr := f.dialer.next(t)
	reg := tr.register(t, "stored-key")
	if key, _ := registerKey(t, reg); key != "stored-key" {
		t.Errorf("registration key = %q, want stored-key", key)
	}
}

func TestBridge_SetVolumeCommand(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	f.start(t)

	f.command(t, "living-room", `{"id":"cmd-1","command":"set_volume","parameters":{"volume":25}}`)

	tr := f.dialer.next(t)
	tr.register(t, "new-key")
	req := tr.nextFrame(t)
	if req.URI != URISetVolume || string(req.Payload) != `{"volume":25}` {
		t.Fatalf("request = %s %s", req.URI, req.Payload)
	}
	tr.respond(req.ID, `{"returnValue":true}`)

	ack := f.mqtt.waitPublished(t, "graylogic/ack/webos/living-room", ackFor("cmd-1"))
	if ack["status"] != "accepted" || ack["protocol"] != "webos" {
		t.Errorf("ack = %v", ack)
	}

	f.mqtt.waitPublished(t, "graylogic/state/webos/living-room", func(m map[string]any) bool {
		state, _ := m["state"].(map[string]any)
		return state["volume"] == float64(25)
	})
	f.mqtt.waitPublished(t, "graylogic/state/webos/living-room", func(m map[string]any) bool {
		state, _ := m["state"].(map[string]any)
		return state["connection"] == "connected"
	})

	waitFor(t, "key persisted", func() bool {
		key, addr := f.keys.get("living-room")
		return key == "new-key" && addr == "192.168.1.40"
	})

	waitFor(t, "metrics", func() bool {
		out := f.metrics.outcomeList()
		return len(out) == 1 && out[0] == "set_volume:ok"
	})
}

func TestBridge_GetVolumePublishesState(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	f.start(t)

	f.command(t, "living-room", `{"id":"cmd-2","command":"get_volume"}`)
	tr := f.dialer.next(t)
	tr.register(t, "k")
	req := tr.nextFrame(t)
	tr.respond(req.ID, `{"volume":8,"muted":true}`)

	ack := f.mqtt.waitPublished(t, "graylogic/ack/webos/living-room", ackFor("cmd-2"))
	result, _ := ack["result"].(map[string]any)
	if result["volume"] != float64(8) || result["muted"] != true {
		t.Errorf("result = %v", ack["result"])
	}
	f.mqtt.waitPublished(t, "graylogic/state/webos/living-room", func(m map[string]any) bool {
		state, _ := m["state"].(map[string]any)
		return state["volume"] == float64(8) && state["muted"] == true
	})
}

func TestBridge_CommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		deviceID string
		payload  string
		wantCode string
	}{
		{"unknown device", "bedroom", `{"id":"e1","command":"get_volume"}`, ErrCodeNotConfigured},
		{"unknown command", "living-room", `{"id":"e2","command":"dance"}`, ErrCodeInvalidCommand},
		{"missing volume", "living-room", `{"id":"e3","command":"set_volume"}`, ErrCodeInvalidCommand},
		{"fractional volume", "living-room", `{"id":"e4","command":"set_volume","parameters":{"volume":2.5}}`, ErrCodeInvalidCommand},
		{"volume out of range", "living-room", `{"id":"e5","command":"set_volume","parameters":{"volume":150}}`, ErrCodeInvalidCommand},
		{"mute not bool", "living-room", `{"id":"e6","command":"set_mute","parameters":{"mute":"yes"}}`, ErrCodeInvalidCommand},
		{"empty toast", "living-room", `{"id":"e7","command":"toast","parameters":{"message":""}}`, ErrCodeInvalidCommand},
		{"request without uri", "living-room", `{"id":"e8","command":"request"}`, ErrCodeInvalidCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBridgeFixture(t, livingRoom())
			f.start(t)

			f.command(t, tt.deviceID, tt.payload)

			var cmd CommandMessage
			if err := json.Unmarshal([]byte(tt.payload), &cmd); err != nil {
				t.Fatal(err)
			}
			ack := f.mqtt.waitPublished(t, "graylogic/ack/webos/"+tt.deviceID, ackFor(cmd.ID))
			if ack["status"] != "failed" {
				t.Errorf("status = %v, want failed", ack["status"])
			}
			errInfo, _ := ack["error"].(map[string]any)
			if errInfo["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", errInfo["code"], tt.wantCode)
			}
			if f.dialer.dialCount() != 0 {
				t.Error("rejected command should not connect")
			}
		})
	}
}

func TestBridge_DeviceErrorAck(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	f.start(t)

	f.command(t, "living-room", `{"id":"d1","command":"request","parameters":{"uri":"ssap://bogus/call","payload":{"a":1}}}`)
	tr := f.dialer.next(t)
	tr.register(t, "k")
	req := tr.nextFrame(t)
	if req.URI != "ssap://bogus/call" || string(req.Payload) != `{"a":1}` {
		t.Errorf("request = %s %s", req.URI, req.Payload)
	}
	tr.deliver(`{"id":` + string(req.ID) + `,"type":"error","error":"404 no such service or method"}`)

	ack := f.mqtt.waitPublished(t, "graylogic/ack/webos/living-room", ackFor("d1"))
	errInfo, _ := ack["error"].(map[string]any)
	if ack["status"] != "failed" || errInfo["code"] != ErrCodeDeviceError {
		t.Errorf("ack = %v", ack)
	}
	waitFor(t, "metrics", func() bool {
		out := f.metrics.outcomeList()
		return len(out) == 1 && out[0] == "request:device_error"
	})
}

func TestBridge_CommandIDAssigned(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	f.start(t)

	f.command(t, "bedroom", `{"command":"get_volume"}`)
	ack := f.mqtt.waitPublished(t, "graylogic/ack/webos/bedroom", nil)
	if id, _ := ack["command_id"].(string); len(id) != 36 {
		t.Errorf("command_id = %v, want a UUID", ack["command_id"])
	}
}

func TestBridge_MalformedCommand(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	f.start(t)

	topics := mqtt.Topics{}
	err := f.mqtt.SimulateMessage(topics.AllCommands(), topics.Command("living-room"), []byte(`{`))
	if !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("handler error = %v, want ErrInvalidCommand", err)
	}
	for _, topic := range []string{
		"graylogic/state/webos/living-room",
		"graylogic/command/knx/living-room",
		"graylogic/command/webos",
	} {
		if err := f.mqtt.SimulateMessage(topics.AllCommands(), topic, []byte(`{}`)); err == nil {
			t.Errorf("topic %q should be rejected", topic)
		}
	}
}

func TestBridge_AcksPublishedAsJSON(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	f.start(t)

	f.command(t, "ghost", `{"id":"c-json","command":"get_volume"}`)
	f.mqtt.waitPublished(t, "graylogic/ack/webos/ghost", ackFor("c-json"))

	var found bool
	for _, topic := range f.mqtt.GetJSONTopics() {
		if topic == "graylogic/ack/webos/ghost" {
			found = true
		}
	}
	if !found {
		t.Errorf("ack not sent through PublishJSON; topics = %v", f.mqtt.GetJSONTopics())
	}
}

func TestBridge_CommandAfterStop(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	if err := f.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.bridge.Stop()

	if got := f.mqtt.GetUnsubscribed(); len(got) != 1 || got[0] != "graylogic/command/webos/+" {
		t.Errorf("unsubscribed = %v", got)
	}

	topics := mqtt.Topics{}
	err := f.mqtt.SimulateMessage(topics.AllCommands(), topics.Command("living-room"), []byte(`{"id":"late","command":"get_volume"}`))
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("handler error = %v, want ErrCancelled", err)
	}
}

func TestBridge_CommandsRacingStop(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	if err := f.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	topics := mqtt.Topics{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = f.mqtt.SimulateMessage(topics.AllCommands(), topics.Command("ghost"), []byte(`{"command":"get_volume"}`))
			}
		}()
	}
	f.bridge.Stop()
	wg.Wait()
}

func TestBridge_DiscoveryFollowsAddress(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	f.start(t)

	found := make(chan DiscoveredInfo, 1)
	f.bridge.SetOnDiscovered(func(info DiscoveredInfo) { found <- info })

	f.finder.announce(ssdp.Device{
		ID:           "living-room",
		Address:      "192.168.1.77",
		FriendlyName: "[LG] webOS TV",
		ModelName:    "OLED55C1",
	})

	select {
	case info := <-found:
		if !info.Managed || info.Address != "192.168.1.77" {
			t.Errorf("info = %+v", info)
		}
	case <-time.After(testWait):
		t.Fatal("discovery callback not called")
	}

	sessions := f.bridge.Sessions()
	if sessions[0].Stats.Address != "192.168.1.77" {
		t.Errorf("session address = %s, want 192.168.1.77", sessions[0].Stats.Address)
	}

	msg := f.mqtt.waitPublished(t, "graylogic/discovery/webos", nil)
	devices, _ := msg["devices"].([]any)
	if len(devices) != 1 {
		t.Fatalf("discovery message = %v", msg)
	}
}

func TestBridge_DiscoveryAutoAdopt(t *testing.T) {
	tests := []struct {
		name      string
		autoAdopt bool
		wantCount int
	}{
		{"adopt", true, 2},
		{"announce only", false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := livingRoom()
			cfg.Discovery.AutoAdopt = tt.autoAdopt
			f := newBridgeFixture(t, cfg)
			f.start(t)

			f.finder.announce(ssdp.Device{ID: "bedroom-uuid", Address: "192.168.1.90", FriendlyName: "Bedroom"})

			sessions := f.bridge.Sessions()
			if len(sessions) != tt.wantCount {
				t.Fatalf("Sessions() = %+v", sessions)
			}
			if tt.autoAdopt {
				if sessions[0].DeviceID != "bedroom-uuid" || !sessions[0].Adopted || sessions[0].Name != "Bedroom" {
					t.Errorf("adopted session = %+v", sessions[0])
				}
			}

			discovered := f.bridge.Discovered()
			if len(discovered) != 1 || discovered[0].Managed != tt.autoAdopt {
				t.Errorf("Discovered() = %+v", discovered)
			}
		})
	}
}

func TestBridge_Request(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	f.start(t)

	if _, err := f.bridge.Request(context.Background(), "nope", URIGetVolume, nil, 0); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Request(unknown) error = %v", err)
	}

	done := make(chan requestResult, 1)
	go func() {
		p, err := f.bridge.Request(context.Background(), "living-room", URIGetVolume, nil, time.Second)
		done <- requestResult{payload: p, err: err}
	}()
	tr := f.dialer.next(t)
	tr.register(t, "k")
	req := tr.nextFrame(t)
	tr.respond(req.ID, `{"volume":1}`)

	res := awaitResult(t, done)
	if res.err != nil || string(res.payload) != `{"volume":1}` {
		t.Errorf("Request() = %s, %v", res.payload, res.err)
	}
}

func TestBridge_StateCallback(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	f.start(t)

	var mu sync.Mutex
	var seen []string
	f.bridge.SetOnStateChange(func(deviceID string, _, to State) {
		mu.Lock()
		seen = append(seen, deviceID+":"+to.String())
		mu.Unlock()
	})

	go f.bridge.Request(context.Background(), "living-room", URIGetVolume, nil, 0) //nolint:errcheck // Only state is checked
	tr := f.dialer.next(t)
	tr.register(t, "k")

	waitFor(t, "connected callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range seen {
			if s == "living-room:connected" {
				return true
			}
		}
		return false
	})
}

func TestBridge_StopClosesSessions(t *testing.T) {
	f := newBridgeFixture(t, livingRoom())
	if err := f.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan requestResult, 1)
	go func() {
		p, err := f.bridge.Request(context.Background(), "living-room", URIGetVolume, nil, 0)
		done <- requestResult{payload: p, err: err}
	}()
	tr := f.dialer.next(t)
	tr.register(t, "k")
	tr.nextFrame(t)

	f.bridge.Stop()
	f.bridge.Stop()

	if res := awaitResult(t, done); !errors.Is(res.err, ErrCancelled) {
		t.Errorf("in-flight request error = %v, want ErrCancelled", res.err)
	}
	if !tr.isClosed() {
		t.Error("Stop should close television connections")
	}
	f.mqtt.waitPublished(t, "graylogic/health/webos", func(m map[string]any) bool { return m["status"] == "stopping" })
	if len(f.bridge.Sessions()) != 0 {
		t.Error("Sessions() should be empty after Stop")
	}
}

func TestParams(t *testing.T) {
	params := map[string]any{
		"f":   float64(3),
		"i":   7,
		"n":   json.Number("9"),
		"s":   "text",
		"b":   true,
		"bad": 1.5,
	}
	for key, want := range map[string]int{"f": 3, "i": 7, "n": 9} {
		if got, err := intParam(params, key); err != nil || got != want {
			t.Errorf("intParam(%s) = %d, %v", key, got, err)
		}
	}
	if _, err := intParam(params, "bad"); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("intParam(bad) error = %v", err)
	}
	if _, err := intParam(params, "s"); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("intParam(s) error = %v", err)
	}
	if v, err := stringParam(params, "s"); err != nil || v != "text" {
		t.Errorf("stringParam(s) = %q, %v", v, err)
	}
	if _, err := stringParam(params, "missing"); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("stringParam(missing) error = %v", err)
	}
	if v, err := boolParam(params, "b"); err != nil || !v {
		t.Errorf("boolParam(b) = %v, %v", v, err)
	}
	if _, err := boolParam(nil, "b"); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("boolParam(nil) error = %v", err)
	}
}
