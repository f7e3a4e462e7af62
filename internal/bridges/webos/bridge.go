package webos

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-webos/internal/discovery/ssdp"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	// storeTimeout bounds key store calls made from session callbacks.
	storeTimeout = 5 * time.Second

	defaultBridgeID = "webos"
)

// Bridge connects Gray Logic Core to LG televisions. It handles:
//   - Commands from Core via MQTT, executed through one Session per television
//   - Acknowledgments and state updates back to MQTT
//   - Pairing key persistence and SSDP discovery announcements
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg      config.WebOSConfig
	bridgeID string
	mqtt     MQTTClient
	dialer   Dialer
	keys     KeyStore
	metrics  Metrics
	finder   DeviceFinder
	health   *HealthReporter
	topics   mqtt.Topics

	sessions   map[string]*tvSession
	sessionsMu sync.RWMutex

	callbackMu   sync.RWMutex
	onState      func(deviceID string, from, to State)
	onDiscovered func(DiscoveredInfo)

	// Shutdown coordination. stopped is set under stopMu before wg.Wait so
	// no command goroutine is added after Stop starts waiting.
	wg        sync.WaitGroup
	stopMu    sync.Mutex
	stopped   bool
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	logger   Logger
	loggerMu sync.RWMutex
}

type tvSession struct {
	id      string
	name    string
	adopted bool
	session *Session
	remote  *Remote
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// KeyStore persists pairing keys. Satisfied by *pairing.SQLiteStore.
type KeyStore interface {
	Get(ctx context.Context, deviceID string) (string, error)
	Save(ctx context.Context, deviceID, clientKey, address string) error
}

// Metrics records telemetry. Satisfied by *influxdb.Client.
type Metrics interface {
	WriteCommandMetric(deviceID, command string, latency time.Duration, outcome string)
	WriteVolume(deviceID string, volume int, muted bool)
	WriteSessionState(deviceID, state string)
	WriteDiscovery(deviceID, address, model string)
}

// DeviceFinder reports televisions found on the network.
// Satisfied by *ssdp.Listener.
type DeviceFinder interface {
	SetOnDevice(fn func(ssdp.Device))
	Devices() []ssdp.Device
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the webos section of the loaded configuration.
	Config config.WebOSConfig

	// BridgeID names the bridge in health and discovery messages.
	// Default: "webos".
	BridgeID string

	// Version is reported in health messages.
	Version string

	// HealthInterval is how often health is published. Default: 30s.
	HealthInterval time.Duration

	MQTTClient MQTTClient

	// Dialer opens television connections. Default: &WSDialer{}.
	Dialer Dialer

	// KeyStore is optional. Without it new keys live only in memory.
	KeyStore KeyStore

	// Metrics is optional.
	Metrics Metrics

	// Finder is optional SSDP discovery.
	Finder DeviceFinder

	// Logger is optional structured logger.
	Logger Logger
}

// SessionInfo describes one managed television for the API.
type SessionInfo struct {
	DeviceID string       `json:"device_id"`
	Name     string       `json:"name,omitempty"`
	Adopted  bool         `json:"adopted"`
	Stats    SessionStats `json:"stats"`
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	bridgeID := opts.BridgeID
	if bridgeID == "" {
		bridgeID = defaultBridgeID
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &WSDialer{}
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       opts.Config,
		bridgeID:  bridgeID,
		mqtt:      opts.MQTTClient,
		dialer:    dialer,
		keys:      opts.KeyStore,
		metrics:   opts.Metrics,
		finder:    opts.Finder,
		sessions:  make(map[string]*tvSession),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:   bridgeID,
		Version:    opts.Version,
		Interval:   opts.HealthInterval,
		Publisher:  opts.MQTTClient,
		Sessions:   b.sessionStats,
		Discovered: b.discoveredCount,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start creates the configured sessions, subscribes to commands and starts
// health reporting. Sessions connect lazily on their first command.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	for _, dev := range b.cfg.Devices {
		if err := b.addSession(ctx, dev, false); err != nil {
			return fmt.Errorf("creating session for %s: %w", dev.ID, err)
		}
	}

	commandTopic := b.topics.AllCommands()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	if b.finder != nil {
		b.finder.SetOnDevice(b.handleDiscovered)
	}

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started",
		"bridge_id", b.bridgeID,
		"devices", len(b.cfg.Devices),
		"auto_adopt", b.cfg.Discovery.AutoAdopt)
	return nil
}

// Stop gracefully shuts down the bridge. In-flight commands are cancelled
// and every session is closed.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.stopMu.Lock()
		b.stopped = true
		b.stopMu.Unlock()

		if err := b.mqtt.Unsubscribe(b.topics.AllCommands()); err != nil {
			b.logError("failed to unsubscribe from commands", err)
		}
		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()

		b.sessionsMu.Lock()
		sessions := b.sessions
		b.sessions = make(map[string]*tvSession)
		b.sessionsMu.Unlock()

		for _, ts := range sessions {
			ts.session.Close() //nolint:errcheck // Close never fails
		}
		b.logInfo("bridge stopped")
	})
}

// addSession builds the session for dev. The stored key takes precedence
// over the one in the YAML file.
func (b *Bridge) addSession(ctx context.Context, dev config.WebOSDeviceConfig, adopted bool) error {
	b.sessionsMu.RLock()
	_, exists := b.sessions[dev.ID]
	b.sessionsMu.RUnlock()
	if exists {
		return nil
	}

	var storedKey string
	if b.keys != nil {
		key, err := b.keys.Get(ctx, dev.ID)
		if err != nil {
			b.logError("failed to load pairing key", err)
		}
		storedKey = key
	}

	s, err := NewSession(SessionConfigFromConfig(dev, b.cfg.Session, storedKey), b.dialer)
	if err != nil {
		return err
	}
	if logger := b.getLogger(); logger != nil {
		s.SetLogger(logger)
	}

	id := dev.ID
	s.SetOnKeyChange(func(key string) { b.saveKey(id, key) })
	s.SetOnStateChange(func(from, to State) { b.handleSessionState(id, from, to) })
	s.SetOnPairingPrompt(func() {
		address, _ := s.Address()
		b.publishState(id, address, map[string]any{"pairing": "prompt"})
	})

	ts := &tvSession{id: id, name: dev.Name, adopted: adopted, session: s, remote: NewRemote(s)}

	b.sessionsMu.Lock()
	if _, exists := b.sessions[id]; exists {
		b.sessionsMu.Unlock()
		s.Close() //nolint:errcheck // Lost the race, discard
		return nil
	}
	b.sessions[id] = ts
	b.sessionsMu.Unlock()

	b.logInfo("television session created",
		"device_id", id,
		"address", dev.Address,
		"paired", s.ClientKey() != "",
		"adopted", adopted)
	return nil
}

func (b *Bridge) lookup(deviceID string) (*tvSession, error) {
	b.sessionsMu.RLock()
	defer b.sessionsMu.RUnlock()
	ts, ok := b.sessions[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return ts, nil
}

func (b *Bridge) saveKey(deviceID, key string) {
	if b.keys == nil {
		return
	}
	var address string
	if ts, err := b.lookup(deviceID); err == nil {
		address, _ = ts.session.Address()
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := b.keys.Save(ctx, deviceID, key, address); err != nil {
		b.logError("failed to persist pairing key", err)
		return
	}
	b.logInfo("pairing key stored", "device_id", deviceID)
}

func (b *Bridge) handleSessionState(deviceID string, from, to State) {
	var address string
	if ts, err := b.lookup(deviceID); err == nil {
		address, _ = ts.session.Address()
	}
	b.publishState(deviceID, address, map[string]any{"connection": to.String()})
	if b.metrics != nil {
		b.metrics.WriteSessionState(deviceID, to.String())
	}

	b.callbackMu.RLock()
	cb := b.onState
	b.callbackMu.RUnlock()
	if cb != nil {
		cb(deviceID, from, to)
	}
}

// handleMQTTMessage routes incoming MQTT messages to appropriate handlers.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) error {
	deviceID := mqtt.DeviceFromTopic(topic)
	if deviceID == "" || topic != b.topics.Command(deviceID) {
		return fmt.Errorf("unexpected topic %q", topic)
	}

	cmd, err := decodeCommand(payload)
	if err != nil {
		return fmt.Errorf("%w: parsing command: %w", ErrInvalidCommand, err)
	}
	cmd.DeviceID = deviceID
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	// Commands can wait for a connect or pairing, so they run off the MQTT
	// callback goroutine.
	b.stopMu.Lock()
	if b.stopped {
		b.stopMu.Unlock()
		return ErrCancelled
	}
	b.wg.Add(1)
	b.stopMu.Unlock()

	go func() {
		defer b.wg.Done()
		b.handleCommand(cmd)
	}()
	return nil
}

// handleCommand executes a command and publishes its acknowledgment.
func (b *Bridge) handleCommand(cmd CommandMessage) {
	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	ts, err := b.lookup(cmd.DeviceID)
	if err != nil {
		b.publishAck(NewAckError(cmd, err))
		return
	}

	start := time.Now()
	result, err := b.executeCommand(b.ctx, ts, cmd)
	latency := time.Since(start)

	if b.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = strings.ToLower(ErrorCode(err))
		}
		b.metrics.WriteCommandMetric(cmd.DeviceID, cmd.Command, latency, outcome)
	}

	if err != nil {
		b.logError("command execution failed", err)
		b.publishAck(NewAckError(cmd, err))
		return
	}
	b.publishAck(NewAckMessage(cmd, result))
}

// executeCommand maps a command onto the Remote catalog and publishes any
// state it learns.
func (b *Bridge) executeCommand(ctx context.Context, ts *tvSession, cmd CommandMessage) (any, error) {
	rm := ts.remote
	address, _ := ts.session.Address()

	switch cmd.Command {
	case CommandGetVolume:
		v, err := rm.GetVolume(ctx)
		if err != nil {
			return nil, err
		}
		b.publishState(ts.id, address, map[string]any{"volume": v.Level, "muted": v.Muted})
		if b.metrics != nil {
			b.metrics.WriteVolume(ts.id, v.Level, v.Muted)
		}
		return v, nil

	case CommandSetVolume:
		level, err := intParam(cmd.Parameters, "volume")
		if err != nil {
			return nil, err
		}
		if err := rm.SetVolume(ctx, level); err != nil {
			return nil, err
		}
		b.publishState(ts.id, address, map[string]any{"volume": level})
		return nil, nil

	case CommandGetMute:
		muted, err := rm.GetMute(ctx)
		if err != nil {
			return nil, err
		}
		b.publishState(ts.id, address, map[string]any{"muted": muted})
		return map[string]any{"muted": muted}, nil

	case CommandSetMute:
		muted, err := boolParam(cmd.Parameters, "mute")
		if err != nil {
			return nil, err
		}
		if err := rm.SetMute(ctx, muted); err != nil {
			return nil, err
		}
		b.publishState(ts.id, address, map[string]any{"muted": muted})
		return nil, nil

	case CommandToast:
		message, err := stringParam(cmd.Parameters, "message")
		if err != nil {
			return nil, err
		}
		toastID, err := rm.CreateToast(ctx, message)
		if err != nil {
			return nil, err
		}
		return map[string]any{"toast_id": toastID}, nil

	case CommandGetChannels:
		return rm.GetChannels(ctx)

	case CommandGetChannel:
		return rm.GetCurrentChannel(ctx)

	case CommandSetChannel:
		channelID, err := stringParam(cmd.Parameters, "channel_id")
		if err != nil {
			return nil, err
		}
		return nil, rm.SetChannel(ctx, channelID)

	case CommandGetInputs:
		return rm.GetInputs(ctx)

	case CommandSetInput:
		inputID, err := stringParam(cmd.Parameters, "input_id")
		if err != nil {
			return nil, err
		}
		return nil, rm.SetInput(ctx, inputID)

	case CommandListApps:
		return rm.ListApps(ctx)

	case CommandLaunchApp:
		appID, err := stringParam(cmd.Parameters, "app_id")
		if err != nil {
			return nil, err
		}
		params, _ := cmd.Parameters["params"].(map[string]any)
		return rm.LaunchApp(ctx, appID, params)

	case CommandCloseApp:
		appID, err := stringParam(cmd.Parameters, "app_id")
		if err != nil {
			return nil, err
		}
		return nil, rm.CloseApp(ctx, appID)

	case CommandTurnOff:
		return nil, rm.TurnOff(ctx)

	case CommandSoftware:
		return rm.GetSoftwareInfo(ctx)

	case CommandRequest:
		uri, err := stringParam(cmd.Parameters, "uri")
		if err != nil {
			return nil, err
		}
		return ts.session.Request(ctx, uri, cmd.Parameters["payload"])

	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, cmd.Command)
	}
}

// handleDiscovered announces a television found by SSDP, adopts it when
// configured to, and follows address changes of known televisions.
func (b *Bridge) handleDiscovered(dev ssdp.Device) {
	ts, err := b.lookup(dev.ID)
	switch {
	case err == nil:
		b.followAddress(ts, dev.Address)
	case b.cfg.Discovery.AutoAdopt:
		adopt := config.WebOSDeviceConfig{
			ID:      dev.ID,
			Name:    dev.FriendlyName,
			Address: dev.Address,
			Port:    DefaultPort,
		}
		if err := b.addSession(b.ctx, adopt, true); err != nil {
			b.logError("failed to adopt discovered television", err)
		}
	}

	_, lookupErr := b.lookup(dev.ID)
	info := discoveredInfo(dev, lookupErr == nil)

	msg := DiscoveryMessage{
		Timestamp: time.Now().UTC(),
		Bridge:    b.bridgeID,
		Devices:   []DiscoveredInfo{info},
	}
	if err := b.publishJSON(b.topics.Discovery(), msg, false); err != nil {
		b.logError("failed to publish discovery", err)
	}
	if b.metrics != nil {
		b.metrics.WriteDiscovery(dev.ID, dev.Address, dev.ModelName)
	}

	b.callbackMu.RLock()
	cb := b.onDiscovered
	b.callbackMu.RUnlock()
	if cb != nil {
		cb(info)
	}
}

// followAddress moves a session to a new DHCP lease. Sessions that are busy
// keep their address until the next discovery.
func (b *Bridge) followAddress(ts *tvSession, address string) {
	current, port := ts.session.Address()
	if address == "" || address == current {
		return
	}
	if err := ts.session.SetAddress(address, port); err != nil {
		b.logDebug("television address change deferred",
			"device_id", ts.id, "from", current, "to", address, "error", err)
		return
	}
	b.logInfo("television address changed", "device_id", ts.id, "from", current, "to", address)
}

func discoveredInfo(dev ssdp.Device, managed bool) DiscoveredInfo {
	return DiscoveredInfo{
		DeviceID:     dev.ID,
		Address:      dev.Address,
		FriendlyName: dev.FriendlyName,
		Manufacturer: dev.Manufacturer,
		ModelName:    dev.ModelName,
		ModelNumber:  dev.ModelNumber,
		Managed:      managed,
	}
}

// Request sends a raw SSAP request to a managed television. A timeout of
// zero uses the session default.
func (b *Bridge) Request(ctx context.Context, deviceID, uri string, payload any, timeout time.Duration) (json.RawMessage, error) {
	ts, err := b.lookup(deviceID)
	if err != nil {
		return nil, err
	}
	return ts.session.RequestWithTimeout(ctx, uri, payload, timeout)
}

// Sessions lists the managed televisions ordered by device ID.
func (b *Bridge) Sessions() []SessionInfo {
	b.sessionsMu.RLock()
	out := make([]SessionInfo, 0, len(b.sessions))
	for _, ts := range b.sessions {
		out = append(out, SessionInfo{
			DeviceID: ts.id,
			Name:     ts.name,
			Adopted:  ts.adopted,
			Stats:    ts.session.Stats(),
		})
	}
	b.sessionsMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Discovered lists televisions found by SSDP ordered by device ID.
func (b *Bridge) Discovered() []DiscoveredInfo {
	if b.finder == nil {
		return []DiscoveredInfo{}
	}
	devices := b.finder.Devices()
	out := make([]DiscoveredInfo, 0, len(devices))
	for _, d := range devices {
		_, err := b.lookup(d.ID)
		out = append(out, discoveredInfo(d, err == nil))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// SetOnStateChange registers a callback for session state transitions.
func (b *Bridge) SetOnStateChange(fn func(deviceID string, from, to State)) {
	b.callbackMu.Lock()
	b.onState = fn
	b.callbackMu.Unlock()
}

// SetOnDiscovered registers a callback for televisions found by SSDP.
func (b *Bridge) SetOnDiscovered(fn func(DiscoveredInfo)) {
	b.callbackMu.Lock()
	b.onDiscovered = fn
	b.callbackMu.Unlock()
}

func (b *Bridge) sessionStats() map[string]SessionStats {
	b.sessionsMu.RLock()
	defer b.sessionsMu.RUnlock()
	out := make(map[string]SessionStats, len(b.sessions))
	for id, ts := range b.sessions {
		out[id] = ts.session.Stats()
	}
	return out
}

func (b *Bridge) discoveredCount() int {
	if b.finder == nil {
		return 0
	}
	return len(b.finder.Devices())
}

// --- publishing ---

func (b *Bridge) publishAck(ack AckMessage) {
	if err := b.publishJSON(b.topics.Ack(ack.DeviceID), ack, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

func (b *Bridge) publishState(deviceID, address string, state map[string]any) {
	msg := NewStateMessage(deviceID, address, state)
	if err := b.publishJSON(b.topics.State(deviceID), msg, true); err != nil {
		b.logError("failed to publish state", err)
	}
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) error {
	return b.mqtt.PublishJSON(topic, v, retained)
}

// --- parameters ---

func stringParam(params map[string]any, name string) (string, error) {
	v, ok := params[name].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: parameter %q must be a non-empty string", ErrInvalidCommand, name)
	}
	return v, nil
}

func intParam(params map[string]any, name string) (int, error) {
	switch v := params[name].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%w: parameter %q must be an integer", ErrInvalidCommand, name)
		}
		return int(v), nil
	case int:
		return v, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: parameter %q: %w", ErrInvalidCommand, name, err)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: parameter %q must be a number", ErrInvalidCommand, name)
	}
}

func boolParam(params map[string]any, name string) (bool, error) {
	v, ok := params[name].(bool)
	if !ok {
		return false, fmt.Errorf("%w: parameter %q must be a boolean", ErrInvalidCommand, name)
	}
	return v, nil
}

// --- logging ---

// SetLogger sets the logger for the bridge and its sessions.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.health.SetLogger(logger)
	b.sessionsMu.RLock()
	for _, ts := range b.sessions {
		ts.session.SetLogger(logger)
	}
	b.sessionsMu.RUnlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
