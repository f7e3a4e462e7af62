package ssdp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/config"
)

// Defaults for the webOS second-screen service.
const (
	DefaultMulticastAddr = "239.255.255.250:1900"
	DefaultSearchTarget  = "urn:lge-com:service:webos-second-screen:1"
	DefaultServiceMarker = "webos"
	DefaultUserAgent     = "iOS/5.0 UDAP/2.0 iPhone/4"
	DefaultInterval      = 30 * time.Second
	DefaultMX            = 5
	DefaultFetchTimeout  = 5 * time.Second

	maxDatagramSize    = 8192
	maxDescriptionSize = 1 << 20
)

// Logger is the structured logger used by the listener.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config holds listener settings.
type Config struct {
	// Interval between probes. The first probe is sent on Start.
	Interval time.Duration

	SearchTarget string

	// ServiceMarker must appear (case-insensitively) in a response for it
	// to be considered.
	ServiceMarker string

	MX        int
	UserAgent string

	// FetchTimeout bounds each description download.
	FetchTimeout time.Duration

	// StrictDescription selects XMLParser instead of TagParser.
	StrictDescription bool

	// MulticastAddr is where probes are sent.
	MulticastAddr string

	// BindAddr is the local UDP address. Empty binds an ephemeral port on
	// all interfaces.
	BindAddr string
}

// DefaultConfig returns the settings for webOS televisions.
func DefaultConfig() Config {
	return Config{
		Interval:      DefaultInterval,
		SearchTarget:  DefaultSearchTarget,
		ServiceMarker: DefaultServiceMarker,
		MX:            DefaultMX,
		UserAgent:     DefaultUserAgent,
		FetchTimeout:  DefaultFetchTimeout,
		MulticastAddr: DefaultMulticastAddr,
		BindAddr:      "0.0.0.0:0",
	}
}

// ConfigFromConfig converts the YAML discovery section.
func ConfigFromConfig(c config.WebOSDiscoveryConfig) Config {
	cfg := DefaultConfig()
	if c.Interval > 0 {
		cfg.Interval = c.Interval
	}
	if c.SearchTarget != "" {
		cfg.SearchTarget = c.SearchTarget
	}
	if c.ServiceMarker != "" {
		cfg.ServiceMarker = c.ServiceMarker
	}
	if c.MX > 0 {
		cfg.MX = c.MX
	}
	if c.FetchTimeout > 0 {
		cfg.FetchTimeout = c.FetchTimeout
	}
	cfg.StrictDescription = c.StrictDescription
	return cfg
}

// Device is a television found on the network. It is never modified after
// it has been reported.
type Device struct {
	ID           string    `json:"id"`
	Address      string    `json:"address"`
	Location     string    `json:"location"`
	FriendlyName string    `json:"friendly_name"`
	ModelName    string    `json:"model_name"`
	ModelNumber  string    `json:"model_number,omitempty"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	DeviceType   string    `json:"device_type,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Listener probes for televisions and reports each one once per scan.
type Listener struct {
	cfg    Config
	client *http.Client

	mu       sync.Mutex
	parser   DescriptionParser
	conn     net.PacketConn
	scanning bool
	// run identifies the current scan; work from an earlier scan is dropped.
	run      uint64
	cancel   context.CancelFunc
	seen     map[string]struct{}
	emitted  map[string]struct{}
	devices  map[string]Device
	onDevice func(Device)

	wg sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex
}

// NewListener creates an idle listener. Zero fields in cfg take defaults.
func NewListener(cfg Config) *Listener {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.SearchTarget == "" {
		cfg.SearchTarget = def.SearchTarget
	}
	if cfg.ServiceMarker == "" {
		cfg.ServiceMarker = def.ServiceMarker
	}
	if cfg.MX <= 0 {
		cfg.MX = def.MX
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.MulticastAddr == "" {
		cfg.MulticastAddr = def.MulticastAddr
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = def.BindAddr
	}

	var parser DescriptionParser = TagParser{}
	if cfg.StrictDescription {
		parser = XMLParser{}
	}

	return &Listener{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		parser:  parser,
		seen:    make(map[string]struct{}),
		emitted: make(map[string]struct{}),
		devices: make(map[string]Device),
	}
}

// Start binds the socket and begins probing. Calling Start while scanning
// is a no-op. The scan ends when ctx is cancelled or Stop is called.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.scanning {
		return nil
	}

	group, err := net.ResolveUDPAddr("udp4", l.cfg.MulticastAddr)
	if err != nil {
		return fmt.Errorf("%w: resolving %s: %w", ErrBindFailed, l.cfg.MulticastAddr, err)
	}
	conn, err := net.ListenPacket("udp4", l.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBindFailed, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.run++
	l.conn = conn
	l.cancel = cancel
	l.scanning = true
	l.seen = make(map[string]struct{})
	l.emitted = make(map[string]struct{})

	run := l.run
	l.wg.Add(2)
	go l.readLoop(runCtx, run, conn)
	go l.probeLoop(runCtx, run, conn, group)

	l.logInfo("ssdp discovery started", "local", conn.LocalAddr().String(), "target", l.cfg.SearchTarget)
	return nil
}

// Stop closes the socket and waits for the listener goroutines. Results of
// description fetches still in flight are discarded. Safe to call when idle.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.scanning {
		l.mu.Unlock()
		return
	}
	l.scanning = false
	l.run++
	cancel, conn := l.cancel, l.conn
	l.cancel, l.conn = nil, nil
	l.mu.Unlock()

	cancel()
	_ = conn.Close() //nolint:errcheck // Unblocks the read loop
	l.wg.Wait()
	l.logInfo("ssdp discovery stopped")
}

// Scanning reports whether the listener is active.
func (l *Listener) Scanning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scanning
}

// Devices returns every television discovered since the listener was created.
func (l *Listener) Devices() []Device {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Device, 0, len(l.devices))
	for _, d := range l.devices {
		out = append(out, d)
	}
	return out
}

// Device returns the television with the given ID.
func (l *Listener) Device(id string) (Device, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return d, nil
}

// SetOnDevice registers the callback invoked for each newly found device.
// It runs on a listener goroutine.
func (l *Listener) SetOnDevice(fn func(Device)) {
	l.mu.Lock()
	l.onDevice = fn
	l.mu.Unlock()
}

// SetParser replaces the description parser. The default is TagParser.
func (l *Listener) SetParser(p DescriptionParser) {
	l.mu.Lock()
	l.parser = p
	l.mu.Unlock()
}

// SetLogger sets the logger for the listener.
func (l *Listener) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

func (l *Listener) probeLoop(ctx context.Context, run uint64, conn net.PacketConn, group net.Addr) {
	defer l.wg.Done()

	probe := BuildSearchRequest(l.cfg.MulticastAddr, l.cfg.SearchTarget, l.cfg.MX, l.cfg.UserAgent)
	send := func() {
		if _, err := conn.WriteTo(probe, group); err != nil {
			if ctx.Err() == nil {
				l.logWarn("sending ssdp probe failed", "error", err)
			}
			return
		}
		l.logDebug("ssdp probe sent", "group", group.String())
	}

	send()
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.endRun(run, conn, ctx.Err())
			return
		case <-ticker.C:
			send()
		}
	}
}

// endRun ends a scan whose context was cancelled without Stop.
func (l *Listener) endRun(run uint64, conn net.PacketConn, reason error) {
	l.mu.Lock()
	if !l.scanning || run != l.run {
		l.mu.Unlock()
		return
	}
	l.scanning = false
	l.run++
	cancel := l.cancel
	l.cancel, l.conn = nil, nil
	l.mu.Unlock()

	cancel()
	_ = conn.Close() //nolint:errcheck // Unblocks the read loop
	l.logInfo("ssdp discovery stopped", "reason", reason)
}

func (l *Listener) readLoop(ctx context.Context, run uint64, conn net.PacketConn) {
	defer l.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				l.logError("ssdp read failed", "error", err)
			}
			return
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		l.handleDatagram(ctx, run, datagram, addr)
	}
}

// handleDatagram filters, deduplicates and schedules a description fetch
// for one probe response.
func (l *Listener) handleDatagram(ctx context.Context, run uint64, datagram []byte, addr net.Addr) {
	if !bytes.Contains(bytes.ToLower(datagram), bytes.ToLower([]byte(l.cfg.ServiceMarker))) {
		return
	}
	host := hostOf(addr)

	l.mu.Lock()
	if !l.scanning || run != l.run {
		l.mu.Unlock()
		return
	}
	if _, dup := l.seen[host]; dup {
		l.mu.Unlock()
		return
	}
	l.seen[host] = struct{}{}
	l.mu.Unlock()

	location := ParseHeaders(string(datagram)).Get("Location")
	if location == "" {
		l.logDebug("ssdp response without location", "address", host)
		l.release(run, host)
		return
	}

	l.wg.Add(1)
	go l.fetch(ctx, run, host, location)
}

func (l *Listener) fetch(ctx context.Context, run uint64, host, location string) {
	defer l.wg.Done()

	body, err := l.fetchDescription(ctx, location)
	if err != nil {
		if ctx.Err() == nil {
			l.logWarn("skipping device", "address", host, "error", err)
		}
		l.release(run, host)
		return
	}

	l.mu.Lock()
	parser := l.parser
	l.mu.Unlock()

	desc, err := parser.Parse(body)
	if err != nil {
		l.logWarn("skipping device", "address", host, "location", location, "error", err)
		l.release(run, host)
		return
	}

	dev := Device{
		ID:           desc.DeviceID(),
		Address:      host,
		Location:     location,
		FriendlyName: desc.FriendlyName,
		ModelName:    desc.ModelName,
		ModelNumber:  desc.ModelNumber,
		Manufacturer: desc.Manufacturer,
		DeviceType:   desc.DeviceType,
		DiscoveredAt: time.Now().UTC(),
	}

	l.mu.Lock()
	if !l.scanning || run != l.run {
		l.mu.Unlock()
		return
	}
	if _, dup := l.emitted[dev.ID]; dup {
		l.mu.Unlock()
		return
	}
	l.emitted[dev.ID] = struct{}{}
	l.devices[dev.ID] = dev
	cb := l.onDevice
	l.mu.Unlock()

	l.logInfo("discovered television", "device_id", dev.ID, "address", dev.Address, "name", dev.FriendlyName, "model", dev.ModelName)
	if cb != nil {
		cb(dev)
	}
}

func (l *Listener) fetchDescription(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetchFailed, location, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptionSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrFetchFailed, location, err)
	}
	return body, nil
}

// release forgets an address so a later probe response can retry it.
func (l *Listener) release(run uint64, host string) {
	l.mu.Lock()
	if run == l.run {
		delete(l.seen, host)
	}
	l.mu.Unlock()
}

func hostOf(addr net.Addr) string {
	if u, ok := addr.(*net.UDPAddr); ok {
		return u.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func (l *Listener) getLogger() Logger {
	l.loggerMu.RLock()
	defer l.loggerMu.RUnlock()
	return l.logger
}

func (l *Listener) logDebug(msg string, keysAndValues ...any) {
	if logger := l.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (l *Listener) logInfo(msg string, keysAndValues ...any) {
	if logger := l.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (l *Listener) logWarn(msg string, keysAndValues ...any) {
	if logger := l.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (l *Listener) logError(msg string, keysAndValues ...any) {
	if logger := l.getLogger(); logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
