package webos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/logging"
)

// Logger is the structured logger used by this package.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Requester issues SSAP requests. *Session implements it; Remote and the
// bridge depend on this interface so they can be tested without a socket.
type Requester interface {
	Request(ctx context.Context, uri string, payload any) (json.RawMessage, error)
}

var _ Requester = (*Session)(nil)

// Session multiplexes SSAP requests over a single lazily opened connection
// to one television.
//
// Requests made while disconnected are queued and trigger a connect; they
// are flushed in order once the handshake succeeds. Every request carries a
// unique numeric ID and completes exactly once: with the response payload,
// a *DeviceError, ErrTimeout, ErrConnectionLost or ErrCancelled.
//
// Callbacks run on session goroutines without any session lock held. They
// must not call Close.
type Session struct {
	cfg    SessionConfig
	dialer Dialer

	// lifetime is cancelled by Close to abort in-flight dials.
	lifetime context.Context
	cancel   context.CancelFunc

	mu        sync.Mutex
	state     State
	address   string
	port      int
	clientKey string
	transport Transport
	// gen identifies the current connection attempt. Events from older
	// read loops, dials and timers compare against it and drop out.
	gen     uint64
	nextID  uint64
	pending map[uint64]*call
	queue   []*call
	waiters []chan error

	connectTimer   *time.Timer
	idleTimer      *time.Timer
	idleSeq        uint64
	reconnectTimer *time.Timer
	reconnecting   bool
	closed         bool
	connectedAt    time.Time
	lastErr        error

	// deferred holds work that must run after mu is released.
	deferred []func()

	// sendMu serialises writes. send releases it before taking mu, so it may
	// be acquired while mu is held.
	sendMu sync.Mutex

	callbackMu      sync.RWMutex
	onKeyChange     func(key string)
	onStateChange   func(from, to State)
	onPairingPrompt func()

	stats sessionCounters

	logger   Logger
	loggerMu sync.RWMutex

	wg sync.WaitGroup
}

type call struct {
	id      uint64
	uri     string
	payload json.RawMessage
	done    chan callResult
}

type callResult struct {
	payload json.RawMessage
	err     error
}

type sessionCounters struct {
	requests        atomic.Uint64
	responses       atomic.Uint64
	deviceErrors    atomic.Uint64
	timeouts        atomic.Uint64
	unhandled       atomic.Uint64
	protocolErrors  atomic.Uint64
	connects        atomic.Uint64
	connectFailures atomic.Uint64
	reconnects      atomic.Uint64
	connectionsLost atomic.Uint64
}

// SessionStats is a point-in-time view of a session.
type SessionStats struct {
	State           string    `json:"state"`
	Address         string    `json:"address"`
	Port            int       `json:"port"`
	Paired          bool      `json:"paired"`
	Reconnecting    bool      `json:"reconnecting"`
	ConnectedAt     time.Time `json:"connected_at"`
	LastError       string    `json:"last_error,omitempty"`
	Pending         int       `json:"pending"`
	Queued          int       `json:"queued"`
	Requests        uint64    `json:"requests"`
	Responses       uint64    `json:"responses"`
	DeviceErrors    uint64    `json:"device_errors"`
	Timeouts        uint64    `json:"timeouts"`
	Unhandled       uint64    `json:"unhandled"`
	ProtocolErrors  uint64    `json:"protocol_errors"`
	Connects        uint64    `json:"connects"`
	ConnectFailures uint64    `json:"connect_failures"`
	Reconnects      uint64    `json:"reconnects"`
	ConnectionsLost uint64    `json:"connections_lost"`
}

// NewSession creates a session in the disconnected state. Nothing is dialled
// until the first Request or Connect.
func NewSession(cfg SessionConfig, dialer Dialer) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if dialer == nil {
		dialer = &WSDialer{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:       cfg,
		dialer:    dialer,
		lifetime:  ctx,
		cancel:    cancel,
		state:     StateDisconnected,
		address:   cfg.Address,
		port:      cfg.Port,
		clientKey: cfg.ClientKey,
		pending:   make(map[uint64]*call),
	}, nil
}

// Connect establishes the session if it is not already connected. Concurrent
// callers share one attempt. Cancelling ctx stops waiting but does not abort
// the attempt.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrCancelled
	}
	if s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	ch := make(chan error, 1)
	s.waiters = append(s.waiters, ch)
	s.ensureConnectingLocked()
	s.unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range s.waiters {
			if w == ch {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		select {
		case err := <-ch:
			return err
		default:
		}
		return contextError(ctx.Err(), "connect")
	}
}

// Request sends uri with payload and waits for the answer using the
// configured RequestTimeout.
func (s *Session) Request(ctx context.Context, uri string, payload any) (json.RawMessage, error) {
	return s.RequestWithTimeout(ctx, uri, payload, 0)
}

// RequestWithTimeout is Request with an explicit deadline. A timeout of zero
// uses the configured RequestTimeout.
func (s *Session) RequestWithTimeout(ctx context.Context, uri string, payload any, timeout time.Duration) (json.RawMessage, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty uri", ErrInvalidCommand)
	}
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = s.cfg.RequestTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := &call{uri: uri, payload: raw, done: make(chan callResult, 1)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrCancelled
	}
	s.stats.requests.Add(1)
	if s.state == StateConnected {
		s.registerLocked(c)
		t, gen := s.transport, s.gen
		s.sendMu.Lock()
		s.unlock()
		s.send(gen, t, []*call{c})
	} else {
		s.queue = append(s.queue, c)
		s.ensureConnectingLocked()
		s.unlock()
	}

	var res callResult
	select {
	case res = <-c.done:
	case <-ctx.Done():
		if s.abandon(c) {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				s.stats.timeouts.Add(1)
			}
			s.requestFinished()
			return nil, contextError(ctx.Err(), uri)
		}
		res = <-c.done
	}
	s.requestFinished()
	return res.payload, res.err
}

// Disconnect closes the connection on purpose. Pending and queued requests
// fail with ErrCancelled and no reconnect is scheduled. The session remains
// usable: the next request reconnects.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.stopReconnectLocked()
	s.failWaitersLocked(ErrCancelled)
	s.failQueueLocked(ErrCancelled)

	switch s.state {
	case StateDisconnected:
		s.unlock()
		return nil
	case StateConnecting, StateConnected:
		s.beginDisconnectLocked(ErrCancelled)
	}
	t, gen := s.transport, s.gen
	s.unlock()

	done := make(chan struct{})
	go func() {
		s.closeTransport(gen, t)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return contextError(ctx.Err(), "disconnect")
	}
}

// Close shuts the session down permanently. Every outstanding request and
// Connect call fails with ErrCancelled. Safe to call multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true
	s.stopReconnectLocked()
	stopTimer(&s.idleTimer)
	stopTimer(&s.connectTimer)
	s.failWaitersLocked(ErrCancelled)
	s.failQueueLocked(ErrCancelled)
	if s.state != StateDisconnected {
		s.beginDisconnectLocked(ErrCancelled)
	}
	t, gen := s.transport, s.gen
	s.unlock()

	s.cancel()
	s.closeTransport(gen, t)
	s.wg.Wait()
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ClientKey returns the pairing key the session will present next.
func (s *Session) ClientKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientKey
}

// Address returns the television address and port.
func (s *Session) Address() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address, s.port
}

// SetAddress changes the television address. Only allowed while disconnected.
// A port of zero keeps the current port.
func (s *Session) SetAddress(address string, port int) error {
	if address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDisconnected {
		return fmt.Errorf("%w: state is %s", ErrAddressLocked, s.state)
	}
	s.address = address
	if port != 0 {
		s.port = port
	}
	return nil
}

// SetOnKeyChange registers a callback for new pairing keys.
func (s *Session) SetOnKeyChange(fn func(key string)) {
	s.callbackMu.Lock()
	s.onKeyChange = fn
	s.callbackMu.Unlock()
}

// SetOnStateChange registers a callback for lifecycle transitions.
func (s *Session) SetOnStateChange(fn func(from, to State)) {
	s.callbackMu.Lock()
	s.onStateChange = fn
	s.callbackMu.Unlock()
}

// SetOnPairingPrompt registers a callback fired when the television shows
// the pairing prompt.
func (s *Session) SetOnPairingPrompt(fn func()) {
	s.callbackMu.Lock()
	s.onPairingPrompt = fn
	s.callbackMu.Unlock()
}

// SetLogger sets the logger for the session.
func (s *Session) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// Stats returns counters and the current state.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	st := SessionStats{
		State:        s.state.String(),
		Address:      s.address,
		Port:         s.port,
		Paired:       s.clientKey != "",
		Reconnecting: s.reconnecting,
		ConnectedAt:  s.connectedAt,
		Pending:      len(s.pending),
		Queued:       len(s.queue),
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	s.mu.Unlock()

	st.Requests = s.stats.requests.Load()
	st.Responses = s.stats.responses.Load()
	st.DeviceErrors = s.stats.deviceErrors.Load()
	st.Timeouts = s.stats.timeouts.Load()
	st.Unhandled = s.stats.unhandled.Load()
	st.ProtocolErrors = s.stats.protocolErrors.Load()
	st.Connects = s.stats.connects.Load()
	st.ConnectFailures = s.stats.connectFailures.Load()
	st.Reconnects = s.stats.reconnects.Load()
	st.ConnectionsLost = s.stats.connectionsLost.Load()
	return st
}

// --- connection lifecycle ---

// unlock releases mu and runs the work deferred while it was held.
func (s *Session) unlock() {
	deferred := s.deferred
	s.deferred = nil
	s.mu.Unlock()
	for _, fn := range deferred {
		fn()
	}
}

func (s *Session) setStateLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.logDebug("session state changed", "from", from.String(), "to", to.String())

	s.callbackMu.RLock()
	cb := s.onStateChange
	s.callbackMu.RUnlock()
	if cb != nil {
		s.deferred = append(s.deferred, func() { cb(from, to) })
	}
}

func (s *Session) ensureConnectingLocked() {
	if s.state == StateDisconnected && !s.closed {
		s.startConnectLocked()
	}
	// connecting: the in-flight attempt serves everyone.
	// disconnecting: finishDisconnectLocked restarts when work is waiting.
}

func (s *Session) startConnectLocked() {
	stopTimer(&s.reconnectTimer)
	s.gen++
	gen := s.gen
	s.setStateLocked(StateConnecting)

	timeout := s.cfg.ConnectTimeout
	s.connectTimer = time.AfterFunc(timeout, func() { s.onConnectTimeout(gen, timeout) })

	rawURL := Endpoint(s.address, s.port, s.cfg.Secure)
	s.logDebug("connecting", "url", rawURL)

	s.wg.Add(1)
	go s.dial(gen, rawURL)
}

func (s *Session) dial(gen uint64, rawURL string) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.lifetime, s.cfg.ConnectTimeout)
	defer cancel()

	t, err := s.dialer.Dial(ctx, rawURL)

	s.mu.Lock()
	if gen != s.gen || s.state != StateConnecting {
		s.mu.Unlock()
		if t != nil {
			_ = t.Close() //nolint:errcheck // Attempt was superseded
		}
		return
	}
	if err != nil {
		if !errors.Is(err, ErrConnectionFailed) {
			err = fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
		s.connectFailedLocked(err)
		s.unlock()
		return
	}

	s.transport = t
	env, err := NewRegisterEnvelope(s.clientKey, s.cfg.Manifest)
	var data []byte
	if err == nil {
		data, err = Encode(env)
	}
	if err != nil {
		s.connectFailedLocked(fmt.Errorf("%w: %w", ErrConnectionFailed, err))
		s.unlock()
		return
	}

	s.wg.Add(1)
	go s.readLoop(gen, t)
	s.unlock()

	s.logDebug("sending registration", "paired", s.ClientKey() != "")
	if err := t.WriteMessage(ctx, data); err != nil {
		s.mu.Lock()
		if gen == s.gen && s.state == StateConnecting {
			s.connectFailedLocked(fmt.Errorf("%w: sending registration: %w", ErrConnectionFailed, err))
		}
		s.unlock()
	}
}

func (s *Session) onConnectTimeout(gen uint64, timeout time.Duration) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.connectFailedLocked(fmt.Errorf("%w: not registered within %v", ErrTimeout, timeout))
	s.unlock()
}

// connectFailedLocked ends a connecting attempt. Connect waiters always
// receive err; queued requests fail too unless a retry is scheduled.
func (s *Session) connectFailedLocked(err error) {
	stopTimer(&s.connectTimer)
	t := s.transport
	s.transport = nil
	s.gen++
	s.lastErr = err
	s.stats.connectFailures.Add(1)
	s.setStateLocked(StateDisconnected)
	s.logWarn("connection attempt failed", "error", err)

	s.failWaitersLocked(err)
	if s.reconnectAllowedLocked() {
		s.scheduleReconnectLocked()
	} else {
		s.failQueueLocked(err)
	}
	if t != nil {
		s.deferred = append(s.deferred, func() { _ = t.Close() }) //nolint:errcheck // Already failed
	}
}

// connectionLostLocked handles a socket that dropped while connected.
func (s *Session) connectionLostLocked(cause error) {
	t := s.transport
	s.transport = nil
	s.gen++
	stopTimer(&s.idleTimer)
	err := fmt.Errorf("%w: %w", ErrConnectionLost, cause)
	s.lastErr = err
	s.stats.connectionsLost.Add(1)
	s.setStateLocked(StateDisconnected)
	s.failPendingLocked(err)
	s.logWarn("connection lost", "error", cause, "reconnect", s.cfg.Reconnect.Enabled)

	if s.reconnectAllowedLocked() {
		s.scheduleReconnectLocked()
	} else if len(s.queue) > 0 || len(s.waiters) > 0 {
		s.startConnectLocked()
	}
	if t != nil {
		s.deferred = append(s.deferred, func() { _ = t.Close() }) //nolint:errcheck // Socket already gone
	}
}

// beginDisconnectLocked moves to disconnecting and fails in-flight requests.
// The caller closes the transport and calls closeTransport.
func (s *Session) beginDisconnectLocked(reason error) {
	stopTimer(&s.connectTimer)
	stopTimer(&s.idleTimer)
	s.setStateLocked(StateDisconnecting)
	s.failPendingLocked(reason)
}

// closeTransport closes t and completes the disconnect started by
// beginDisconnectLocked, unless a newer attempt has taken over.
func (s *Session) closeTransport(gen uint64, t Transport) {
	if t != nil {
		_ = t.Close() //nolint:errcheck // Closing on purpose
	}
	s.mu.Lock()
	if gen == s.gen && s.state == StateDisconnecting {
		s.finishDisconnectLocked()
	}
	s.unlock()
}

func (s *Session) finishDisconnectLocked() {
	s.transport = nil
	s.gen++
	s.setStateLocked(StateDisconnected)
	s.failPendingLocked(ErrCancelled)
	if !s.closed && (len(s.queue) > 0 || len(s.waiters) > 0) {
		s.startConnectLocked()
	}
}

func (s *Session) reconnectAllowedLocked() bool {
	return !s.closed && s.cfg.Reconnect.Enabled
}

func (s *Session) scheduleReconnectLocked() {
	stopTimer(&s.reconnectTimer)
	s.reconnecting = true
	s.reconnectTimer = time.AfterFunc(s.cfg.Reconnect.Interval, s.onReconnectTimer)
	s.logInfo("reconnect scheduled", "in", s.cfg.Reconnect.Interval.String())
}

func (s *Session) stopReconnectLocked() {
	stopTimer(&s.reconnectTimer)
	s.reconnecting = false
}

func (s *Session) onReconnectTimer() {
	s.mu.Lock()
	if s.closed || !s.reconnecting || s.state != StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.stats.reconnects.Add(1)
	s.startConnectLocked()
	s.unlock()
}

// --- idle handling ---

// armIdleLocked restarts the idle window. Older timers that still fire see a
// stale sequence number and do nothing.
func (s *Session) armIdleLocked() {
	stopTimer(&s.idleTimer)
	if s.cfg.IdleTimeout <= 0 || s.state != StateConnected {
		return
	}
	s.idleSeq++
	seq := s.idleSeq
	s.idleTimer = time.AfterFunc(s.cfg.IdleTimeout, func() { s.onIdle(seq) })
}

func (s *Session) onIdle(seq uint64) {
	s.mu.Lock()
	if seq != s.idleSeq || s.state != StateConnected || len(s.pending) > 0 || len(s.queue) > 0 {
		s.mu.Unlock()
		return
	}
	s.logDebug("idle timeout, closing connection", "idle", s.cfg.IdleTimeout.String())
	s.beginDisconnectLocked(ErrCancelled)
	t, gen := s.transport, s.gen
	s.unlock()
	s.closeTransport(gen, t)
}

func (s *Session) requestFinished() {
	s.mu.Lock()
	s.armIdleLocked()
	s.mu.Unlock()
}

// --- inbound frames ---

func (s *Session) readLoop(gen uint64, t Transport) {
	defer s.wg.Done()
	for {
		data, err := t.ReadMessage()
		if err != nil {
			s.transportClosed(gen, err)
			return
		}
		s.handleFrame(gen, data)
	}
}

func (s *Session) transportClosed(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	switch s.state {
	case StateConnecting:
		s.connectFailedLocked(fmt.Errorf("%w: socket closed during handshake: %w", ErrConnectionFailed, err))
	case StateConnected:
		s.connectionLostLocked(err)
	case StateDisconnecting:
		s.finishDisconnectLocked()
	}
	s.unlock()
}

func (s *Session) handleFrame(gen uint64, data []byte) {
	env, err := Decode(data)
	if err != nil {
		s.stats.protocolErrors.Add(1)
		s.logWarn("discarding malformed frame", "error", err)
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if env.ID == RegisterID {
		s.handleHandshakeLocked(env)
		s.unlock()
		return
	}

	id, ok := env.ID.Numeric()
	c := s.pending[id]
	if !ok || c == nil || (env.Type != TypeResponse && env.Type != TypeError) {
		s.mu.Unlock()
		s.stats.unhandled.Add(1)
		s.logDebug("unhandled message", "id", string(env.ID), "type", env.Type)
		return
	}
	delete(s.pending, id)
	s.mu.Unlock()

	if env.Type == TypeError {
		s.stats.deviceErrors.Add(1)
		c.done <- callResult{err: &DeviceError{URI: c.uri, Message: env.Error}}
		return
	}
	s.stats.responses.Add(1)
	c.done <- callResult{payload: env.Payload}
}

func (s *Session) handleHandshakeLocked(env Envelope) {
	if s.state != StateConnecting {
		s.stats.unhandled.Add(1)
		s.logDebug("unhandled message", "id", string(env.ID), "type", env.Type)
		return
	}

	switch env.Type {
	case TypeRegistered:
		reg, err := ParseRegistered(env.Payload)
		if err != nil {
			s.connectFailedLocked(err)
			return
		}
		s.registeredLocked(reg.ClientKey)

	case TypeError:
		s.connectFailedLocked(fmt.Errorf("%w: %s", ErrHandshakeRejected, env.Error))

	case TypeResponse:
		if !PairingPrompt(env.Payload) {
			return
		}
		gen := s.gen
		timeout := s.cfg.PairingTimeout
		stopTimer(&s.connectTimer)
		s.connectTimer = time.AfterFunc(timeout, func() { s.onConnectTimeout(gen, timeout) })
		s.logInfo("pairing prompt shown on television", "timeout", timeout.String())

		s.callbackMu.RLock()
		cb := s.onPairingPrompt
		s.callbackMu.RUnlock()
		if cb != nil {
			s.deferred = append(s.deferred, cb)
		}

	default:
		s.stats.unhandled.Add(1)
		s.logDebug("unhandled message", "id", string(env.ID), "type", env.Type)
	}
}

// registeredLocked completes the handshake and flushes queued requests.
func (s *Session) registeredLocked(key string) {
	stopTimer(&s.connectTimer)
	s.stopReconnectLocked()

	if key != "" && key != s.clientKey {
		s.clientKey = key
		s.logInfo("received new client key", "client_key", logging.RedactKey(key))
		s.callbackMu.RLock()
		cb := s.onKeyChange
		s.callbackMu.RUnlock()
		if cb != nil {
			s.deferred = append(s.deferred, func() { cb(key) })
		}
	}

	s.connectedAt = time.Now()
	s.lastErr = nil
	s.stats.connects.Add(1)
	s.setStateLocked(StateConnected)
	s.logInfo("session connected", "address", s.address, "port", s.port)

	for _, w := range s.waiters {
		w <- nil
	}
	s.waiters = nil

	queued := s.queue
	s.queue = nil
	if len(queued) == 0 {
		s.armIdleLocked()
		return
	}
	for _, c := range queued {
		s.registerLocked(c)
	}
	t, gen := s.transport, s.gen
	s.deferred = append(s.deferred, func() {
		s.sendMu.Lock()
		s.send(gen, t, queued)
	})
}

// --- outbound frames ---

func (s *Session) registerLocked(c *call) {
	s.nextID++
	c.id = s.nextID
	s.pending[c.id] = c
}

// send writes calls in order. It must be entered with sendMu held and
// releases it before touching mu.
func (s *Session) send(gen uint64, t Transport, calls []*call) {
	var (
		sendErr error
		failed  []*call
		encErrs []error
	)
	for _, c := range calls {
		env, err := NewRequestEnvelope(c.id, c.uri, c.payload)
		var data []byte
		if err == nil {
			data, err = Encode(env)
		}
		if err != nil {
			failed = append(failed, c)
			encErrs = append(encErrs, err)
			continue
		}

		ctx, cancel := context.WithTimeout(s.lifetime, s.cfg.RequestTimeout)
		err = t.WriteMessage(ctx, data)
		cancel()
		if err != nil {
			sendErr = err
			break
		}
	}
	s.sendMu.Unlock()

	for i, c := range failed {
		s.resolve(c, callResult{err: encErrs[i]})
	}
	if sendErr == nil {
		return
	}
	s.mu.Lock()
	if gen == s.gen && s.state == StateConnected {
		s.connectionLostLocked(fmt.Errorf("write: %w", sendErr))
	}
	s.unlock()
}

// resolve completes c if it is still pending.
func (s *Session) resolve(c *call, res callResult) {
	s.mu.Lock()
	if s.pending[c.id] != c {
		s.mu.Unlock()
		return
	}
	delete(s.pending, c.id)
	s.mu.Unlock()
	c.done <- res
}

// abandon removes c from the queue or the pending map. It reports false when
// c has already been resolved, in which case its result is in c.done.
func (s *Session) abandon(c *call) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.id != 0 {
		if s.pending[c.id] == c {
			delete(s.pending, c.id)
			return true
		}
		return false
	}
	for i, q := range s.queue {
		if q == c {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Session) failPendingLocked(err error) {
	for id, c := range s.pending {
		delete(s.pending, id)
		c.done <- callResult{err: err}
	}
}

func (s *Session) failQueueLocked(err error) {
	for _, c := range s.queue {
		c.done <- callResult{err: err}
	}
	s.queue = nil
}

func (s *Session) failWaitersLocked(err error) {
	for _, w := range s.waiters {
		w <- err
	}
	s.waiters = nil
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// contextError maps a context error to the package taxonomy.
func contextError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrCancelled, op, err)
}

// --- logging ---

func (s *Session) currentLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

func (s *Session) logDebug(msg string, keysAndValues ...any) {
	if l := s.currentLogger(); l != nil {
		l.Debug(msg, s.withDevice(keysAndValues)...)
	}
}

func (s *Session) logInfo(msg string, keysAndValues ...any) {
	if l := s.currentLogger(); l != nil {
		l.Info(msg, s.withDevice(keysAndValues)...)
	}
}

func (s *Session) logWarn(msg string, keysAndValues ...any) {
	if l := s.currentLogger(); l != nil {
		l.Warn(msg, s.withDevice(keysAndValues)...)
	}
}

func (s *Session) withDevice(keysAndValues []any) []any {
	if s.cfg.DeviceID == "" {
		return keysAndValues
	}
	return append([]any{"device_id", s.cfg.DeviceID}, keysAndValues...)
}
