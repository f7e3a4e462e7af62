package webos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

const testWait = 2 * time.Second

var errFakeClosed = errors.New("fake transport closed")

// fakeTransport is an in-memory Transport. Frames written by the session
// appear on writes; frames pushed with deliver are returned by ReadMessage.
type fakeTransport struct {
	writes  chan []byte
	inbound chan []byte
	closed  chan struct{}

	closeOnce sync.Once

	mu       sync.Mutex
	writeErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		writes:  make(chan []byte, 64),
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) WriteMessage(_ context.Context, data []byte) error {
	f.mu.Lock()
	err := f.writeErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case <-f.closed:
		return errFakeClosed
	default:
	}
	f.writes <- append([]byte(nil), data...)
	return nil
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case data := <-f.inbound:
		return data, nil
	case <-f.closed:
		return nil, errFakeClosed
	}
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) setWriteErr(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) deliver(frame string) {
	f.inbound <- []byte(frame)
}

// nextFrame waits for the next frame the session writes.
func (f *fakeTransport) nextFrame(t *testing.T) Envelope {
	t.Helper()
	select {
	case data := <-f.writes:
		env, err := Decode(data)
		if err != nil {
			t.Fatalf("session wrote undecodable frame %s: %v", data, err)
		}
		return env
	case <-time.After(testWait):
		t.Fatal("timed out waiting for a frame from the session")
		return Envelope{}
	}
}

// register answers the handshake with key.
func (f *fakeTransport) register(t *testing.T, key string) Envelope {
	t.Helper()
	env := f.nextFrame(t)
	if env.Type != TypeRegister || env.ID != RegisterID {
		t.Fatalf("first frame = %s/%s, want register/register_0", env.ID, env.Type)
	}
	f.deliver(fmt.Sprintf(`{"id":"register_0","type":"registered","payload":{"client-key":%q}}`, key))
	return env
}

// respond answers request id with payload.
func (f *fakeTransport) respond(id MessageID, payload string) {
	f.deliver(fmt.Sprintf(`{"id":%s,"type":"response","payload":%s}`, id, payload))
}

// fakeDialer hands out fakeTransports, or fails with err.
type fakeDialer struct {
	mu   sync.Mutex
	err  error
	urls []string

	dialed chan *fakeTransport
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeTransport, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, rawURL string) (Transport, error) {
	d.mu.Lock()
	d.urls = append(d.urls, rawURL)
	err := d.err
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	tr := newFakeTransport()
	d.dialed <- tr
	return tr, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// next waits for the next dialled transport.
func (d *fakeDialer) next(t *testing.T) *fakeTransport {
	t.Helper()
	select {
	case tr := <-d.dialed:
		return tr
	case <-time.After(testWait):
		t.Fatal("timed out waiting for the session to dial")
		return nil
	}
}

// waitFor polls cond until it holds or the test wait expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testWait)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type requestResult struct {
	payload json.RawMessage
	err     error
}

// goRequest runs Request in the background.
func goRequest(s *Session, uri string, payload any) <-chan requestResult {
	ch := make(chan requestResult, 1)
	go func() {
		p, err := s.Request(context.Background(), uri, payload)
		ch <- requestResult{payload: p, err: err}
	}()
	return ch
}

func awaitResult(t *testing.T, ch <-chan requestResult) requestResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(testWait):
		t.Fatal("timed out waiting for request result")
		return requestResult{}
	}
}

func newTestSession(t *testing.T, cfg SessionConfig, d Dialer) *Session {
	t.Helper()
	if cfg.Address == "" {
		cfg.Address = "192.168.1.50"
	}
	s, err := NewSession(cfg, d)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// connectedSession returns a session that has completed its handshake.
func connectedSession(t *testing.T, cfg SessionConfig) (*Session, *fakeDialer, *fakeTransport) {
	t.Helper()
	d := newFakeDialer()
	s := newTestSession(t, cfg, d)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Connect(context.Background()) }()

	tr := d.next(t)
	tr.register(t, "test-key")
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
	case <-time.After(testWait):
		t.Fatal("Connect() did not return")
	}
	return s, d, tr
}
