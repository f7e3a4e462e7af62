package webos

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Message types carried in the "type" field of every frame.
const (
	TypeRegister   = "register"
	TypeRegistered = "registered"
	TypeRequest    = "request"
	TypeResponse   = "response"
	TypeError      = "error"
)

// RegisterID is the fixed identifier of the registration handshake.
// It is never used for an ordinary request.
const RegisterID MessageID = "register_0"

// MessageID is the correlation identifier of a frame.
//
// Requests use positive integers which go over the wire as JSON numbers; the
// handshake uses the string "register_0". Televisions echo whatever they
// received, so both forms are accepted when decoding.
type MessageID string

// NumericID builds the identifier of an ordinary request.
func NumericID(n uint64) MessageID {
	return MessageID(strconv.FormatUint(n, 10))
}

// Numeric returns the integer form of a request identifier.
func (id MessageID) Numeric() (uint64, bool) {
	if id == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// MarshalJSON writes numeric identifiers as numbers and anything else as a string.
func (id MessageID) MarshalJSON() ([]byte, error) {
	if _, ok := id.Numeric(); ok {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a JSON number or string.
func (id *MessageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = MessageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	*id = MessageID(n.String())
	return nil
}

// Envelope is one SSAP frame.
type Envelope struct {
	ID      MessageID       `json:"id"`
	Type    string          `json:"type"`
	URI     string          `json:"uri,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewRequestEnvelope builds {id, type:"request", uri, payload}.
// A nil payload is sent as JSON null.
func NewRequestEnvelope(id uint64, uri string, payload any) (Envelope, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:      NumericID(id),
		Type:    TypeRequest,
		URI:     uri,
		Payload: raw,
	}, nil
}

// NewRegisterEnvelope builds the registration handshake. The client key is
// merged into the manifest payload; an empty key requests a new pairing.
func NewRegisterEnvelope(clientKey string, manifest Manifest) (Envelope, error) {
	payload := manifest.withClientKey(clientKey)
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding register payload: %w", err)
	}
	return Envelope{
		ID:      RegisterID,
		Type:    TypeRegister,
		Payload: raw,
	}, nil
}

func marshalPayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage("null"), nil
		}
		if !json.Valid(p) {
			return nil, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidCommand)
		}
		return p, nil
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding request payload: %w", ErrInvalidCommand, err)
		}
		return raw, nil
	}
}

// Encode serialises an envelope for the wire.
func Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", env.Type, err)
	}
	return data, nil
}

// Decode parses an inbound frame. Anything that is not a JSON object with a
// type is reported as ErrProtocol.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: frame has no type", ErrProtocol)
	}
	return env, nil
}

// RegisteredPayload is the body of a successful handshake.
type RegisteredPayload struct {
	ClientKey string `json:"client-key"`
}

// ParseRegistered extracts the client key from a "registered" payload.
func ParseRegistered(payload json.RawMessage) (RegisteredPayload, error) {
	var p RegisteredPayload
	if len(payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, fmt.Errorf("%w: registered payload: %w", ErrProtocol, err)
	}
	return p, nil
}

// PairingPrompt reports whether a handshake "response" frame says the
// pairing prompt is on the television's screen.
func PairingPrompt(payload json.RawMessage) bool {
	var p struct {
		PairingType string `json:"pairingType"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return false
	}
	return p.PairingType == PairingTypePrompt
}
