package mqtt

import "errors"

// Sentinel errors returned by Client. Callers match them with errors.Is;
// most are wrapped with the broker's own error text.
var (
	// ErrNotConnected means the client has no live broker connection.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed wraps the error from the initial connect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects QoS values other than 0, 1 and 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic rejects an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
