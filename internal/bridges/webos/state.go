package webos

// State is the lifecycle state of a Session.
//
//	disconnected --request/Connect--> connecting
//	connecting   --registered-------> connected
//	connecting   --error/timeout----> disconnected
//	connected    --idle/Disconnect--> disconnecting --socket closed--> disconnected
//	connected    --socket lost------> disconnected
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

// String returns the lowercase name used in logs, MQTT state and the API.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}
