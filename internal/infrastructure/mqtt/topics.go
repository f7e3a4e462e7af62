package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout shared with the rest of Gray Logic:
// graylogic/{category}/{protocol}/{device}.
const (
	TopicPrefix = "graylogic"

	// Protocol is the protocol segment used by the webOS bridge.
	Protocol = "webos"

	topicPrefixSystem = "graylogic/system"
)

// Topics provides builders for the bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.State("living-room") // "graylogic/state/webos/living-room"
type Topics struct{}

// Command is where commands for one television arrive.
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, deviceID)
}

// AllCommands matches the command topic of every television.
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, Protocol)
}

// Ack carries command acknowledgements.
func (Topics) Ack(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, Protocol, deviceID)
}

// State carries retained television state (connection, volume, mute).
func (Topics) State(deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, deviceID)
}

// Discovery carries announcements of televisions found on the LAN.
func (Topics) Discovery() string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, Protocol)
}

// Health carries the bridge's periodic health report.
func (Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// SystemStatus carries the online/offline status and the Last Will.
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status/%s", topicPrefixSystem, Protocol)
}

// DeviceFromTopic returns the trailing device segment of a bridge topic,
// or "" when topic is not of the form graylogic/{category}/webos/{device}.
func DeviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[2] != Protocol {
		return ""
	}
	return parts[3]
}
