package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "sensornode"

// Topics builds the node's MQTT topics.
//
//	topics := mqtt.NewTopics("sensornode", "greenhouse-1")
//	topics.Reading() // "sensornode/greenhouse-1/reading"
type Topics struct {
	prefix string
	node   string
}

// NewTopics returns a builder for the given prefix and node ID.
func NewTopics(prefix, nodeID string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix, node: nodeID}
}

func (t Topics) base() string {
	if t.node == "" {
		return t.prefix
	}
	return fmt.Sprintf("%s/%s", t.prefix, t.node)
}

// Reading returns the topic carrying the latest reading (retained).
//
// Example: sensornode/greenhouse-1/reading
func (t Topics) Reading() string {
	return t.base() + "/reading"
}

// Status returns the online/offline status topic (retained, also the LWT).
//
// Example: sensornode/greenhouse-1/status
func (t Topics) Status() string {
	return t.base() + "/status"
}

// AllNodes returns a pattern matching every node's readings under the prefix.
//
// Pattern: sensornode/+/reading
func (t Topics) AllNodes() string {
	return fmt.Sprintf("%s/+/reading", t.prefix)
}
