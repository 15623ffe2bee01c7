// Package mqtt provides the broker connection used by the reading relay.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Topics
//
// Every topic sits under <prefix>/<node_id>:
//
//	sensornode/greenhouse-1/reading   retained JSON reading
//	sensornode/greenhouse-1/status    retained online/offline, also the LWT
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) for brokers outside the local network
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Node.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishRetained(client.Topics().Reading(), payload)
package mqtt
