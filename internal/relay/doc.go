// Package relay republishes readings from the bus to an MQTT broker.
//
// The relay is an optional bus consumer. Each delivered reading becomes a
// retained JSON message on <prefix>/<node_id>/reading so that late
// subscribers immediately see the current value:
//
//	{"node_id":"greenhouse-1","temperature":21.5,"humidity":40.2,"timestamp":"2026-01-02T15:04:05Z"}
//
// Publish failures are counted and logged; the reading is not retried.
//
// # Usage
//
//	sub, _ := topic.Subscribe("relay")
//	r := relay.New(sub, client, client.Topics().Reading(), cfg.Node.ID)
//	r.SetLogger(logging.Component("relay"))
//	go r.Run(ctx)
package relay
