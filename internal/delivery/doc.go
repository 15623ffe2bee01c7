// Package delivery forwards readings from the bus to a remote time-series
// database.
//
// The [Loop] is a small state machine:
//
//	Disconnected -> Connecting -> Connected -> Sending -> Connected
//	                    |                         |
//	                    +-- dial failed ----------+-- transport failure
//	                    v                         v
//	               Disconnected (wait)       Disconnected (redial now)
//
// A failed dial is retried after a fixed interval. Once connected, every
// delivered reading is encoded as one line-protocol record into a
// fixed-size buffer and written through the [Session]. Write failures are
// classified with [APIStatus]: errors carrying an HTTP status are logged
// and the record is dropped while the session stays up; any other failure
// closes the session and triggers an immediate reconnect.
//
// Delivery is at most once. Lag reported by the bus is logged, not retried.
//
// # Usage
//
//	loop := delivery.New(sub, dialer, delivery.Config{
//	    Record: delivery.RecordConfig{Measurement: "dht22"},
//	})
//	loop.SetLogger(logger)
//	go loop.Run(ctx)
package delivery
