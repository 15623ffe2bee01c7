// Package influxdb delivers records through the official influxdb-client-go
// v2 library.
//
// It is the alternative to package tsdb for the delivery loop: Dial creates
// a client, pings the server and returns a session wrapping the blocking
// write API, so every record is acknowledged (or rejected) before the next
// is sent.
//
// # Usage
//
//	d := influxdb.NewDialer(influxdb.Config{
//	    URL:    "http://localhost:8086",
//	    Token:  token,
//	    Org:    "home",
//	    Bucket: "climate",
//	})
//	loop := delivery.New(sub, d, delivery.Config{})
//
// # Error Handling
//
// Server rejections become *WriteError, which carries the HTTP status and
// the server's error code and message. Network failures wrap ErrWriteFailed.
package influxdb
