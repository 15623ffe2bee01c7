// Package tsdb writes line-protocol records to an InfluxDB v2 compatible
// endpoint over plain net/http.
//
// It implements the delivery Dialer/Session pair used by the delivery loop:
// a Dial resolves the endpoint host to one IPv4 address, pins the session's
// connections to it and probes GET /health. Each Write is a single
// POST /api/v2/write?org=...&bucket=...&precision=ns with the headers
//
//	Authorization: Token <token>
//	Content-Type: text/plain
//	Accept: application/json
//
// # Usage
//
//	d, err := tsdb.NewDialer(tsdb.Config{
//	    URL:    "http://influx.local:8086",
//	    Token:  token,
//	    Org:    "home",
//	    Bucket: "climate",
//	})
//	if err != nil {
//	    return err
//	}
//	loop := delivery.New(sub, d, delivery.Config{})
//
// # Error Handling
//
// A rejected write returns *WriteError (it has a StatusCode method, so the
// delivery loop keeps the session). Resolution, connection and I/O failures
// wrap ErrResolve, ErrConnectionFailed or ErrWriteFailed.
package tsdb
