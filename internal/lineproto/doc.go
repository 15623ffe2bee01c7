// Package lineproto encodes single InfluxDB line-protocol records.
//
// A record is built through a chain of stage types. Each stage only exposes
// the methods that are legal at that point, so a record without a measurement
// or without a field does not compile:
//
//	measurement[,tag=value...] field=value[,field=value...][ timestamp]\n
//
// # Usage
//
//	buf := lineproto.NewBuffer(lineproto.DefaultBufferSize)
//
//	tags, err := lineproto.New(buf).Measurement("dht22")
//	if err != nil {
//	    return err
//	}
//	fields, err := tags.EndTags()
//	if err != nil {
//	    return err
//	}
//	list, err := fields.Field("humidity", 55.5)
//	if err != nil {
//	    return err
//	}
//	if err := list.EndFields().Finish(); err != nil {
//	    return err
//	}
//	// buf.Bytes() == "dht22 humidity=55.5\n"
//
// # Identifiers
//
// Measurement names, tag keys, tag values and field keys are checked by
// [Validate] before any byte of the element is written. Commas, spaces and
// equals signs are written as given; no escaping is performed.
//
// # Thread Safety
//
// An encoder chain is owned by one goroutine. [Buffer] is not safe for
// concurrent use.
package lineproto
