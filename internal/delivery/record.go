package delivery

import (
	"fmt"
	"sort"

	"github.com/knightpp/esp-sensor/internal/lineproto"
	"github.com/knightpp/esp-sensor/internal/sensor"
)

// Field keys, written in this order.
const (
	FieldHumidity    = "humidity"
	FieldTemperature = "temperature"
)

// DefaultMeasurement is used when RecordConfig.Measurement is empty.
const DefaultMeasurement = "dht22"

// RecordConfig shapes the encoded record.
type RecordConfig struct {
	Measurement string
	Tags        map[string]string

	// Timestamp appends the reading time in nanoseconds. Otherwise the
	// server stamps the record on arrival.
	Timestamp bool
}

type tag struct{ key, value string }

// recordEncoder writes readings with a fixed measurement and tag set.
type recordEncoder struct {
	measurement string
	tags        []tag
	timestamp   bool
}

func newRecordEncoder(cfg RecordConfig) *recordEncoder {
	e := &recordEncoder{
		measurement: cfg.Measurement,
		timestamp:   cfg.Timestamp,
	}
	if e.measurement == "" {
		e.measurement = DefaultMeasurement
	}
	for k, v := range cfg.Tags {
		e.tags = append(e.tags, tag{k, v})
	}
	sort.Slice(e.tags, func(i, j int) bool { return e.tags[i].key < e.tags[j].key })
	return e
}

// encode resets buf and writes r as one record.
func (e *recordEncoder) encode(buf *lineproto.Buffer, r sensor.Reading) error {
	buf.Reset()

	tags, err := lineproto.New(buf).Measurement(e.measurement)
	if err != nil {
		return err
	}
	for _, t := range e.tags {
		if tags, err = tags.Tag(t.key, t.value); err != nil {
			return err
		}
	}
	fields, err := tags.EndTags()
	if err != nil {
		return err
	}
	list, err := fields.Field(FieldHumidity, r.Humidity)
	if err != nil {
		return err
	}
	if list, err = list.Field(FieldTemperature, r.Temperature); err != nil {
		return err
	}

	ts := list.EndFields()
	if e.timestamp && !r.At.IsZero() {
		ns := r.At.UnixNano()
		if ns < 0 {
			return fmt.Errorf("timestamp %s before epoch", r.At)
		}
		return ts.Timestamp(uint64(ns))
	}
	return ts.Finish()
}
