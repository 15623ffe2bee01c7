package lineproto

import (
	"fmt"
	"strconv"
)

// encoder is shared by every stage of one record.
type encoder struct {
	sink    Sink
	scratch []byte
}

func (e *encoder) write(p []byte) error {
	if _, err := e.sink.Write(p); err != nil {
		return fmt.Errorf("%w: %w", ErrSink, err)
	}
	return nil
}

// element assembles one element in the scratch buffer so the sink sees a
// single write per element.
func (e *encoder) element(parts ...string) error {
	e.scratch = e.scratch[:0]
	for _, p := range parts {
		e.scratch = append(e.scratch, p...)
	}
	return e.write(e.scratch)
}

func (e *encoder) finalize() error {
	if err := e.write([]byte{'\n'}); err != nil {
		return err
	}
	if err := e.sink.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrSink, err)
	}
	return nil
}

func validate(kind, s string) error {
	if err := Validate(s); err != nil {
		return fmt.Errorf("%s %q: %w", kind, s, err)
	}
	return nil
}

// MeasurementStage is the entry point of a record.
type MeasurementStage struct {
	e *encoder
}

// New starts a record written to sink.
func New(sink Sink) MeasurementStage {
	return MeasurementStage{e: &encoder{sink: sink, scratch: make([]byte, 0, 64)}}
}

// Measurement writes the measurement name.
func (s MeasurementStage) Measurement(name string) (TagStage, error) {
	if err := validate("measurement", name); err != nil {
		return TagStage{}, err
	}
	if err := s.e.element(name); err != nil {
		return TagStage{}, err
	}
	return TagStage(s), nil
}

// TagStage accepts zero or more tags.
type TagStage struct {
	e *encoder
}

// Tag writes ",key=value".
func (s TagStage) Tag(key, value string) (TagStage, error) {
	if err := validate("tag key", key); err != nil {
		return TagStage{}, err
	}
	if err := validate("tag value", value); err != nil {
		return TagStage{}, err
	}
	if err := s.e.element(",", key, "=", value); err != nil {
		return TagStage{}, err
	}
	return s, nil
}

// EndTags writes the separator between tags and fields.
func (s TagStage) EndTags() (FieldStage, error) {
	if err := s.e.write([]byte{' '}); err != nil {
		return FieldStage{}, err
	}
	return FieldStage(s), nil
}

// FieldStage requires at least one field.
type FieldStage struct {
	e *encoder
}

// Field writes the first "key=value" pair.
func (s FieldStage) Field(key string, value float32) (FieldListStage, error) {
	if err := writeField(s.e, "", key, value); err != nil {
		return FieldListStage{}, err
	}
	return FieldListStage(s), nil
}

// FieldListStage has written at least one field.
type FieldListStage struct {
	e *encoder
}

// Field writes ",key=value".
func (s FieldListStage) Field(key string, value float32) (FieldListStage, error) {
	if err := writeField(s.e, ",", key, value); err != nil {
		return FieldListStage{}, err
	}
	return s, nil
}

// EndFields closes the field set. Nothing is written.
func (s FieldListStage) EndFields() TimestampStage {
	return TimestampStage(s)
}

// TimestampStage finalizes the record, with or without a timestamp.
type TimestampStage struct {
	e *encoder
}

// Timestamp writes " ns", the terminating newline, and flushes the sink.
func (s TimestampStage) Timestamp(ns uint64) error {
	s.e.scratch = append(s.e.scratch[:0], ' ')
	s.e.scratch = strconv.AppendUint(s.e.scratch, ns, 10)
	if err := s.e.write(s.e.scratch); err != nil {
		return err
	}
	return s.e.finalize()
}

// Finish writes the terminating newline and flushes the sink.
func (s TimestampStage) Finish() error {
	return s.e.finalize()
}

func writeField(e *encoder, prefix, key string, value float32) error {
	if err := validate("field key", key); err != nil {
		return err
	}
	e.scratch = append(e.scratch[:0], prefix...)
	e.scratch = append(e.scratch, key...)
	e.scratch = append(e.scratch, '=')
	e.scratch = AppendFloat(e.scratch, value)
	return e.write(e.scratch)
}

// AppendFloat appends the shortest decimal form of v that round-trips as a
// 32-bit float. Exponent notation is never used.
func AppendFloat(dst []byte, v float32) []byte {
	return strconv.AppendFloat(dst, float64(v), 'f', -1, 32)
}
