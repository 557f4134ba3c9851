// Package serialization implements the host-boundary object serializers used
// by asynchronous pipeline invocation.
//
// When a pipeline runs asynchronously, its output and error objects are not
// collected in memory; they are forwarded one at a time to an external
// channel, typically the redirected standard streams of the host process.
// This package provides the Serializer and Deserializer contracts plus
// JSON-lines and YAML-documents implementations.
//
// # Contract
//
// A Serializer accepts one object per call and must tolerate being called
// from a draining goroutine at any rate. A Deserializer produces one object
// per call and signals end-of-input with io.EOF; a JSON null in the input is
// the explicit end sentinel and is reported the same way.
package serialization

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/smnsjas/go-shellcore/objects"
)

// Serializer writes pipeline objects to an external channel, one per call.
type Serializer interface {
	Serialize(obj interface{}) error
}

// Deserializer reads pipeline objects from an external channel, one per
// call. It returns io.EOF when the channel is exhausted or the null sentinel
// is read.
type Deserializer interface {
	Deserialize() (interface{}, error)
}

// JSONSerializer emits one JSON document per line.
type JSONSerializer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSerializer creates a JSONSerializer writing to w.
func NewJSONSerializer(w io.Writer) *JSONSerializer {
	return &JSONSerializer{enc: json.NewEncoder(w)}
}

// Serialize writes obj as a single JSON line.
func (s *JSONSerializer) Serialize(obj interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(obj); err != nil {
		return fmt.Errorf("serialize json: %w", err)
	}
	return nil
}

// YAMLSerializer emits one YAML document per object, separated by document
// markers.
type YAMLSerializer struct {
	mu  sync.Mutex
	enc *yaml.Encoder
}

// NewYAMLSerializer creates a YAMLSerializer writing to w.
func NewYAMLSerializer(w io.Writer) *YAMLSerializer {
	return &YAMLSerializer{enc: yaml.NewEncoder(w)}
}

// Serialize writes obj as one YAML document.
func (s *YAMLSerializer) Serialize(obj interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(obj); err != nil {
		return fmt.Errorf("serialize yaml: %w", err)
	}
	return nil
}

// Close flushes the underlying YAML encoder.
func (s *YAMLSerializer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Close()
}

// JSONDeserializer reads one JSON document per call from r.
type JSONDeserializer struct {
	dec *json.Decoder
}

// NewJSONDeserializer creates a JSONDeserializer reading from r.
func NewJSONDeserializer(r io.Reader) *JSONDeserializer {
	return &JSONDeserializer{dec: json.NewDecoder(r)}
}

// Deserialize reads the next object. io.EOF means the input ended, either by
// stream exhaustion or by the explicit null sentinel.
func (d *JSONDeserializer) Deserialize() (interface{}, error) {
	var v interface{}
	if err := d.dec.Decode(&v); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("deserialize json: %w", err)
	}
	if v == nil {
		return nil, io.EOF
	}
	return v, nil
}

// ErrorRecordSerializer wraps a Serializer so that every object leaving it is
// an ErrorRecord, wrapping bare errors and arbitrary objects as needed.
type ErrorRecordSerializer struct {
	inner Serializer
}

// NewErrorRecordSerializer creates an ErrorRecordSerializer over inner.
func NewErrorRecordSerializer(inner Serializer) *ErrorRecordSerializer {
	return &ErrorRecordSerializer{inner: inner}
}

// Serialize forwards obj as an ErrorRecord.
func (s *ErrorRecordSerializer) Serialize(obj interface{}) error {
	switch v := obj.(type) {
	case *objects.ErrorRecord:
		return s.inner.Serialize(v)
	case error:
		return s.inner.Serialize(objects.NewErrorRecord(v, "", uuid.Nil))
	default:
		return s.inner.Serialize(objects.NewErrorRecord(fmt.Errorf("%v", v), "", uuid.Nil))
	}
}
