package feed

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// MessageProperties carries the namespace a message originated from. Both
// fields are "unknown" when the source event carried no namespace (e.g. a
// change-stream invalidate event).
type MessageProperties struct {
	DatabaseName   string
	CollectionName string
}

const unknownNamespace = "unknown"

func unknownProperties() MessageProperties {
	return MessageProperties{DatabaseName: unknownNamespace, CollectionName: unknownNamespace}
}

// Message is the value handed to a subscription's listener. Body is
// resolved lazily: nothing is converted until Body() is called.
type Message interface {
	Raw() map[string]interface{}
	Body() (interface{}, error)
	Properties() MessageProperties
}

// lazyMessage is the concrete Message implementation. It delegates Raw and
// Properties and computes Body on demand, per the four-step rule: already
// the right type, or nil, passes through; a generic document converts via
// the Converter; otherwise the conversion service is asked; otherwise it's
// a conversion error naming both types.
type lazyMessage struct {
	raw        map[string]interface{}
	body       interface{}
	properties MessageProperties
	target     reflect.Type
	converter  Converter
}

// NewMessage builds a Message whose Body() lazily converts body into
// target using converter. raw and body may be nil. converter may be nil,
// in which case a generic document body is returned unconverted and any
// other body whose type differs from target is an error.
func NewMessage(raw map[string]interface{}, body interface{}, properties MessageProperties, target reflect.Type, converter Converter) Message {
	return &lazyMessage{raw: raw, body: body, properties: properties, target: target, converter: converter}
}

func (m *lazyMessage) Raw() map[string]interface{} { return m.raw }

func (m *lazyMessage) Properties() MessageProperties { return m.properties }

func (m *lazyMessage) Body() (interface{}, error) {
	if m.body == nil {
		return nil, nil
	}
	if m.target == nil || m.target == reflect.TypeOf(m.body) {
		return m.body, nil
	}
	if asMap, ok := m.body.(map[string]interface{}); ok {
		if m.converter == nil {
			return asMap, nil
		}
		converted, err := m.converter.Read(m.target, asMap)
		if err != nil {
			return nil, fmt.Errorf("feed: converting body to %s: %w", m.target, err)
		}
		return converted, nil
	}
	if m.converter != nil && m.converter.CanConvert(reflect.TypeOf(m.body), m.target) {
		converted, err := m.converter.Convert(m.body, m.target)
		if err != nil {
			return nil, fmt.Errorf("feed: converting body to %s: %w", m.target, err)
		}
		return converted, nil
	}
	return nil, fmt.Errorf("feed: no converter from %T to %s", m.body, m.target)
}

// Converter mirrors the object mapper's read-into-target-type and generic
// conversion service, the two external collaborators a lazy message needs.
type Converter interface {
	// Read decodes a generic document into a new value of the target type.
	Read(target reflect.Type, doc map[string]interface{}) (interface{}, error)
	// CanConvert reports whether Convert can turn a value of type from
	// into a value of type to.
	CanConvert(from, to reflect.Type) bool
	// Convert performs the conversion CanConvert advertised as possible.
	Convert(value interface{}, to reflect.Type) (interface{}, error)
}

// JSONConverter is the default Converter. It round-trips through
// encoding/json, the (de)serialization boundary the rest of this codebase
// already uses everywhere (the HTTP client, the server handlers, oplog
// entries) — no reflection-based mapping library is warranted for it.
type JSONConverter struct{}

func (JSONConverter) Read(target reflect.Type, doc map[string]interface{}) (interface{}, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal source document: %w", err)
	}
	out := reflect.New(target)
	if err := json.Unmarshal(data, out.Interface()); err != nil {
		return nil, fmt.Errorf("unmarshal into %s: %w", target, err)
	}
	return out.Elem().Interface(), nil
}

// CanConvert always reports true: Convert round-trips any value through
// encoding/json, and a value that does not fit the target type fails there.
func (JSONConverter) CanConvert(from, to reflect.Type) bool { return true }

func (c JSONConverter) Convert(value interface{}, to reflect.Type) (interface{}, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal source value: %w", err)
	}
	out := reflect.New(to)
	if err := json.Unmarshal(data, out.Interface()); err != nil {
		return nil, fmt.Errorf("unmarshal into %s: %w", to, err)
	}
	return out.Elem().Interface(), nil
}
