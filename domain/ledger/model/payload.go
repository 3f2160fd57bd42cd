package model

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

// Payload is the caller-defined content of a block. The ledger never
// interprets it; it only requires that it serializes deterministically.
// Values are whatever encoding/json produces when decoding with UseNumber:
// strings, json.Number, bools, nil, []interface{} and map[string]interface{}.
type Payload map[string]interface{}

// PayloadFrom converts any JSON-serializable value whose encoding is a JSON
// object into a Payload.
func PayloadFrom(value interface{}) (Payload, error) {
	if payload, ok := value.(Payload); ok {
		return payload.Clone(), nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "failed serializing payload")
	}
	return DecodePayload(encoded)
}

// DecodePayload decodes a JSON object into a Payload, keeping numbers as
// json.Number so that their literal text survives a round-trip.
func DecodePayload(encoded []byte) (Payload, error) {
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()
	var payload Payload
	err := decoder.Decode(&payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed decoding payload")
	}
	if payload == nil {
		return nil, errors.New("payload must be a JSON object")
	}
	return payload, nil
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	return cloneValue(map[string]interface{}(p)).(map[string]interface{})
}

// Equal returns whether both payloads hold the same logical content.
func (p Payload) Equal(other Payload) bool {
	return reflect.DeepEqual(map[string]interface{}(p), map[string]interface{}(other))
}

func cloneValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case Payload:
		return Payload(cloneValue(map[string]interface{}(typed)).(map[string]interface{}))
	case map[string]interface{}:
		clone := make(map[string]interface{}, len(typed))
		for key, inner := range typed {
			clone[key] = cloneValue(inner)
		}
		return clone
	case []interface{}:
		clone := make([]interface{}, len(typed))
		for i, inner := range typed {
			clone[i] = cloneValue(inner)
		}
		return clone
	default:
		return value
	}
}
