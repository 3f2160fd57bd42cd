package serialization

import (
	"bytes"
	"encoding/json"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/ruleerrors"
	"github.com/pkg/errors"
)

// CanonicalPayload renders payload as compact JSON with the keys of every
// object sorted, so that two payloads with the same content always render
// the same way regardless of how they were built.
//
// Numbers keep their literal text when they are json.Number values, which
// is how payloads read back from storage carry them.
func CanonicalPayload(payload model.Payload) (string, error) {
	if payload == nil {
		return "", errors.Wrap(ruleerrors.ErrUnserializablePayload, "payload is nil")
	}

	// Re-decoding normalizes nested structs and typed maps into generic
	// maps, which encoding/json always renders with sorted keys.
	encoded, err := encode(map[string]interface{}(payload))
	if err != nil {
		return "", errors.Wrap(ruleerrors.ErrUnserializablePayload, err.Error())
	}
	normalized, err := model.DecodePayload(encoded)
	if err != nil {
		return "", errors.Wrap(ruleerrors.ErrUnserializablePayload, err.Error())
	}
	canonical, err := encode(map[string]interface{}(normalized))
	if err != nil {
		return "", errors.Wrap(ruleerrors.ErrUnserializablePayload, err.Error())
	}
	return string(canonical), nil
}

func encode(value interface{}) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	err := encoder.Encode(value)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buffer.Bytes(), []byte("\n")), nil
}
