package serialization

import (
	"encoding/json"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/ruleerrors"
	"github.com/kaspanet/ledgerd/util/mstime"
	"github.com/pkg/errors"
)

// blockDocument is the persisted form of a block.
type blockDocument struct {
	Index        uint64          `json:"index"`
	Timestamp    string          `json:"timestamp"`
	Data         json.RawMessage `json:"data"`
	PreviousHash string          `json:"previousHash"`
	Hash         string          `json:"hash"`
	Nonce        uint64          `json:"nonce"`
}

// SerializeBlock encodes block as a block document.
func SerializeBlock(block *model.Block) ([]byte, error) {
	if block == nil {
		return nil, errors.WithStack(ruleerrors.ErrNilBlock)
	}
	data, err := CanonicalPayload(block.Data)
	if err != nil {
		return nil, err
	}
	document := blockDocument{
		Index:        block.Index,
		Timestamp:    mstime.FormatISO(block.Timestamp),
		Data:         json.RawMessage(data),
		PreviousHash: block.PreviousHash,
		Hash:         block.Hash,
		Nonce:        block.Nonce,
	}
	return encode(&document)
}

// DeserializeBlock decodes a block document. Documents with missing or
// malformed fields are rejected with ErrInvalidBlockDocument.
func DeserializeBlock(serialized []byte) (*model.Block, error) {
	var document blockDocument
	err := json.Unmarshal(serialized, &document)
	if err != nil {
		return nil, errors.Wrap(ruleerrors.ErrInvalidBlockDocument, err.Error())
	}
	if document.Timestamp == "" {
		return nil, errors.Wrap(ruleerrors.ErrInvalidBlockDocument, "missing timestamp")
	}
	timestamp, err := mstime.ParseISO(document.Timestamp)
	if err != nil {
		return nil, errors.Wrap(ruleerrors.ErrInvalidBlockDocument, err.Error())
	}
	if len(document.Data) == 0 {
		return nil, errors.Wrap(ruleerrors.ErrInvalidBlockDocument, "missing data")
	}
	data, err := model.DecodePayload(document.Data)
	if err != nil {
		return nil, errors.Wrap(ruleerrors.ErrInvalidBlockDocument, err.Error())
	}

	return &model.Block{
		Index:        document.Index,
		Timestamp:    timestamp,
		Data:         data,
		PreviousHash: document.PreviousHash,
		Hash:         document.Hash,
		Nonce:        document.Nonce,
	}, nil
}
