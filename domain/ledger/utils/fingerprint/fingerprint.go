package fingerprint

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/utils/serialization"
	"github.com/kaspanet/ledgerd/util/mstime"
)

// Length is the number of hex digits in a fingerprint.
const Length = 8

const multiplier = 31

// Digest maps a string to its fingerprint: a 31-based rolling hash over the
// UTF-16 code units of s, accumulated in a wrapping int32 and rendered as
// eight lowercase hex digits of its unsigned value.
//
// The digest is not cryptographic. It only makes accidental or careless
// edits of a block visible.
func Digest(s string) string {
	return newAccumulator().write(s).String()
}

// HasLeadingZeros returns whether fingerprint starts with at least
// difficulty '0' digits.
func HasLeadingZeros(fingerprint string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if difficulty > len(fingerprint) {
		return false
	}
	return strings.Count(fingerprint[:difficulty], "0") == difficulty
}

// LeadingZeros returns the number of leading '0' digits of fingerprint.
func LeadingZeros(fingerprint string) int {
	return len(fingerprint) - len(strings.TrimLeft(fingerprint, "0"))
}

// BlockFingerprint computes the fingerprint of a block with the given
// fields. The payload is digested in its canonical form.
func BlockFingerprint(index uint64, previousHash string, timestamp time.Time,
	payload model.Payload, nonce uint64) (string, error) {

	prefix, err := NewBlockPrefix(index, previousHash, timestamp, payload)
	if err != nil {
		return "", err
	}
	return BlockFingerprintFromPrefix(prefix, nonce), nil
}

// HashBlock computes the fingerprint block should carry according to its
// other fields.
func HashBlock(block *model.Block) (string, error) {
	return BlockFingerprint(block.Index, block.PreviousHash, block.Timestamp, block.Data, block.Nonce)
}

// BlockPrefix is the digest state over every nonce-independent field of a
// block. Since the nonce is the last field digested, the state can be
// shared by every mining attempt of that block.
type BlockPrefix struct {
	acc accumulator
}

// NewBlockPrefix digests index, previousHash, timestamp and the canonical
// form of payload.
func NewBlockPrefix(index uint64, previousHash string, timestamp time.Time,
	payload model.Payload) (*BlockPrefix, error) {

	canonicalPayload, err := serialization.CanonicalPayload(payload)
	if err != nil {
		return nil, err
	}
	return NewBlockPrefixFromCanonical(index, previousHash, timestamp, canonicalPayload), nil
}

// NewBlockPrefixFromCanonical is NewBlockPrefix for a payload that was
// canonicalized by the caller.
func NewBlockPrefixFromCanonical(index uint64, previousHash string, timestamp time.Time,
	canonicalPayload string) *BlockPrefix {

	acc := newAccumulator().
		write(strconv.FormatUint(index, 10)).
		write(previousHash).
		write(mstime.FormatISO(timestamp)).
		write(canonicalPayload)
	return &BlockPrefix{acc: acc}
}

// BlockFingerprintFromPrefix completes prefix with nonce and returns the
// resulting block fingerprint.
func BlockFingerprintFromPrefix(prefix *BlockPrefix, nonce uint64) string {
	return prefix.acc.write(strconv.FormatUint(nonce, 10)).String()
}

type accumulator int32

func newAccumulator() accumulator {
	return 0
}

func (a accumulator) write(s string) accumulator {
	for _, r := range s {
		if r < 0x10000 {
			a = a*multiplier + accumulator(r)
			continue
		}
		high, low := utf16.EncodeRune(r)
		a = a*multiplier + accumulator(high)
		a = a*multiplier + accumulator(low)
	}
	return a
}

func (a accumulator) String() string {
	return fmt.Sprintf("%08x", uint32(a))
}
