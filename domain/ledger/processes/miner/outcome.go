package miner

import "fmt"

// OutcomeKind tells whether a proof-of-work search succeeded.
type OutcomeKind int

const (
	// OutcomeFound means the sealed fingerprint satisfies the difficulty.
	OutcomeFound OutcomeKind = iota

	// OutcomeAbandoned means the attempt cap was reached and the block was
	// sealed with the last fingerprint tried.
	OutcomeAbandoned
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// MiningOutcome describes how a block was sealed.
type MiningOutcome struct {
	Kind        OutcomeKind
	Nonce       uint64
	Fingerprint string
	Attempts    uint64
}

// IsFound returns whether the search met the difficulty.
func (o *MiningOutcome) IsFound() bool {
	return o.Kind == OutcomeFound
}

func (o *MiningOutcome) String() string {
	return fmt.Sprintf("%s: nonce %d, fingerprint %s, %d attempts", o.Kind, o.Nonce, o.Fingerprint, o.Attempts)
}
