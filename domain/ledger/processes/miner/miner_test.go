package miner

import (
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/ruleerrors"
	"github.com/kaspanet/ledgerd/domain/ledger/utils/fingerprint"
	"github.com/kaspanet/ledgerd/util/mstime"
	"github.com/pkg/errors"
)

func genesisPayload() model.Payload {
	return model.Payload{"sender": "System", "receiver": "System", "item": "Genesis Block"}
}

func fixedTime(t *testing.T, s string) TimeSource {
	timestamp, err := mstime.ParseISO(s)
	if err != nil {
		t.Fatalf("ParseISO(%s): %s", s, err)
	}
	return func() time.Time { return timestamp }
}

func TestMine(t *testing.T) {
	tests := []struct {
		name                string
		timestamp           string
		index               uint64
		previousHash        string
		payload             model.Payload
		difficulty          int
		maxAttempts         uint64
		expectedKind        OutcomeKind
		expectedNonce       uint64
		expectedFingerprint string
		expectedAttempts    uint64
	}{
		{
			name:                "genesis found at the first nonce",
			timestamp:           "2024-01-01T00:00:00.099Z",
			previousHash:        model.GenesisPreviousHash,
			payload:             genesisPayload(),
			difficulty:          2,
			maxAttempts:         100000,
			expectedKind:        OutcomeFound,
			expectedNonce:       0,
			expectedFingerprint: "00b6e1ae",
			expectedAttempts:    1,
		},
		{
			name:                "genesis found after a few nonces",
			timestamp:           "2024-01-01T00:00:00.024Z",
			previousHash:        model.GenesisPreviousHash,
			payload:             genesisPayload(),
			difficulty:          2,
			maxAttempts:         100000,
			expectedKind:        OutcomeFound,
			expectedNonce:       10,
			expectedFingerprint: "00ed497f",
			expectedAttempts:    11,
		},
		{
			name:                "transaction",
			timestamp:           "2024-01-01T00:00:00.140Z",
			index:               1,
			previousHash:        "00b6e1ae",
			payload:             model.Payload{"item": "X"},
			difficulty:          2,
			maxAttempts:         100000,
			expectedKind:        OutcomeFound,
			expectedNonce:       100,
			expectedFingerprint: "003a3b52",
			expectedAttempts:    101,
		},
		{
			name:                "zero difficulty accepts the first nonce",
			timestamp:           "2024-01-01T00:00:00.000Z",
			previousHash:        model.GenesisPreviousHash,
			payload:             genesisPayload(),
			difficulty:          0,
			maxAttempts:         1,
			expectedKind:        OutcomeFound,
			expectedNonce:       0,
			expectedFingerprint: "894fe08e",
			expectedAttempts:    1,
		},
		{
			name:                "abandoned at the attempt cap",
			timestamp:           "2024-01-01T00:00:00.000Z",
			previousHash:        model.GenesisPreviousHash,
			payload:             genesisPayload(),
			difficulty:          2,
			maxAttempts:         10,
			expectedKind:        OutcomeAbandoned,
			expectedNonce:       9,
			expectedFingerprint: "894fe097",
			expectedAttempts:    10,
		},
	}

	for _, test := range tests {
		miner, err := New(&Config{
			Difficulty:  test.difficulty,
			MaxAttempts: test.maxAttempts,
			TimeSource:  fixedTime(t, test.timestamp),
		})
		if err != nil {
			t.Fatalf("TestMine: %s: New: %s", test.name, err)
		}

		block, outcome, err := miner.Mine(test.index, test.previousHash, test.payload)
		if err != nil {
			t.Fatalf("TestMine: %s: Mine: %s", test.name, err)
		}
		if outcome.Kind != test.expectedKind || outcome.Nonce != test.expectedNonce ||
			outcome.Fingerprint != test.expectedFingerprint || outcome.Attempts != test.expectedAttempts {
			t.Fatalf("TestMine: %s: unexpected outcome %s", test.name, outcome)
		}
		if block.Hash != outcome.Fingerprint || block.Nonce != outcome.Nonce {
			t.Fatalf("TestMine: %s: block %s does not match outcome %s", test.name, block, outcome)
		}
		if block.Index != test.index || block.PreviousHash != test.previousHash {
			t.Fatalf("TestMine: %s: unexpected block position %s", test.name, block)
		}
		if !block.Data.Equal(test.payload) {
			t.Fatalf("TestMine: %s: payload changed: %s", test.name, spew.Sdump(block.Data))
		}

		recomputed, err := fingerprint.HashBlock(block)
		if err != nil {
			t.Fatalf("TestMine: %s: HashBlock: %s", test.name, err)
		}
		if recomputed != block.Hash {
			t.Fatalf("TestMine: %s: sealed fingerprint %s doesn't match recomputed %s",
				test.name, block.Hash, recomputed)
		}
		if outcome.IsFound() && !fingerprint.HasLeadingZeros(block.Hash, test.difficulty) {
			t.Fatalf("TestMine: %s: found fingerprint %s doesn't satisfy difficulty %d",
				test.name, block.Hash, test.difficulty)
		}
	}
}

func TestMineCapturesTimestampOnce(t *testing.T) {
	calls := 0
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	miner, err := New(&Config{
		Difficulty:  8,
		MaxAttempts: 50,
		TimeSource: func() time.Time {
			calls++
			return start.Add(time.Duration(calls) * time.Second)
		},
	})
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	block, outcome, err := miner.Mine(0, model.GenesisPreviousHash, genesisPayload())
	if err != nil {
		t.Fatalf("Mine: %s", err)
	}
	if calls != 1 {
		t.Fatalf("TestMineCapturesTimestampOnce: the clock was read %d times", calls)
	}
	if !block.Timestamp.Equal(start.Add(time.Second)) {
		t.Fatalf("TestMineCapturesTimestampOnce: unexpected timestamp %s", block.Timestamp)
	}
	if outcome.Attempts != 50 {
		t.Fatalf("TestMineCapturesTimestampOnce: expected 50 attempts, got %d", outcome.Attempts)
	}
}

func TestMineTruncatesToMilliseconds(t *testing.T) {
	timestamp := time.Date(2024, 1, 1, 0, 0, 0, 99999999, time.UTC)
	miner, err := New(&Config{
		Difficulty:  2,
		MaxAttempts: 100000,
		TimeSource:  func() time.Time { return timestamp },
	})
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	block, _, err := miner.Mine(0, model.GenesisPreviousHash, genesisPayload())
	if err != nil {
		t.Fatalf("Mine: %s", err)
	}
	if block.Hash != "00b6e1ae" {
		t.Fatalf("TestMineTruncatesToMilliseconds: expected the fingerprint of .099Z, got %s", block.Hash)
	}
	if block.Timestamp.Nanosecond() != 99000000 {
		t.Fatalf("TestMineTruncatesToMilliseconds: timestamp kept sub-millisecond precision: %s",
			block.Timestamp)
	}
}

func TestNewPreconditions(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected error
	}{
		{name: "negative difficulty", config: &Config{Difficulty: -1, MaxAttempts: 1}, expected: ruleerrors.ErrNegativeDifficulty},
		{name: "difficulty too high", config: &Config{Difficulty: 9, MaxAttempts: 1}, expected: ruleerrors.ErrDifficultyTooHigh},
		{name: "no attempts", config: &Config{Difficulty: 2, MaxAttempts: 0}, expected: ruleerrors.ErrNoMiningAttempts},
	}
	for _, test := range tests {
		_, err := New(test.config)
		if !errors.Is(err, test.expected) {
			t.Errorf("TestNewPreconditions: %s: expected %s but got %v", test.name, test.expected, err)
		}
	}

	_, err := New(&Config{Difficulty: 8, MaxAttempts: 1})
	if err != nil {
		t.Errorf("TestNewPreconditions: difficulty 8 should be accepted: %s", err)
	}
}

func TestMineUnserializablePayload(t *testing.T) {
	miner, err := New(&Config{Difficulty: 1, MaxAttempts: 10})
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	_, _, err = miner.Mine(1, "00b6e1ae", model.Payload{"callback": func() {}})
	if !errors.Is(err, ruleerrors.ErrUnserializablePayload) {
		t.Fatalf("TestMineUnserializablePayload: expected ErrUnserializablePayload, got %v", err)
	}
}

func TestSampleHashesTried(t *testing.T) {
	SampleHashesTried()
	miner, err := New(&Config{Difficulty: 8, MaxAttempts: 25, TimeSource: fixedTime(t, "2024-01-01T00:00:00.000Z")})
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	_, _, err = miner.Mine(0, model.GenesisPreviousHash, genesisPayload())
	if err != nil {
		t.Fatalf("Mine: %s", err)
	}
	if sampled := SampleHashesTried(); sampled != 25 {
		t.Fatalf("TestSampleHashesTried: expected 25 hashes, got %d", sampled)
	}
	if sampled := SampleHashesTried(); sampled != 0 {
		t.Fatalf("TestSampleHashesTried: sampling didn't reset the counter, got %d", sampled)
	}
}
