package config

import (
	"encoding/json"
	"os"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/pkg/errors"
)

// overrideParamsConfig is the content of an override-params-file. Absent
// fields leave the selected parameters untouched.
type overrideParamsConfig struct {
	Difficulty        *int          `json:"difficulty"`
	MaxMiningAttempts *uint64       `json:"maxMiningAttempts"`
	BlockIDPrefix     *string       `json:"blockIdPrefix"`
	Collection        *string       `json:"collection"`
	GenesisPayload    model.Payload `json:"genesisPayload"`
	VerifyGenesis     *bool         `json:"verifyGenesis"`
}

func (ledgerFlags *LedgerFlags) overrideParams() error {
	if ledgerFlags.OverrideParamsFile == "" {
		return nil
	}

	overrideParamsFile, err := os.Open(cleanAndExpandPath(ledgerFlags.OverrideParamsFile))
	if err != nil {
		return errors.Wrap(err, "failed opening override-params-file")
	}
	defer overrideParamsFile.Close()

	decoder := json.NewDecoder(overrideParamsFile)
	decoder.UseNumber()
	decoder.DisallowUnknownFields()
	config := &overrideParamsConfig{}
	err = decoder.Decode(config)
	if err != nil {
		return errors.Wrapf(err, "failed decoding %s", ledgerFlags.OverrideParamsFile)
	}

	params := ledgerFlags.ActiveParams
	if config.Difficulty != nil {
		params.Difficulty = *config.Difficulty
	}

	if config.MaxMiningAttempts != nil {
		params.MaxMiningAttempts = *config.MaxMiningAttempts
	}

	if config.BlockIDPrefix != nil {
		params.BlockIDPrefix = *config.BlockIDPrefix
	}

	if config.Collection != nil {
		params.Collection = *config.Collection
	}

	if config.GenesisPayload != nil {
		params.GenesisPayload = config.GenesisPayload
	}

	if config.VerifyGenesis != nil {
		params.VerifyGenesis = *config.VerifyGenesis
	}

	params.Name += "-override"
	log.Infof("Ledger parameters overridden by %s", ledgerFlags.OverrideParamsFile)
	return nil
}
