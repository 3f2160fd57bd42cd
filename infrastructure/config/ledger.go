// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/kaspanet/ledgerd/domain/ledgerconfig"
	"github.com/kaspanet/ledgerd/infrastructure/logger"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilename = "ledgerd.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "ledgerd.log"
	defaultErrLogFilename = "ledgerd_err.log"

	unsetDifficulty = -1
)

var (
	// DefaultHomeDir is the default home directory for ledgerd.
	DefaultHomeDir = btcutil.AppDataDir("ledgerd", false)

	defaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(DefaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(DefaultHomeDir, defaultLogDirname)
)

// LedgerFlags holds the options shared by every command that opens a
// ledger: where it lives, how it logs and which parameters it runs with.
type LedgerFlags struct {
	ConfigFile         string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir            string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir             string `long:"logdir" description:"Directory to log output."`
	DebugLevel         string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Simnet             bool   `long:"simnet" description:"Use the simulation parameters: difficulty 1 and a small attempt cap"`
	Difficulty         int    `long:"difficulty" default:"-1" default-mask:"-" description:"Number of leading zero hex digits to mine for (0-8, defaults to the selected parameters)"`
	MaxAttempts        uint64 `long:"max-attempts" description:"Number of nonces to try before sealing a block below difficulty (defaults to the selected parameters)"`
	BaselineValidation bool   `long:"baseline-validation" description:"Trust the genesis block instead of re-deriving it during validation"`
	OverrideParamsFile string `long:"override-params-file" description:"JSON file overriding the ledger parameters"`
	MemDB              bool   `long:"memdb" description:"Keep the chain in memory only"`

	ActiveParams *ledgerconfig.Params
}

// ResolveLedger merges the configuration file into the flags, fills in the
// default directories, applies the log levels and computes ActiveParams.
// Flags given on the command line take precedence over the configuration
// file, which takes precedence over the selected parameters.
func (ledgerFlags *LedgerFlags) ResolveLedger() error {
	err := ledgerFlags.mergeConfigFile()
	if err != nil {
		return err
	}

	if ledgerFlags.DataDir == "" {
		ledgerFlags.DataDir = defaultDataDir
	}
	if ledgerFlags.LogDir == "" {
		ledgerFlags.LogDir = defaultLogDir
	}
	ledgerFlags.DataDir = cleanAndExpandPath(ledgerFlags.DataDir)
	ledgerFlags.LogDir = cleanAndExpandPath(ledgerFlags.LogDir)
	if ledgerFlags.DebugLevel == "" {
		ledgerFlags.DebugLevel = defaultLogLevel
	}

	if ledgerFlags.DebugLevel == "show" {
		return errors.Errorf("Supported subsystems %s", strings.Join(logger.SupportedSubsystems(), ", "))
	}
	err = logger.ParseAndSetLogLevels(ledgerFlags.DebugLevel)
	if err != nil {
		return err
	}

	params := ledgerconfig.DefaultParams.Clone()
	if ledgerFlags.Simnet {
		params = ledgerconfig.SimnetParams.Clone()
	}
	ledgerFlags.ActiveParams = params

	err = ledgerFlags.overrideParams()
	if err != nil {
		return err
	}
	if ledgerFlags.Difficulty != unsetDifficulty {
		params.Difficulty = ledgerFlags.Difficulty
	}
	if ledgerFlags.MaxAttempts != 0 {
		params.MaxMiningAttempts = ledgerFlags.MaxAttempts
	}
	if ledgerFlags.BaselineValidation {
		params.VerifyGenesis = false
	}

	err = params.Validate()
	if err != nil {
		return errors.Wrap(err, "invalid ledger parameters")
	}
	log.Debugf("Resolved %s ledger parameters: difficulty %d, attempt cap %d, genesis verification %t",
		params.Name, params.Difficulty, params.MaxMiningAttempts, params.VerifyGenesis)
	return nil
}

// Params returns the parameters computed by ResolveLedger.
func (ledgerFlags *LedgerFlags) Params() *ledgerconfig.Params {
	return ledgerFlags.ActiveParams
}

// DatabasePath returns the directory of the chain database.
func (ledgerFlags *LedgerFlags) DatabasePath() string {
	return filepath.Join(ledgerFlags.DataDir, ledgerFlags.ActiveParams.Name)
}

// LogFile returns the path of the main log file.
func (ledgerFlags *LedgerFlags) LogFile() string {
	return filepath.Join(ledgerFlags.LogDir, defaultLogFilename)
}

// ErrLogFile returns the path of the log file that only receives warnings
// and errors.
func (ledgerFlags *LedgerFlags) ErrLogFile() string {
	return filepath.Join(ledgerFlags.LogDir, defaultErrLogFilename)
}

// mergeConfigFile fills every option left unset on the command line from
// the configuration file. A missing default configuration file is not an
// error; a missing explicit one is.
func (ledgerFlags *LedgerFlags) mergeConfigFile() error {
	configFile := ledgerFlags.ConfigFile
	if configFile == "" {
		configFile = defaultConfigFile
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil
		}
	}
	configFile = cleanAndExpandPath(configFile)

	fileFlags := &LedgerFlags{Difficulty: unsetDifficulty}
	parser := flags.NewParser(fileFlags, flags.IgnoreUnknown)
	err := flags.NewIniParser(parser).ParseFile(configFile)
	if err != nil {
		return errors.Wrapf(err, "failed parsing configuration file %s", configFile)
	}
	log.Debugf("Loaded configuration file %s", configFile)

	CombineLedgerFlags(ledgerFlags, fileFlags)
	return nil
}

// CombineLedgerFlags copies into dst every option of src that dst leaves
// unset.
func CombineLedgerFlags(dst, src *LedgerFlags) {
	if dst.DataDir == "" {
		dst.DataDir = src.DataDir
	}
	if dst.LogDir == "" {
		dst.LogDir = src.LogDir
	}
	if dst.DebugLevel == "" {
		dst.DebugLevel = src.DebugLevel
	}
	dst.Simnet = dst.Simnet || src.Simnet
	if dst.Difficulty == unsetDifficulty {
		dst.Difficulty = src.Difficulty
	}
	if dst.MaxAttempts == 0 {
		dst.MaxAttempts = src.MaxAttempts
	}
	dst.BaselineValidation = dst.BaselineValidation || src.BaselineValidation
	if dst.OverrideParamsFile == "" {
		dst.OverrideParamsFile = src.OverrideParamsFile
	}
	dst.MemDB = dst.MemDB || src.MemDB
	if dst.ConfigFile == "" {
		dst.ConfigFile = src.ConfigFile
	}
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
