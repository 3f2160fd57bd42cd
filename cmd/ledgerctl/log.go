package main

import (
	"github.com/kaspanet/ledgerd/infrastructure/config"
	"github.com/kaspanet/ledgerd/infrastructure/logger"
	"github.com/kaspanet/ledgerd/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.CTL)
var spawn = panics.GoroutineWrapperFunc(log)

// initLog writes every subsystem to the log files under the configured log
// directory and echoes records of at least stdoutLevel to the terminal.
func initLog(ledgerFlags *config.LedgerFlags, stdoutLevel logger.Level) {
	logger.InitLog(ledgerFlags.LogFile(), ledgerFlags.ErrLogFile(), stdoutLevel)
}
