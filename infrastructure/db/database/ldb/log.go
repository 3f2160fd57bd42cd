package ldb

import "github.com/kaspanet/ledgerd/infrastructure/logger"

var log, _ = logger.Get(logger.SubsystemTags.LVDB)
