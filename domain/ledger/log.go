package ledger

import (
	"github.com/kaspanet/ledgerd/infrastructure/logger"
	"github.com/kaspanet/ledgerd/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.LDGR)
var spawn = panics.GoroutineWrapperFunc(log)
