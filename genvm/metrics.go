package genvm

import (
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	runTimer       = metrics.NewRegisteredTimer("genvm/run", nil)
	runFailCounter = metrics.NewRegisteredCounter("genvm/run/fail", nil)
	activeRuns     = metrics.NewRegisteredGauge("genvm/run/active", nil)

	// Bytes requested/written through the StateProxy, per invocation stream.
	storageReadMeter  = metrics.NewRegisteredMeter("genvm/storage/read", nil)
	storageWriteMeter = metrics.NewRegisteredMeter("genvm/storage/write", nil)
)
