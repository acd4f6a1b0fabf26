package peers

import (
	"github.com/realmesh/go-realmesh/metrics"
)

const subsystem = "peers"

var trackedPeers = metrics.NewGauge(
	"tracked",
	subsystem,
	"Number of peers in the registry",
	[]string{},
).WithLabelValues()
