package realm

import (
	"github.com/realmesh/go-realmesh/metrics"
)

const subsystem = "realm"

var activeRealms = metrics.NewGauge(
	"active",
	subsystem,
	"Number of realms with a running subscription",
	[]string{},
).WithLabelValues()
