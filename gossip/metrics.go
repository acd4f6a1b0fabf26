package gossip

import (
	"github.com/realmesh/go-realmesh/metrics"
)

const subsystem = "gossip"

var (
	messagesReceived = metrics.NewCounter(
		"messages_received",
		subsystem,
		"number of verified gossip messages handled",
		[]string{"type"},
	)

	changesApplied = metrics.NewCounter(
		"changes_applied",
		subsystem,
		"number of change blobs handed to the CRDT engine",
		[]string{},
	).WithLabelValues()

	changesDeduplicated = metrics.NewCounter(
		"changes_deduplicated",
		subsystem,
		"number of change blobs dropped as already applied",
		[]string{},
	).WithLabelValues()

	catchupRequests = metrics.NewCounter(
		"catchup_requests",
		subsystem,
		"number of sync requests emitted after falling behind announced heads",
		[]string{},
	).WithLabelValues()

	catchupResponses = metrics.NewCounter(
		"catchup_responses",
		subsystem,
		"number of deltas broadcast in response to sync requests",
		[]string{},
	).WithLabelValues()
)
