// Package enrich implements the EnrichmentPipeline (§4.5): signature
// resolution, log grouping, receipt attachment, ENS resolution, coinbase
// transfer / cost accounting, and native-token USD pricing. Grounded on
// mev_transaction.rs / mev_log_group.rs / mev_log.rs from original_source.
package enrich

import "github.com/mevlog-go/mevlog/internal/model"

// GroupLogs implements the LogGroup grouping rule (§3): logs are assigned to
// groups by iterating in order; consecutive logs sharing a source address
// belong to the same group; a change of source begins a new group. This is
// a partition of the input: concatenating each group's logs in order
// reproduces the original stream (§8's testable property).
func GroupLogs(logs []model.ResolvedLog) []model.LogGroup {
	var groups []model.LogGroup
	for _, l := range logs {
		if len(groups) > 0 && groups[len(groups)-1].SourceAddress == l.Address {
			last := &groups[len(groups)-1]
			last.Logs = append(last.Logs, l)
			continue
		}
		groups = append(groups, model.LogGroup{
			SourceAddress: l.Address,
			Logs:          []model.ResolvedLog{l},
		})
	}
	return groups
}
