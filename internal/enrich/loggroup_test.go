package enrich

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mevlog-go/mevlog/internal/model"
)

func resolvedLog(addr common.Address) model.ResolvedLog {
	return model.ResolvedLog{RawLog: model.RawLog{Address: addr}}
}

func TestGroupLogsConsecutiveSourceRule(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")

	logs := []model.ResolvedLog{
		resolvedLog(a), resolvedLog(a), resolvedLog(b), resolvedLog(a),
	}
	groups := GroupLogs(logs)
	require.Len(t, groups, 3)
	require.Len(t, groups[0].Logs, 2)
	require.Len(t, groups[1].Logs, 1)
	require.Len(t, groups[2].Logs, 1)
}

// TestGroupLogsPartitionProperty verifies §8: concatenating each group's
// logs in order reproduces the original stream.
func TestGroupLogsPartitionProperty(t *testing.T) {
	addrs := []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02"), common.HexToAddress("0x03")}
	var logs []model.ResolvedLog
	pattern := []int{0, 0, 1, 1, 1, 2, 0, 0}
	for _, idx := range pattern {
		logs = append(logs, resolvedLog(addrs[idx]))
	}

	groups := GroupLogs(logs)

	var reconstructed []model.ResolvedLog
	for _, g := range groups {
		reconstructed = append(reconstructed, g.Logs...)
	}
	require.Equal(t, logs, reconstructed)
}

func TestGroupLogsEmpty(t *testing.T) {
	require.Empty(t, GroupLogs(nil))
}
