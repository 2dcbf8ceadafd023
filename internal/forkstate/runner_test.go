package forkstate

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mevlog-go/mevlog/internal/model"
)

// counterBackend simulates state that advances with each executed
// transaction: every Execute call records the counter value it observed
// (i.e. how many prior transactions have committed) and then increments it.
type counterBackend struct {
	counter  int
	observed []int
	failAt   int // -1 disables
	coinbase common.Address
}

func (b *counterBackend) Execute(ctx context.Context, block BlockEnv, tx TxEnv) (TxResult, error) {
	b.coinbase = block.Coinbase
	if len(b.observed) == b.failAt {
		b.observed = append(b.observed, -1)
		return TxResult{}, errors.New("simulated trace failure")
	}
	b.observed = append(b.observed, b.counter)
	b.counter++
	return TxResult{}, nil
}

func TestRunBlockExecutesSequentiallyAndCommitsInOrder(t *testing.T) {
	backend := &counterBackend{failAt: -1}
	r := &Runner{Backend: backend}

	txs := []model.RawTx{{Index: 0}, {Index: 1}, {Index: 2}}
	_, errs := r.RunBlock(context.Background(), BlockEnv{}, txs)

	for _, e := range errs {
		require.NoError(t, e)
	}
	// Each tx observed one more committed predecessor than the last,
	// proving executing up to j sees i<j's committed effects (§8).
	require.Equal(t, []int{0, 1, 2}, backend.observed)
}

func TestRunBlockRecordsPerTxErrorWithoutAbortingBlock(t *testing.T) {
	backend := &counterBackend{failAt: 1}
	r := &Runner{Backend: backend}

	txs := []model.RawTx{{Index: 0}, {Index: 1}, {Index: 2}}
	_, errs := r.RunBlock(context.Background(), BlockEnv{}, txs)

	require.NoError(t, errs[0])
	require.Error(t, errs[1])
	require.NoError(t, errs[2])
	// tx 2 still executes (not aborted by tx 1's failure) and still only
	// observes tx 0's commit (tx 1 never committed since it errored).
	require.Equal(t, []int{0, -1, 1}, backend.observed)
}

func TestCoinbaseEnvPassedThrough(t *testing.T) {
	beneficiary := common.HexToAddress("0xcc")
	backend := &counterBackend{failAt: -1}
	r := &Runner{Backend: backend}
	_, errs := r.RunBlock(context.Background(), BlockEnv{Coinbase: beneficiary}, []model.RawTx{{}})
	require.NoError(t, errs[0])
	require.Equal(t, beneficiary, backend.coinbase)
}
