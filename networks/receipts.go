package networks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// WaitMined polls for a transaction receipt until the transaction lands or
// the timeout elapses. A pending transaction keeps polling; any other RPC
// error surfaces immediately.
func WaitMined(ctx context.Context, client *ethclient.Client, txHash string, timeout, interval time.Duration) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to query receipt for %s: %w", txHash, err)
		}

		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("timed out waiting for receipt of %s: %w", txHash, waitCtx.Err())
		case <-ticker.C:
		}
	}
}
