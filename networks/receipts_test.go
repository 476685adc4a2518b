package networks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// newReceiptRPC serves eth_getTransactionReceipt, returning null for the
// first pendingPolls calls and a receipt afterwards
func newReceiptRPC(t *testing.T, txHash string, pendingPolls int64) (*httptest.Server, *int64) {
	t.Helper()

	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode rpc request: %v", err)
			return
		}
		if req.Method != "eth_getTransactionReceipt" {
			t.Errorf("unexpected rpc method %s", req.Method)
		}

		var result interface{}
		if atomic.AddInt64(&calls, 1) > pendingPolls {
			result = map[string]interface{}{
				"transactionHash":   txHash,
				"transactionIndex":  "0x0",
				"blockHash":         "0x" + strings.Repeat("11", 32),
				"blockNumber":       "0x10",
				"status":            "0x1",
				"type":              "0x0",
				"cumulativeGasUsed": "0x5208",
				"gasUsed":           "0x5208",
				"logsBloom":         "0x" + strings.Repeat("00", 256),
				"logs":              []interface{}{},
				"effectiveGasPrice": "0x3b9aca00",
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestWaitMined(t *testing.T) {
	txHash := "0x" + strings.Repeat("ab", 32)
	server, calls := newReceiptRPC(t, txHash, 2)

	client, err := ethclient.Dial(server.URL)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	receipt, err := WaitMined(context.Background(), client, txHash, 5*time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitMined failed: %v", err)
	}

	if receipt.Status != 1 {
		t.Errorf("Expected status 1, got %d", receipt.Status)
	}
	if receipt.BlockNumber.Int64() != 16 {
		t.Errorf("Expected block 16, got %s", receipt.BlockNumber)
	}

	// Pending polls keep waiting instead of failing
	if got := atomic.LoadInt64(calls); got != 3 {
		t.Errorf("Expected 3 polls, got %d", got)
	}
}

func TestWaitMined_Timeout(t *testing.T) {
	txHash := "0x" + strings.Repeat("cd", 32)
	server, _ := newReceiptRPC(t, txHash, 1<<30)

	client, err := ethclient.Dial(server.URL)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	_, err = WaitMined(context.Background(), client, txHash, 50*time.Millisecond, 10*time.Millisecond)
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
	if !strings.Contains(err.Error(), txHash) {
		t.Errorf("Expected error to name the transaction, got %v", err)
	}
}
