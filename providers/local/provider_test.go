package local

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/thirdfy/agentkit"
)

const (
	testKeyHex  = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	testAddress = "0x71562b71999873DB5b286dF957af199Ec94617F7"
	recipient   = "0x000000000000000000000000000000000000dEaD"
)

type rpcHandler func(params []json.RawMessage) interface{}

// rpcError makes a handler respond with a JSON-RPC error object
type rpcError struct {
	code    int
	message string
}

// newChainRPC serves a fake EVM JSON-RPC endpoint. Methods without a handler
// fail the test.
func newChainRPC(t *testing.T, handlers map[string]rpcHandler) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode rpc request: %v", err)
			return
		}
		handler, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected rpc method %s", req.Method)
			handler = func([]json.RawMessage) interface{} { return nil }
		}

		response := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch result := handler(req.Params).(type) {
		case rpcError:
			response["error"] = map[string]interface{}{"code": result.code, "message": result.message}
		default:
			response["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)
	return server
}

// signingHandlers covers the RPC calls a transaction signing flow makes and
// records raw transactions submitted through eth_sendRawTransaction
func signingHandlers(rawTxs *[]string) map[string]rpcHandler {
	return map[string]rpcHandler{
		"eth_getTransactionCount": func([]json.RawMessage) interface{} { return "0x7" },
		"eth_gasPrice":            func([]json.RawMessage) interface{} { return "0x3b9aca00" },
		"eth_estimateGas":         func([]json.RawMessage) interface{} { return "0x5208" },
		"eth_sendRawTransaction": func(params []json.RawMessage) interface{} {
			var raw string
			if err := json.Unmarshal(params[0], &raw); err != nil {
				return rpcError{-32602, "bad raw transaction"}
			}
			*rawTxs = append(*rawTxs, raw)
			return nil
		},
	}
}

func newLocalProvider(t *testing.T, rpcURL string, opts ...Option) *Provider {
	t.Helper()

	provider, err := New(context.Background(), Config{
		PrivateKey: "0x" + testKeyHex,
		NetworkID:  "base-sepolia",
		RPCURL:     rpcURL,
	}, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return provider
}

// recoverSigner recovers the address behind a 65-byte signature produced
// with the 27/28 recovery id convention
func recoverSigner(t *testing.T, digest []byte, signature string) string {
	t.Helper()

	sig, err := hexutil.Decode(signature)
	if err != nil {
		t.Fatalf("signature is not valid hex: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("Expected 65-byte signature, got %d", len(sig))
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Fatalf("Expected recovery id 27 or 28, got %d", sig[64])
	}
	sig[64] -= 27

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("failed to recover public key: %v", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex()
}

func TestNew(t *testing.T) {
	provider := newLocalProvider(t, "")

	if provider.GetAddress() != testAddress {
		t.Errorf("Expected address %s, got %s", testAddress, provider.GetAddress())
	}
	if provider.GetName() != ProviderName {
		t.Errorf("Expected provider name %s, got %s", ProviderName, provider.GetName())
	}
	if got := provider.GetNetwork(); got != "eip155:84532" {
		t.Errorf("Expected network eip155:84532, got %s", got)
	}
	if provider.ChainFamily() != agentkit.ChainFamilyEvm {
		t.Errorf("Expected evm chain family, got %s", provider.ChainFamily())
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		code   string
	}{
		{
			name:   "missing private key",
			config: Config{NetworkID: "base-sepolia"},
			code:   agentkit.ErrCodeConfiguration,
		},
		{
			name:   "missing network",
			config: Config{PrivateKey: testKeyHex},
			code:   agentkit.ErrCodeConfiguration,
		},
		{
			name:   "invalid private key",
			config: Config{PrivateKey: "0xnothex", NetworkID: "base-sepolia"},
			code:   agentkit.ErrCodeConfiguration,
		},
		{
			name:   "unknown network",
			config: Config{PrivateKey: testKeyHex, NetworkID: "atlantis"},
			code:   agentkit.ErrCodeUnsupportedChain,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(context.Background(), tc.config)
			if err == nil {
				t.Fatal("Expected error")
			}
			var walletErr *agentkit.WalletError
			if !errors.As(err, &walletErr) {
				t.Fatalf("Expected WalletError, got %T", err)
			}
			if walletErr.Code != tc.code {
				t.Errorf("Expected code %s, got %s", tc.code, walletErr.Code)
			}
		})
	}
}

func TestSignMessage(t *testing.T) {
	provider := newLocalProvider(t, "")

	message := "hello agentkit"
	signature, err := provider.SignMessage(context.Background(), message)
	if err != nil {
		t.Fatalf("SignMessage failed: %v", err)
	}

	digest := accounts.TextHash([]byte(message))
	if signer := recoverSigner(t, digest, signature); signer != testAddress {
		t.Errorf("Expected signer %s, got %s", testAddress, signer)
	}
}

func TestSignHash(t *testing.T) {
	provider := newLocalProvider(t, "")

	digest := crypto.Keccak256([]byte("raw payload"))
	signature, err := provider.SignHash(context.Background(), hexutil.Encode(digest))
	if err != nil {
		t.Fatalf("SignHash failed: %v", err)
	}

	if signer := recoverSigner(t, digest, signature); signer != testAddress {
		t.Errorf("Expected signer %s, got %s", testAddress, signer)
	}
}

func TestSignHash_Invalid(t *testing.T) {
	provider := newLocalProvider(t, "")

	tests := []struct {
		name string
		hash string
	}{
		{"not hex", "zz"},
		{"missing prefix", "abcdef"},
		{"short digest", "0x1234"},
		{"long digest", "0x" + strings.Repeat("ab", 33)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := provider.SignHash(context.Background(), tc.hash)
			if err == nil {
				t.Fatal("Expected error")
			}
			var walletErr *agentkit.WalletError
			if !errors.As(err, &walletErr) {
				t.Fatalf("Expected WalletError, got %T", err)
			}
			if walletErr.Code != agentkit.ErrCodeHashSigning {
				t.Errorf("Expected code %s, got %s", agentkit.ErrCodeHashSigning, walletErr.Code)
			}
		})
	}
}

func TestSignTypedData(t *testing.T) {
	provider := newLocalProvider(t, "")

	fields := map[string][]agentkit.TypedDataField{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"Person": {
			{Name: "name", Type: "string"},
			{Name: "wallet", Type: "address"},
		},
		"Mail": {
			{Name: "from", Type: "Person"},
			{Name: "to", Type: "Person"},
			{Name: "contents", Type: "string"},
		},
	}
	message := map[string]interface{}{
		"from": map[string]interface{}{
			"name":   "Alice",
			"wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
		},
		"to": map[string]interface{}{
			"name":   "Bob",
			"wallet": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB",
		},
		"contents": "Hello, Bob!",
	}

	signature, err := provider.SignTypedData(context.Background(), &agentkit.TypedData{
		PrimaryType: "Mail",
		Domain: agentkit.TypedDataDomain{
			Name:              "Ether Mail",
			Version:           "1",
			ChainID:           big.NewInt(84532),
			VerifyingContract: "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC",
		},
		Types:   fields,
		Message: message,
	})
	if err != nil {
		t.Fatalf("SignTypedData failed: %v", err)
	}

	// Rebuild the digest independently with go-ethereum's own encoder
	mirror := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Person": {
				{Name: "name", Type: "string"},
				{Name: "wallet", Type: "address"},
			},
			"Mail": {
				{Name: "from", Type: "Person"},
				{Name: "to", Type: "Person"},
				{Name: "contents", Type: "string"},
			},
		},
		PrimaryType: "Mail",
		Domain: apitypes.TypedDataDomain{
			Name:              "Ether Mail",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(84532),
			VerifyingContract: "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC",
		},
		Message: message,
	}
	digest, _, err := apitypes.TypedDataAndHash(mirror)
	if err != nil {
		t.Fatalf("failed to hash typed data: %v", err)
	}

	if signer := recoverSigner(t, digest, signature); signer != testAddress {
		t.Errorf("Expected signer %s, got %s", testAddress, signer)
	}
}

func TestSignTypedData_Nil(t *testing.T) {
	provider := newLocalProvider(t, "")

	_, err := provider.SignTypedData(context.Background(), nil)
	if err == nil {
		t.Fatal("Expected error")
	}
	var walletErr *agentkit.WalletError
	if !errors.As(err, &walletErr) {
		t.Fatalf("Expected WalletError, got %T", err)
	}
	if walletErr.Code != agentkit.ErrCodeTypedDataSigning {
		t.Errorf("Expected code %s, got %s", agentkit.ErrCodeTypedDataSigning, walletErr.Code)
	}
}

func TestSignTransaction(t *testing.T) {
	var rawTxs []string
	handlers := signingHandlers(&rawTxs)
	delete(handlers, "eth_sendRawTransaction")
	server := newChainRPC(t, handlers)
	provider := newLocalProvider(t, server.URL)

	raw, err := provider.SignTransaction(context.Background(), &agentkit.TransactionRequest{
		To:    recipient,
		Value: big.NewInt(1000),
	})
	if err != nil {
		t.Fatalf("SignTransaction failed: %v", err)
	}

	rawBytes, err := hexutil.Decode(raw)
	if err != nil {
		t.Fatalf("signed transaction is not valid hex: %v", err)
	}
	var tx types.Transaction
	if err := tx.UnmarshalBinary(rawBytes); err != nil {
		t.Fatalf("failed to decode signed transaction: %v", err)
	}

	if tx.To().Hex() != common.HexToAddress(recipient).Hex() {
		t.Errorf("Expected destination %s, got %s", recipient, tx.To().Hex())
	}
	if tx.Value().Int64() != 1000 {
		t.Errorf("Expected value 1000, got %s", tx.Value())
	}
	if tx.Nonce() != 7 {
		t.Errorf("Expected nonce 7, got %d", tx.Nonce())
	}
	if tx.GasPrice().Int64() != 1000000000 {
		t.Errorf("Expected gas price 1000000000, got %s", tx.GasPrice())
	}
	if tx.Gas() != 21000 {
		t.Errorf("Expected gas limit 21000, got %d", tx.Gas())
	}
	if tx.ChainId().Int64() != 84532 {
		t.Errorf("Expected chain id 84532, got %s", tx.ChainId())
	}

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(84532)), &tx)
	if err != nil {
		t.Fatalf("failed to recover sender: %v", err)
	}
	if sender.Hex() != testAddress {
		t.Errorf("Expected sender %s, got %s", testAddress, sender.Hex())
	}
}

func TestSignTransaction_ExplicitGasLimit(t *testing.T) {
	// No eth_estimateGas handler: an estimate call would fail the test
	server := newChainRPC(t, map[string]rpcHandler{
		"eth_getTransactionCount": func([]json.RawMessage) interface{} { return "0x0" },
		"eth_gasPrice":            func([]json.RawMessage) interface{} { return "0x3b9aca00" },
	})
	provider := newLocalProvider(t, server.URL)

	raw, err := provider.SignTransaction(context.Background(), &agentkit.TransactionRequest{
		To:       recipient,
		GasLimit: "0x7530",
	})
	if err != nil {
		t.Fatalf("SignTransaction failed: %v", err)
	}

	var tx types.Transaction
	rawBytes, _ := hexutil.Decode(raw)
	if err := tx.UnmarshalBinary(rawBytes); err != nil {
		t.Fatalf("failed to decode signed transaction: %v", err)
	}
	if tx.Gas() != 30000 {
		t.Errorf("Expected gas limit 30000, got %d", tx.Gas())
	}
	if tx.Value().Sign() != 0 {
		t.Errorf("Expected zero value, got %s", tx.Value())
	}
}

func TestSignTransaction_Validation(t *testing.T) {
	provider := newLocalProvider(t, "")

	if _, err := provider.SignTransaction(context.Background(), nil); err == nil {
		t.Error("Expected error for nil transaction")
	}
	if _, err := provider.SignTransaction(context.Background(), &agentkit.TransactionRequest{}); err == nil {
		t.Error("Expected error for missing destination")
	}
	_, err := provider.SignTransaction(context.Background(), &agentkit.TransactionRequest{
		To:    recipient,
		Value: big.NewInt(-1),
	})
	if err == nil {
		t.Error("Expected error for negative value")
	}
}

func TestSendTransaction(t *testing.T) {
	var rawTxs []string
	server := newChainRPC(t, signingHandlers(&rawTxs))

	var afterHash string
	hooks := &agentkit.SendHooks{
		After: []agentkit.AfterSendHook{
			func(rc agentkit.SendResultContext) error {
				afterHash = rc.TxHash
				if rc.Sponsored {
					t.Error("Expected unsponsored send context")
				}
				if rc.Provider != ProviderName {
					t.Errorf("Expected provider %s, got %s", ProviderName, rc.Provider)
				}
				return nil
			},
		},
	}
	provider := newLocalProvider(t, server.URL, WithSendHooks(hooks))

	hash, err := provider.SendTransaction(context.Background(), &agentkit.TransactionRequest{
		To:    recipient,
		Value: big.NewInt(1),
	})
	if err != nil {
		t.Fatalf("SendTransaction failed: %v", err)
	}

	if len(rawTxs) != 1 {
		t.Fatalf("Expected 1 broadcast, got %d", len(rawTxs))
	}
	var tx types.Transaction
	rawBytes, _ := hexutil.Decode(rawTxs[0])
	if err := tx.UnmarshalBinary(rawBytes); err != nil {
		t.Fatalf("failed to decode broadcast transaction: %v", err)
	}
	if hash != tx.Hash().Hex() {
		t.Errorf("Expected hash %s, got %s", tx.Hash().Hex(), hash)
	}
	if afterHash != hash {
		t.Errorf("Expected after hook hash %s, got %s", hash, afterHash)
	}
}

func TestSendTransaction_BeforeHookAborts(t *testing.T) {
	// Empty handler map: any RPC call fails the test
	server := newChainRPC(t, map[string]rpcHandler{})

	hooks := &agentkit.SendHooks{
		Before: []agentkit.BeforeSendHook{
			func(sc agentkit.SendContext) (*agentkit.BeforeHookResult, error) {
				return &agentkit.BeforeHookResult{Abort: true, Reason: "budget exhausted"}, nil
			},
		},
	}
	provider := newLocalProvider(t, server.URL, WithSendHooks(hooks))

	_, err := provider.SendTransaction(context.Background(), &agentkit.TransactionRequest{To: recipient})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "budget exhausted") {
		t.Errorf("Expected abort reason in error, got %v", err)
	}
}

func TestSendTransaction_FailureHookRecovers(t *testing.T) {
	var rawTxs []string
	handlers := signingHandlers(&rawTxs)
	handlers["eth_sendRawTransaction"] = func([]json.RawMessage) interface{} {
		return rpcError{-32000, "insufficient funds"}
	}
	server := newChainRPC(t, handlers)

	var observed error
	hooks := &agentkit.SendHooks{
		OnFailure: []agentkit.OnSendFailureHook{
			func(fc agentkit.SendFailureContext) (*agentkit.SendFailureHookResult, error) {
				observed = fc.Error
				return &agentkit.SendFailureHookResult{Recovered: true, TxHash: "0xrecovered"}, nil
			},
		},
	}
	provider := newLocalProvider(t, server.URL, WithSendHooks(hooks))

	hash, err := provider.SendTransaction(context.Background(), &agentkit.TransactionRequest{To: recipient})
	if err != nil {
		t.Fatalf("Expected recovery, got error: %v", err)
	}
	if hash != "0xrecovered" {
		t.Errorf("Expected recovered hash, got %s", hash)
	}
	if observed == nil || !strings.Contains(observed.Error(), "insufficient funds") {
		t.Errorf("Expected broadcast error in failure context, got %v", observed)
	}
}

func TestGetBalance(t *testing.T) {
	server := newChainRPC(t, map[string]rpcHandler{
		"eth_getBalance": func(params []json.RawMessage) interface{} {
			var addr string
			if err := json.Unmarshal(params[0], &addr); err != nil {
				return rpcError{-32602, "bad address"}
			}
			if common.HexToAddress(addr) != common.HexToAddress(testAddress) {
				return rpcError{-32602, "unexpected address"}
			}
			return "0x38d7ea4c68000"
		},
	})
	provider := newLocalProvider(t, server.URL)

	balance, err := provider.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance.String() != "1000000000000000" {
		t.Errorf("Expected balance 1000000000000000, got %s", balance)
	}
}

func TestNativeTransfer(t *testing.T) {
	var rawTxs []string
	handlers := signingHandlers(&rawTxs)
	handlers["eth_getTransactionReceipt"] = func(params []json.RawMessage) interface{} {
		var hash string
		if err := json.Unmarshal(params[0], &hash); err != nil {
			return rpcError{-32602, "bad hash"}
		}
		return map[string]interface{}{
			"transactionHash":   hash,
			"transactionIndex":  "0x0",
			"blockHash":         "0x" + strings.Repeat("22", 32),
			"blockNumber":       "0x20",
			"status":            "0x1",
			"type":              "0x0",
			"cumulativeGasUsed": "0x5208",
			"gasUsed":           "0x5208",
			"logsBloom":         "0x" + strings.Repeat("00", 256),
			"logs":              []interface{}{},
			"effectiveGasPrice": "0x3b9aca00",
		}
	}
	server := newChainRPC(t, handlers)
	provider := newLocalProvider(t, server.URL)

	hash, err := provider.NativeTransfer(context.Background(), recipient, big.NewInt(42))
	if err != nil {
		t.Fatalf("NativeTransfer failed: %v", err)
	}

	if len(rawTxs) != 1 {
		t.Fatalf("Expected 1 broadcast, got %d", len(rawTxs))
	}
	var tx types.Transaction
	rawBytes, _ := hexutil.Decode(rawTxs[0])
	if err := tx.UnmarshalBinary(rawBytes); err != nil {
		t.Fatalf("failed to decode broadcast transaction: %v", err)
	}
	if hash != tx.Hash().Hex() {
		t.Errorf("Expected hash %s, got %s", tx.Hash().Hex(), hash)
	}
	if tx.Value().Int64() != 42 {
		t.Errorf("Expected value 42, got %s", tx.Value())
	}
}

func TestQuantityToBig(t *testing.T) {
	tests := []struct {
		name     string
		quantity agentkit.Quantity
		want     string
		wantNil  bool
		wantErr  bool
	}{
		{name: "nil", quantity: nil, wantNil: true},
		{name: "empty string", quantity: "", wantNil: true},
		{name: "big int", quantity: big.NewInt(1000), want: "1000"},
		{name: "hex string", quantity: "0x10", want: "16"},
		{name: "decimal string", quantity: "250", want: "250"},
		{name: "negative", quantity: big.NewInt(-5), wantErr: true},
		{name: "garbage", quantity: "lots", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := quantityToBig(tc.quantity)
			if tc.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("quantityToBig failed: %v", err)
			}
			if tc.wantNil {
				if got != nil {
					t.Errorf("Expected nil, got %s", got)
				}
				return
			}
			if got.String() != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}
}
