package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/thirdfy/agentkit"
)

// ServerConfig names the MCP server implementation
type ServerConfig struct {
	Name    string
	Version string
}

const (
	defaultServerName    = "agentkit-wallet"
	defaultServerVersion = "0.1.0"
)

type server struct {
	toolkit *agentkit.Toolkit
}

// NewWalletToolServer builds an MCP server exposing the toolkit's wallet
// operations as tools. The caller owns the transport; connect the returned
// server to stdio, SSE, or an in-process session.
func NewWalletToolServer(toolkit *agentkit.Toolkit, config ServerConfig) (*mcpsdk.Server, error) {
	if toolkit == nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			"toolkit is required", nil)
	}

	name := config.Name
	if name == "" {
		name = defaultServerName
	}
	version := config.Version
	if version == "" {
		version = defaultServerVersion
	}

	s := &server{toolkit: toolkit}
	mcpServer := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    name,
		Version: version,
	}, nil)

	mcpServer.AddTool(&mcpsdk.Tool{
		Name:        "get_wallet_address",
		Description: "Get the wallet address for a network.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"network": {"type": "string", "description": "CAIP-2 network identifier, e.g. eip155:84532. Optional when one provider is registered."}
			}
		}`),
	}, s.handleGetWalletAddress)

	mcpServer.AddTool(&mcpsdk.Tool{
		Name:        "get_balance",
		Description: "Get the wallet's native token balance in base units (wei or lamports).",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"network": {"type": "string", "description": "CAIP-2 network identifier. Optional when one provider is registered."}
			}
		}`),
	}, s.handleGetBalance)

	mcpServer.AddTool(&mcpsdk.Tool{
		Name:        "sign_message",
		Description: "Sign a human-readable message with the wallet key.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"network": {"type": "string", "description": "CAIP-2 network identifier. Optional when one provider is registered."},
				"message": {"type": "string", "description": "The message to sign."}
			},
			"required": ["message"]
		}`),
	}, s.handleSignMessage)

	mcpServer.AddTool(&mcpsdk.Tool{
		Name:        "send_transaction",
		Description: "Sign and submit a transaction, returning its hash. The value is a decimal amount in display units (ether or SOL).",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"network": {"type": "string", "description": "CAIP-2 network identifier. Optional when one provider is registered."},
				"to": {"type": "string", "description": "Destination address."},
				"value": {"type": "string", "description": "Decimal amount in display units, e.g. \"0.05\". Omit for zero."},
				"data": {"type": "string", "description": "0x-prefixed calldata (EVM only)."},
				"gas_limit": {"type": "string", "description": "Gas limit as a decimal or 0x-prefixed string. Omit to estimate."}
			},
			"required": ["to"]
		}`),
	}, s.handleSendTransaction)

	mcpServer.AddTool(&mcpsdk.Tool{
		Name:        "native_transfer",
		Description: "Send the native token to an address and wait for the transfer to land. The amount is a decimal in display units.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"network": {"type": "string", "description": "CAIP-2 network identifier. Optional when one provider is registered."},
				"to": {"type": "string", "description": "Recipient address."},
				"amount": {"type": "string", "description": "Decimal amount in display units, e.g. \"0.25\"."}
			},
			"required": ["to", "amount"]
		}`),
	}, s.handleNativeTransfer)

	mcpServer.AddTool(&mcpsdk.Tool{
		Name:        "read_contract",
		Description: "Call a read-only contract method on an EVM network and return the decoded result.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"network": {"type": "string", "description": "CAIP-2 network identifier. Optional when one provider is registered."},
				"address": {"type": "string", "description": "Contract address."},
				"abi": {"type": "string", "description": "Contract ABI as a JSON string."},
				"method": {"type": "string", "description": "Method name to call."},
				"args": {"type": "array", "description": "Method arguments. Addresses and large integers as strings."}
			},
			"required": ["address", "abi", "method"]
		}`),
	}, s.handleReadContract)

	mcpServer.AddTool(&mcpsdk.Tool{
		Name:        "export_wallet",
		Description: "Export the wallet's identity and authorization credential for later reconstruction. The result contains the key secret; handle it like a credential.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"network": {"type": "string", "description": "CAIP-2 network identifier. Optional when one provider is registered."}
			}
		}`),
	}, s.handleExportWallet)

	return mcpServer, nil
}

func (s *server) handleGetWalletAddress(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args networkArgs
	if bad := unmarshalArgs(req, &args); bad != nil {
		return bad, nil
	}

	provider, err := s.provider(args.Network)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(provider.GetAddress()), nil
}

func (s *server) handleGetBalance(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args networkArgs
	if bad := unmarshalArgs(req, &args); bad != nil {
		return bad, nil
	}

	provider, err := s.provider(args.Network)
	if err != nil {
		return errorResult(err), nil
	}

	balance, err := provider.GetBalance(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(balance.String()), nil
}

func (s *server) handleSignMessage(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args signMessageArgs
	if bad := unmarshalArgs(req, &args); bad != nil {
		return bad, nil
	}
	if args.Message == "" {
		return errorResult(fmt.Errorf("message is required")), nil
	}

	provider, err := s.provider(args.Network)
	if err != nil {
		return errorResult(err), nil
	}

	signature, err := provider.SignMessage(ctx, args.Message)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(signature), nil
}

func (s *server) handleSendTransaction(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args sendTransactionArgs
	if bad := unmarshalArgs(req, &args); bad != nil {
		return bad, nil
	}
	if args.To == "" {
		return errorResult(fmt.Errorf("destination address is required")), nil
	}

	provider, err := s.provider(args.Network)
	if err != nil {
		return errorResult(err), nil
	}

	tx := &agentkit.TransactionRequest{
		To:   args.To,
		Data: args.Data,
	}
	if args.Value != "" {
		value, err := parseAmount(provider.ChainFamily(), args.Value)
		if err != nil {
			return errorResult(err), nil
		}
		tx.Value = value
	}
	if args.GasLimit != "" {
		tx.GasLimit = args.GasLimit
	}

	hash, err := provider.SendTransaction(ctx, tx)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(hash), nil
}

func (s *server) handleNativeTransfer(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args nativeTransferArgs
	if bad := unmarshalArgs(req, &args); bad != nil {
		return bad, nil
	}
	if args.To == "" || args.Amount == "" {
		return errorResult(fmt.Errorf("recipient and amount are required")), nil
	}

	provider, err := s.provider(args.Network)
	if err != nil {
		return errorResult(err), nil
	}

	amount, err := parseAmount(provider.ChainFamily(), args.Amount)
	if err != nil {
		return errorResult(err), nil
	}

	hash, err := provider.NativeTransfer(ctx, args.To, amount)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(hash), nil
}

func (s *server) handleReadContract(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args readContractArgs
	if bad := unmarshalArgs(req, &args); bad != nil {
		return bad, nil
	}

	provider, err := s.provider(args.Network)
	if err != nil {
		return errorResult(err), nil
	}
	evmProvider, ok := provider.(agentkit.EvmWalletProvider)
	if !ok {
		return errorResult(fmt.Errorf("read_contract requires an evm provider; %s is %s",
			provider.GetName(), provider.ChainFamily())), nil
	}

	coerced, err := coerceContractArgs(args.ABI, args.Method, args.Args)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := evmProvider.ReadContract(ctx, &agentkit.ReadContractParams{
		Address: args.Address,
		ABI:     args.ABI,
		Method:  args.Method,
		Args:    coerced,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("%v", result)), nil
}

func (s *server) handleExportWallet(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args networkArgs
	if bad := unmarshalArgs(req, &args); bad != nil {
		return bad, nil
	}

	provider, err := s.provider(args.Network)
	if err != nil {
		return errorResult(err), nil
	}
	exporter, ok := provider.(agentkit.Exporter)
	if !ok {
		return errorResult(fmt.Errorf("%s does not support export", provider.GetName())), nil
	}

	payload, err := json.Marshal(exporter.ExportWallet())
	if err != nil {
		return errorResult(fmt.Errorf("failed to encode export: %w", err)), nil
	}
	return textResult(string(payload)), nil
}

// provider resolves the wallet provider for a tool call. An explicit
// network routes by chain family; with no network the lone registered
// provider is used.
func (s *server) provider(network string) (agentkit.WalletProvider, error) {
	if network != "" {
		return s.toolkit.Provider(agentkit.Network(network))
	}

	providers := s.toolkit.Providers()
	switch len(providers) {
	case 0:
		return nil, agentkit.NewWalletError(agentkit.ErrCodeUnsupportedChain,
			"no wallet providers registered", nil)
	case 1:
		return providers[0], nil
	default:
		return nil, agentkit.NewWalletError(agentkit.ErrCodeUnsupportedChain,
			"network is required when multiple providers are registered", nil)
	}
}

// parseAmount converts a display-unit decimal string into base units for
// the provider's chain family
func parseAmount(family, amount string) (*big.Int, error) {
	switch family {
	case agentkit.ChainFamilyEvm:
		return agentkit.ParseEther(amount)
	case agentkit.ChainFamilySvm:
		return agentkit.ParseUnits(amount, agentkit.LamportDecimals)
	default:
		return nil, agentkit.NewWalletError(agentkit.ErrCodeUnsupportedChain,
			fmt.Sprintf("no amount parser for %s", family), nil)
	}
}

func unmarshalArgs(req *mcpsdk.CallToolRequest, target interface{}) *mcpsdk.CallToolResult {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, target); err != nil {
		return errorResult(fmt.Errorf("failed to unmarshal arguments: %w", err))
	}
	return nil
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: text},
		},
	}
}

func errorResult(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
	}
}
