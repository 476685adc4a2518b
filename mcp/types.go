package mcp

// Tool argument shapes. Every tool takes an optional CAIP-2 network; when
// only one provider is registered the network may be omitted.

type networkArgs struct {
	Network string `json:"network,omitempty"`
}

type signMessageArgs struct {
	Network string `json:"network,omitempty"`
	Message string `json:"message"`
}

type sendTransactionArgs struct {
	Network  string `json:"network,omitempty"`
	To       string `json:"to"`
	Value    string `json:"value,omitempty"`
	Data     string `json:"data,omitempty"`
	GasLimit string `json:"gas_limit,omitempty"`
}

type nativeTransferArgs struct {
	Network string `json:"network,omitempty"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
}

type readContractArgs struct {
	Network string        `json:"network,omitempty"`
	Address string        `json:"address"`
	ABI     string        `json:"abi"`
	Method  string        `json:"method"`
	Args    []interface{} `json:"args,omitempty"`
}
