// Package mcp exposes wallet operations as Model Context Protocol tools.
//
// NewWalletToolServer registers one tool per wallet operation on an MCP
// server backed by a toolkit. Tool handlers resolve the provider for the
// requested network, execute the operation, and report failures as tool
// results (IsError) rather than protocol errors, so an agent can read the
// failure and adjust.
//
// Amount arguments are decimal strings in the chain's display unit ("0.25"
// ether, "1.5" SOL) and are parsed with the toolkit's amount parser; raw
// base units never cross the tool boundary.
package mcp
