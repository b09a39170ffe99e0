package jsonrpc

import "github.com/chainkeeper/chainkeeper/internal/pkg/types"

// transactionResponse represents a raw transaction object returned by an
// Ethereum-compatible JSON-RPC node, trimmed to the fields needed to derive
// an Action.
type transactionResponse struct {
	Type        string `json:"type"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Input       string `json:"input"`
	Value       string `json:"value"`
	BlockNumber string `json:"blockNumber"`
}

// blockResponse represents the subset of an eth_getBlockByNumber result this
// adapter consumes.
type blockResponse struct {
	Hash         string                `json:"hash"`
	ParentHash   string                `json:"parentHash"`
	Number       types.Hex             `json:"number"`
	Transactions []transactionResponse `json:"transactions"`
}
