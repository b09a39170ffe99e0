// Package jsonrpc implements reader.ChainSource over a generic JSON-RPC 2.0
// client, decoding Ethereum-compatible eth_blockNumber / eth_getBlockByNumber
// responses into chain.Block values.
package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chainkeeper/chainkeeper/internal/chain"
	"github.com/chainkeeper/chainkeeper/internal/pkg/transport/jsonrpc"
)

const transferActionType = "transfer"

// Source implements reader.ChainSource against an Ethereum-compatible node.
type Source struct {
	conn jsonrpc.Client
}

// New constructs a Source over the given JSON-RPC connection.
func New(conn jsonrpc.Client) *Source {
	return &Source{conn: conn}
}

// GetHeadBlockNumber implements reader.ChainSource.
func (s *Source) GetHeadBlockNumber(ctx context.Context) (chain.BlockNumber, error) {
	data, err := s.conn.Fetch(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}

	var hexNumber string
	if err := json.Unmarshal(data, &hexNumber); err != nil {
		return 0, fmt.Errorf("jsonrpc: decoding eth_blockNumber result: %w", err)
	}

	var n uint64
	if _, err := fmt.Sscanf(hexNumber, "0x%x", &n); err != nil {
		return 0, fmt.Errorf("jsonrpc: parsing block number %q: %w", hexNumber, err)
	}

	return chain.BlockNumber(n), nil
}

// GetBlock implements reader.ChainSource.
func (s *Source) GetBlock(ctx context.Context, number chain.BlockNumber) (chain.Block, error) {
	data, err := s.conn.Fetch(ctx, "eth_getBlockByNumber", fmt.Sprintf("0x%x", uint64(number)), true)
	if err != nil {
		return chain.Block{}, err
	}

	var resp blockResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return chain.Block{}, fmt.Errorf("jsonrpc: decoding block %d: %w", number, err)
	}

	actions := make([]chain.Action, 0, len(resp.Transactions))
	for _, tx := range resp.Transactions {
		payload, err := json.Marshal(tx)
		if err != nil {
			return chain.Block{}, fmt.Errorf("jsonrpc: re-encoding transaction %s: %w", tx.Hash, err)
		}

		actions = append(actions, chain.Action{
			Type:    transferActionType,
			Payload: payload,
		})
	}

	return chain.Block{
		BlockInfo: chain.BlockInfo{
			BlockNumber:       number,
			BlockHash:         chain.BlockHash(resp.Hash),
			PreviousBlockHash: chain.BlockHash(resp.ParentHash),
		},
		Actions: actions,
	}, nil
}
