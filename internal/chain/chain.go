// Package chain defines the data model shared by the Reader and Handler
// components: blocks, actions, and the durable index cursor. BlockNumber
// and BlockHash are distinct nominal types so that a raw uint64 or string
// can never be passed where the other is expected.
package chain

import (
	"encoding/json"
	"fmt"
)

// BlockNumber identifies a block's position in the chain. Blocks are
// 1-based; BlockNumber(0) is the sentinel meaning "no block yet processed".
type BlockNumber uint64

// NoBlock is the sentinel BlockNumber meaning no block has been processed.
const NoBlock BlockNumber = 0

// MarshalJSON encodes the block number as a hex string (e.g. "0x1a"),
// matching the wire convention most JSON-RPC chain sources use.
func (n BlockNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%x", uint64(n)))
}

// UnmarshalJSON decodes a hex-encoded block number.
func (n *BlockNumber) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	var v uint64
	if _, err := fmt.Sscanf(s, "0x%x", &v); err != nil {
		return fmt.Errorf("invalid block number %q: %w", s, err)
	}

	*n = BlockNumber(v)
	return nil
}

// BlockHash is a hex-encoded block hash. The zero value is never a valid
// hash; it is used to detect "no hash known yet".
type BlockHash string

// Action is a single unit of work inside a block: a type tag matched against
// Updaters/Effects, and an opaque payload decoded by whichever one handles it.
type Action struct {
	Type    string
	Payload []byte
}

// BlockInfo carries the hash-chain linkage for a single block.
type BlockInfo struct {
	BlockNumber       BlockNumber
	BlockHash         BlockHash
	PreviousBlockHash BlockHash
}

// Block is an immutable, hash-linked unit of chain data carrying an ordered
// list of actions.
type Block struct {
	BlockInfo
	Actions []Action
}

// IndexState is the durably persisted cursor identifying the last
// fully-applied block and the handler version active at that point.
type IndexState struct {
	BlockNumber        BlockNumber
	BlockHash          BlockHash
	HandlerVersionName string
}
