package genvm

import (
	"encoding/base64"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Message is the JSON payload handed to the engine via --message. Accounts
// travel as base64 of the raw 20 bytes; gas is 2^64-1 to disable engine-side
// metering (the host ferries gas numbers, it does not judge them); value is
// null until native transfers are plumbed through.
type Message struct {
	IsInit          bool     `json:"is_init"`
	ContractAccount string   `json:"contract_account"`
	SenderAccount   string   `json:"sender_account"`
	Value           *big.Int `json:"value"`
	Gas             uint64   `json:"gas"`
}

func newMessage(isInit bool, contract, sender common.Address) Message {
	return Message{
		IsInit:          isInit,
		ContractAccount: b64Address(contract),
		SenderAccount:   b64Address(sender),
		Value:           nil,
		Gas:             math.MaxUint64,
	}
}

func b64Address(addr common.Address) string {
	return base64.StdEncoding.EncodeToString(addr.Bytes())
}
