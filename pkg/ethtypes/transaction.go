package ethtypes

import "time"

// TransactionHash is a 0x-prefixed hex hash of an Ethereum transaction.
type TransactionHash string

func (h TransactionHash) String() string { return string(h) }

// ReceiptStatus is the on-chain outcome of a mined transaction.
type ReceiptStatus int

const (
	ReceiptFailed ReceiptStatus = iota
	ReceiptSuccess
)

// Receipt is the confirmation record for a mined transaction.
type Receipt struct {
	Hash      TransactionHash
	Status    ReceiptStatus
	BlockHash string
}

// Block carries the subset of block header data the domain needs.
type Block struct {
	Hash      string
	Timestamp time.Time
}

// Operation is the call type a wallet transaction executes with.
type Operation int

const (
	OperationCall Operation = iota
	OperationDelegateCall
	OperationCreate
)

func (o Operation) String() string {
	switch o {
	case OperationCall:
		return "call"
	case OperationDelegateCall:
		return "delegateCall"
	case OperationCreate:
		return "create"
	}
	return "unknown"
}
