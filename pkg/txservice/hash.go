package txservice

import (
	"math/big"

	"github.com/safekit/safed/pkg/abi"
	"github.com/safekit/safed/pkg/ethtypes"
)

// EIP-712 type hashes of the Safe contract, v1.0.0 field names.
var (
	domainTypeHash = abi.Keccak256([]byte("EIP712Domain(address verifyingContract)"))
	safeTxTypeHash = abi.Keccak256([]byte("SafeTx(address to,uint256 value,bytes data,uint8 operation,uint256 safeTxGas,uint256 baseGas,uint256 gasPrice,address gasToken,address refundReceiver,uint256 nonce)"))
)

// SafeTx holds the fields the Safe contract hashes when verifying owner
// signatures.
type SafeTx struct {
	Safe           ethtypes.Address
	To             ethtypes.Address
	Value          *big.Int
	Data           []byte
	Operation      ethtypes.Operation
	SafeTxGas      int
	DataGas        int
	GasPrice       *big.Int
	GasToken       ethtypes.Address
	RefundReceiver ethtypes.Address
	Nonce          int
}

// SigningHash computes the EIP-191/EIP-712 hash owners sign:
// keccak(0x19 0x01 ++ domainSeparator ++ safeTxHash). It must match the
// on-chain computation exactly or the contract rejects the signatures.
func SigningHash(tx SafeTx) []byte {
	domainSeparator := abi.Keccak256(domainTypeHash, abi.EncodeAddress(tx.Safe))
	safeTxHash := abi.Keccak256(
		safeTxTypeHash,
		abi.EncodeAddress(tx.To),
		abi.EncodeUint(tx.Value),
		abi.Keccak256(tx.Data),
		abi.EncodeUint64(uint64(tx.Operation)),
		abi.EncodeUint64(uint64(tx.SafeTxGas)),
		abi.EncodeUint64(uint64(tx.DataGas)),
		abi.EncodeUint(tx.GasPrice),
		abi.EncodeAddress(tx.GasToken),
		abi.EncodeAddress(tx.RefundReceiver),
		abi.EncodeUint64(uint64(tx.Nonce)),
	)
	return abi.Keccak256([]byte{0x19, 0x01}, domainSeparator, safeTxHash)
}
