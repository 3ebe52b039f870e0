// Package relay defines the contract with the off-chain transaction relay:
// safe creation quotes, funding notification, fee estimation and
// transaction submission. It also owns the error taxonomy the domain
// services dispatch on: transient network failures are retried silently,
// response errors cancel the operation.
package relay

import (
	"context"
	"errors"
	"math/big"

	"github.com/safekit/safed/pkg/ethtypes"
)

// Error taxonomy. Callers must test with errors.Is.
var (
	// ErrNetwork marks connectivity and timeout failures. Never cancels a
	// state machine; the caller retries on the next poll tick.
	ErrNetwork = errors.New("relay: network error")
	// ErrClient marks 4xx responses: the request itself is invalid and a
	// retry cannot succeed.
	ErrClient = errors.New("relay: client error")
	// ErrServer marks 5xx responses.
	ErrServer = errors.New("relay: server error")
)

// IsTransient reports whether err should be retried without side effects.
// Server-side 5xx failures count as transient per the deployment retry
// policy.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}

// SafeCreationRequest asks for a creation-transaction quote.
type SafeCreationRequest struct {
	Owners       []ethtypes.Address `json:"owners"`
	Threshold    int                `json:"threshold"`
	PaymentToken ethtypes.Address   `json:"paymentToken"`
	SaltNonce    string             `json:"saltNonce"`
}

// SafeCreationResponse is the relay's quote: the predicted safe address,
// the deployment fee and the contract parameters the relay intends to use.
// Every field is re-validated locally before being trusted.
type SafeCreationResponse struct {
	SafeAddress     ethtypes.Address `json:"safe"`
	MasterCopy      ethtypes.Address `json:"masterCopy"`
	ProxyFactory    ethtypes.Address `json:"proxyFactory"`
	PaymentToken    ethtypes.Address `json:"paymentToken"`
	PaymentReceiver ethtypes.Address `json:"paymentReceiver"`
	Payment         *big.Int         `json:"payment"`
	GasEstimated    *big.Int         `json:"gasEstimated"`
	GasPriceUsed    *big.Int         `json:"gasPriceEstimated"`
	SetupData       HexBytes         `json:"setupData"`
}

// EstimationRequest asks for the gas quote of one wallet transaction.
type EstimationRequest struct {
	SafeAddress ethtypes.Address   `json:"safe"`
	To          ethtypes.Address   `json:"to"`
	Value       *big.Int           `json:"value"`
	Data        HexBytes           `json:"data"`
	Operation   ethtypes.Operation `json:"operation"`
	GasToken    ethtypes.Address   `json:"gasToken"`
}

// Estimation is the relay's gas quote plus the next free wallet nonce.
type Estimation struct {
	SafeTxGas      int      `json:"safeTxGas"`
	BaseGas        int      `json:"baseGas"`
	DataGas        int      `json:"dataGas"`
	OperationalGas int      `json:"operationalGas"`
	GasPrice       *big.Int `json:"gasPrice"`
	LastUsedNonce  *int     `json:"lastUsedNonce"`
}

// NextNonce is the nonce a new transaction should use: one past the last
// used, or zero for a fresh safe.
func (e Estimation) NextNonce() int {
	if e.LastUsedNonce == nil {
		return 0
	}
	return *e.LastUsedNonce + 1
}

// SignatureValue is one owner signature in wire form.
type SignatureValue struct {
	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V int      `json:"v"`
}

// SubmissionRequest asks the relay to broadcast a fully signed wallet
// transaction.
type SubmissionRequest struct {
	SafeAddress    ethtypes.Address   `json:"safe"`
	To             ethtypes.Address   `json:"to"`
	Value          *big.Int           `json:"value"`
	Data           HexBytes           `json:"data"`
	Operation      ethtypes.Operation `json:"operation"`
	SafeTxGas      int                `json:"safeTxGas"`
	DataGas        int                `json:"dataGas"`
	GasPrice       *big.Int           `json:"gasPrice"`
	GasToken       ethtypes.Address   `json:"gasToken"`
	RefundReceiver ethtypes.Address   `json:"refundReceiver"`
	Nonce          int                `json:"nonce"`
	Signatures     []SignatureValue   `json:"signatures"`
}

// SubmissionResponse carries the blockchain hash of the broadcast
// transaction.
type SubmissionResponse struct {
	TransactionHash ethtypes.TransactionHash `json:"transactionHash"`
}

// Service is the relay collaborator contract. SafeCreationTransactionHash
// returns ("", nil) while the relay has not broadcast yet: a keep-polling
// signal, not an error.
type Service interface {
	CreateSafeCreationTransaction(ctx context.Context, req SafeCreationRequest) (*SafeCreationResponse, error)
	StartSafeCreation(ctx context.Context, safe ethtypes.Address) error
	SafeCreationTransactionHash(ctx context.Context, safe ethtypes.Address) (ethtypes.TransactionHash, error)
	EstimateTransaction(ctx context.Context, req EstimationRequest) (*Estimation, error)
	SubmitTransaction(ctx context.Context, req SubmissionRequest) (*SubmissionResponse, error)
}
