// Package notify delivers messages to the paired two-factor device: the
// safe-created announcement after deployment and confirmation requests
// for transactions awaiting the second signature.
package notify

import (
	"context"
	"math/big"
	"sync"

	"github.com/safekit/safed/pkg/ethtypes"
)

// SafeCreatedMessage announces a finished deployment to the paired device.
type SafeCreatedMessage struct {
	Safe ethtypes.Address `json:"safe"`
}

// ConfirmationRequest asks the paired device to co-sign a transaction.
type ConfirmationRequest struct {
	Hash      []byte             `json:"hash"`
	Safe      ethtypes.Address   `json:"safe"`
	To        ethtypes.Address   `json:"to"`
	Value     *big.Int           `json:"value"`
	Data      []byte             `json:"data"`
	Operation ethtypes.Operation `json:"operation"`
	Nonce     int                `json:"nonce"`
}

// TransactionSubmittedMessage tells the paired device a transaction it
// confirmed has been broadcast.
type TransactionSubmittedMessage struct {
	Hash            []byte                   `json:"hash"`
	TransactionHash ethtypes.TransactionHash `json:"transactionHash"`
}

// Service is the outbound messaging contract.
type Service interface {
	SafeCreated(ctx context.Context, msg SafeCreatedMessage) error
	RequestConfirmation(ctx context.Context, msg ConfirmationRequest) error
	TransactionSubmitted(ctx context.Context, msg TransactionSubmittedMessage) error
}

// Recorder is an in-memory Service for tests and for running without a
// paired device.
type Recorder struct {
	mu sync.Mutex

	SafeCreatedMessages   []SafeCreatedMessage
	ConfirmationRequests  []ConfirmationRequest
	SubmittedAnnouncement []TransactionSubmittedMessage
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) SafeCreated(_ context.Context, msg SafeCreatedMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SafeCreatedMessages = append(r.SafeCreatedMessages, msg)
	return nil
}

func (r *Recorder) RequestConfirmation(_ context.Context, msg ConfirmationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ConfirmationRequests = append(r.ConfirmationRequests, msg)
	return nil
}

func (r *Recorder) TransactionSubmitted(_ context.Context, msg TransactionSubmittedMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SubmittedAnnouncement = append(r.SubmittedAnnouncement, msg)
	return nil
}
