package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subjects the paired device subscribes to.
const (
	SubjectSafeCreated          = "safed.device.safe_created"
	SubjectRequestConfirmation  = "safed.device.request_confirmation"
	SubjectTransactionSubmitted = "safed.device.transaction_submitted"
)

// NATSPublisher delivers device messages over a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// Connect dials the NATS server and returns a publisher.
func Connect(url string, log zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connect to nats: %w", err)
	}
	return &NATSPublisher{
		conn: conn,
		log:  log.With().Str("component", "notify").Logger(),
	}, nil
}

func (p *NATSPublisher) publish(subject string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("notify: publish %s: %w", subject, err)
	}
	p.log.Debug().Str("subject", subject).Msg("message published")
	return nil
}

func (p *NATSPublisher) SafeCreated(_ context.Context, msg SafeCreatedMessage) error {
	return p.publish(SubjectSafeCreated, msg)
}

func (p *NATSPublisher) RequestConfirmation(_ context.Context, msg ConfirmationRequest) error {
	return p.publish(SubjectRequestConfirmation, msg)
}

func (p *NATSPublisher) TransactionSubmitted(_ context.Context, msg TransactionSubmittedMessage) error {
	return p.publish(SubjectTransactionSubmitted, msg)
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	p.conn.Close()
}
