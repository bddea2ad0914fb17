package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const SubjectSubmitted = "formlink.submitted"

type SubmittedEvent struct {
	Token       string    `json:"token"`
	FormType    string    `json:"formType"`
	CreatedBy   string    `json:"createdBy"`
	Candidate   string    `json:"candidateName,omitempty"`
	ReportURL   string    `json:"reportUrl"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type Notifier interface {
	Submitted(ctx context.Context, event SubmittedEvent) error
	Close()
}

// Publisher is the part of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subj string, data []byte) error
	Drain() error
}

type NATSNotifier struct {
	conn   Publisher
	logger *logrus.Logger
}

func NewNATSNotifier(url string, logger *logrus.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url, nats.Name("trinetra"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.WithField("url", url).Info("connected to NATS")
	return &NATSNotifier{conn: conn, logger: logger}, nil
}

func NewNATSNotifierWithConn(conn Publisher, logger *logrus.Logger) *NATSNotifier {
	return &NATSNotifier{conn: conn, logger: logger}
}

func (n *NATSNotifier) Submitted(ctx context.Context, event SubmittedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal submitted event: %w", err)
	}

	if err := n.conn.Publish(SubjectSubmitted, data); err != nil {
		return fmt.Errorf("failed to publish submitted event: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"token":     event.Token,
		"form_type": event.FormType,
	}).Debug("submitted event published")

	return nil
}

func (n *NATSNotifier) Close() {
	if err := n.conn.Drain(); err != nil {
		n.logger.WithError(err).Warn("failed to drain NATS connection")
	}
}

// Nop discards events. It is used when NATS_URL is not set.
type Nop struct{}

func (Nop) Submitted(context.Context, SubmittedEvent) error {
	return nil
}

func (Nop) Close() {}
