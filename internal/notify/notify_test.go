package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	publishFunc func(subj string, data []byte) error
	drained     bool
}

func (m *mockPublisher) Publish(subj string, data []byte) error {
	return m.publishFunc(subj, data)
}

func (m *mockPublisher) Drain() error {
	m.drained = true
	return nil
}

func TestNATSNotifierSubmitted(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	event := SubmittedEvent{
		Token:       "Ab3dE6gH9k",
		FormType:    "BGV",
		CreatedBy:   "ops",
		ReportURL:   "/files/reports/asha_bgv_Ab3dE6gH9k.pdf",
		SubmittedAt: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
	}

	tests := []struct {
		name          string
		publishError  error
		expectedError bool
	}{
		{name: "publishes the event as JSON"},
		{name: "surfaces publish failures", publishError: errors.New("nats: connection closed"), expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSubject string
			var got SubmittedEvent
			pub := &mockPublisher{publishFunc: func(subj string, data []byte) error {
				gotSubject = subj
				require.NoError(t, json.Unmarshal(data, &got))
				return tt.publishError
			}}

			n := NewNATSNotifierWithConn(pub, logger)
			err := n.Submitted(context.Background(), event)
			if tt.expectedError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, SubjectSubmitted, gotSubject)
			assert.Equal(t, event, got)

			n.Close()
			assert.True(t, pub.drained)
		})
	}
}
