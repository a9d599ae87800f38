package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	pub := new(mocks.PublisherMock)
	e := NewAuditEmitter(pub, "audit.messaging", "messaging-service", "test")
	e.now = func() time.Time { return time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC) }

	userID := "u1"
	pub.On("Publish", mock.Anything, "audit.messaging", mock.MatchedBy(func(env AuditEnvelope) bool {
		return env.SchemaVersion == 1 &&
			env.EventType == "audit_log" &&
			env.OccurredAt == "2019-01-01T00:00:00Z" &&
			env.Service == "messaging-service" &&
			env.Environment == "test" &&
			env.RequestID == "req-1" &&
			env.UserID != nil && *env.UserID == "u1" &&
			env.Payload.Level == "INFO" &&
			env.Payload.Text == "signed in"
	})).Return(nil).Once()

	e.Emit(context.Background(), "INFO", "signed in", "req-1", &userID)
	pub.AssertExpectations(t)
}

func TestEmitSwallowsPublishError(t *testing.T) {
	pub := new(mocks.PublisherMock)
	e := NewAuditEmitter(pub, "audit.messaging", "messaging-service", "test")
	pub.On("Publish", mock.Anything, "audit.messaging", mock.Anything).Return(errors.New("broker down")).Once()

	require.NotPanics(t, func() { e.Emit(context.Background(), "WARN", "x", "", nil) })
	pub.AssertExpectations(t)
}

func TestNilEmitterIsNoop(t *testing.T) {
	var e *AuditEmitter
	require.NotPanics(t, func() { e.Emit(context.Background(), "INFO", "x", "", nil) })
}
