package reliability

import (
	"context"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/ports"
	"chatnet/pkg/circuitbreaker"
	"chatnet/pkg/retry"

	"go.uber.org/zap"
)

// MessageServiceWrapper wraps a MessageService with retry logic and a
// circuit breaker. The gateway persists broadcast messages through this
// wrapper so a slow or failing store cannot stall the fanout path.
type MessageServiceWrapper struct {
	service ports.MessageService
	logger  *zap.SugaredLogger

	retryConfig    retry.Config
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewMessageServiceWrapper creates a new wrapper with retry and circuit breaker
func NewMessageServiceWrapper(
	service ports.MessageService,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *MessageServiceWrapper {
	// Domain rejections are final; retrying them only delays the error.
	retryConfig.NonRetryableErrors = append(retryConfig.NonRetryableErrors,
		domain.ErrRoomNotFound,
		domain.ErrEmptyContent,
		domain.ErrInvalidContent,
	)

	wrapper := &MessageServiceWrapper{
		service:        service,
		logger:         logger,
		retryConfig:    retryConfig,
		circuitBreaker: circuitbreaker.New(cbConfig),
	}

	wrapper.circuitBreaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("message store circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return wrapper
}

// PostMessage appends a message with retry logic
func (w *MessageServiceWrapper) PostMessage(ctx context.Context, roomID domain.RoomID, sender domain.UserID, content string) (*domain.Message, error) {
	if !w.retryConfig.Enabled {
		return w.service.PostMessage(ctx, roomID, sender, content)
	}

	var msg *domain.Message
	err := retry.Retry(ctx, w.retryConfig, func() error {
		return w.circuitBreaker.Execute(ctx, func() error {
			var err error
			msg, err = w.service.PostMessage(ctx, roomID, sender, content)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages reads history (no retry needed for read operations)
func (w *MessageServiceWrapper) ListMessages(ctx context.Context, roomID domain.RoomID, requester domain.UserID) ([]*domain.Message, error) {
	return w.service.ListMessages(ctx, roomID, requester)
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (w *MessageServiceWrapper) GetCircuitBreakerStats() circuitbreaker.Stats {
	return w.circuitBreaker.GetStats()
}
