package progress

import (
	"encoding/json"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/corework/dagflow/wftypes"
)

// AMQPSink forwards every progress event as a published message, for a
// caller who wants lifecycle events observable outside this process. It
// is optional and additive; the executor works without any sink at all.
type AMQPSink struct {
	channel    *amqp.Channel
	conn       *amqp.Connection
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// NewAMQPSink dials url and declares a fanout exchange named exchange that
// progress events are published to.
func NewAMQPSink(url, exchange, routingKey string, logger *zap.Logger) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPSink{
		channel:    ch,
		conn:       conn,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

// Emit publishes event to the declared fanout exchange as JSON. Publish
// failures are logged rather than propagated, matching the executor's
// contract that Emit must not block or fail the run.
func (s *AMQPSink) Emit(event wftypes.ProgressEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal progress event", zap.Error(err))
		return
	}

	err = s.channel.Publish(s.exchange, s.routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   event.Timestamp,
	})
	if err != nil {
		s.logger.Error("failed to publish progress event",
			zap.String("workflow_id", event.WorkflowID),
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}

// Close tears down the channel and connection.
func (s *AMQPSink) Close() error {
	if err := s.channel.Close(); err != nil {
		s.conn.Close()
		return err
	}
	return s.conn.Close()
}
