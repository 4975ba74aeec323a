package internal

import (
	"context"
	"fmt"

	"github.com/aleybovich/carrot-amqp/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/aleybovich/carrot-amqp"

type metrics struct {
	framesReceived    metric.Int64Counter
	framesSent        metric.Int64Counter
	messagesPublished metric.Int64Counter
	recoveries        metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(meterName)
	m := &metrics{}
	var err error

	m.framesReceived, err = meter.Int64Counter(
		"amqp_frames_received_total",
		metric.WithDescription("Total number of frames received from the broker"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp_frames_received_total counter: %w", err)
	}

	m.framesSent, err = meter.Int64Counter(
		"amqp_frames_sent_total",
		metric.WithDescription("Total number of frames sent to the broker"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp_frames_sent_total counter: %w", err)
	}

	m.messagesPublished, err = meter.Int64Counter(
		"amqp_messages_published_total",
		metric.WithDescription("Total number of messages published"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp_messages_published_total counter: %w", err)
	}

	m.recoveries, err = meter.Int64Counter(
		"amqp_connection_recoveries_total",
		metric.WithDescription("Total number of completed connection recoveries"),
		metric.WithUnit("{recovery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp_connection_recoveries_total counter: %w", err)
	}

	return m, nil
}

func (m *metrics) frameReceived(frameType byte) {
	m.framesReceived.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("frame_type", protocol.FrameTypeName(frameType))))
}

func (m *metrics) frameSent(frameType byte) {
	m.framesSent.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("frame_type", protocol.FrameTypeName(frameType))))
}

func (m *metrics) published(exchange string) {
	m.messagesPublished.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("exchange", exchange)))
}

func (m *metrics) recovered() {
	m.recoveries.Add(context.Background(), 1)
}
