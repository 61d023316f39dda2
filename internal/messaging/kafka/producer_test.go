package kafka

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer)

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicOrderEvents {
			t.Errorf("unexpected topic %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "order-123" {
			t.Errorf("unexpected key %s", key)
		}
		return nil
	})

	event := map[string]any{"order_id": "order-123"}
	if err := producer.PublishEvent(context.Background(), TopicOrderEvents, "order-123", event, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(context.Background(), TopicOrderEvents, "order-123", map[string]any{}, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	producer := newProducer(mocks.NewSyncProducer(t, nil))

	err := producer.PublishEvent(context.Background(), TopicOrderEvents, "k", make(chan int), nil)
	if err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestBuildHeaders_InjectsTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := buildHeaders(ctx, map[string]string{HeaderEventType: "order.placed"})

	found := map[string]string{}
	for _, h := range headers {
		found[string(h.Key)] = string(h.Value)
	}
	if found[HeaderEventType] != "order.placed" {
		t.Fatalf("event type header missing: %v", found)
	}
	if found["traceparent"] == "" {
		t.Fatalf("expected traceparent header, got %v", found)
	}
}
