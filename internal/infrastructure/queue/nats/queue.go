package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/resilience"
)

const DefaultSubjectPrefix = "steward.actions"

// EventBus carries action lifecycle events. Events are published on
// <prefix>.<type> and consumed by a queue group so each event reaches one
// worker.
type EventBus struct {
	conn          *nats.Conn
	subjectPrefix string
	queueGroup    string
	executor      *resilience.Executor
}

type Options struct {
	SubjectPrefix        string
	QueueGroup           string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url string, options Options) (*EventBus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("steward"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &EventBus{
		conn:          conn,
		subjectPrefix: subjectPrefix(options.SubjectPrefix),
		queueGroup:    queueGroup(options.QueueGroup),
		executor:      options.ResilienceExecutor,
	}, nil
}

func (b *EventBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *EventBus) PublishActionEvent(ctx context.Context, event domain.ActionEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	subject := eventSubject(b.subjectPrefix, event.Type)

	call := func(_ context.Context) error {
		if err := b.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func (b *EventBus) SubscribeActionEvents(ctx context.Context, handler func(context.Context, domain.ActionEvent) error) error {
	sub, err := b.conn.QueueSubscribe(b.subjectPrefix+".>", b.queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		event, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Warn("action_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Error("action_event_handler_failed", "action_id", event.ActionID, "type", event.Type, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(event domain.ActionEvent) ([]byte, error) {
	if event.ActionID == "" || event.Type == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode action event", fmt.Errorf("action id and type are required"))
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal action event: %w", err)
	}
	return payload, nil
}

func decodeEvent(data []byte) (domain.ActionEvent, error) {
	var event domain.ActionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.ActionEvent{}, fmt.Errorf("unmarshal action event: %w", err)
	}
	if event.ActionID == "" || event.Type == "" {
		return domain.ActionEvent{}, fmt.Errorf("action event missing id or type")
	}
	return event, nil
}

func eventSubject(prefix string, eventType domain.ActionEventType) string {
	return prefix + "." + string(eventType)
}

func subjectPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return DefaultSubjectPrefix
	}
	return prefix
}

func queueGroup(group string) string {
	if strings.TrimSpace(group) == "" {
		return "audit-workers"
	}
	return group
}
