// Package requests carries play requests from outside the chat, such as the
// CLI, to the running bot over a Redis stream.
package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Request struct {
	ID          string
	URL         string
	RequestedBy string
	RequestedAt time.Time
}

// Message is a request read from the stream, identified by its stream ID.
type Message struct {
	StreamID string
	Request  Request
}

func requestToValues(r Request) map[string]any {
	return map[string]any{
		"id":          r.ID,
		"url":         r.URL,
		"requestedBy": r.RequestedBy,
		"requestedAt": r.RequestedAt.UTC().Format(time.RFC3339Nano),
	}
}

func requestFromValues(values map[string]any) (Request, error) {
	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}

	r := Request{
		ID:          str("id"),
		URL:         str("url"),
		RequestedBy: str("requestedBy"),
	}
	if r.URL == "" {
		return Request{}, errors.New("request has no url")
	}
	if at := str("requestedAt"); at != "" {
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return Request{}, fmt.Errorf("invalid requestedAt: %w", err)
		}
		r.RequestedAt = t
	}
	return r, nil
}

type RedisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream}
}

func (p *RedisPublisher) Publish(ctx context.Context, reqs ...Request) error {
	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range reqs {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: p.stream,
				Values: requestToValues(r),
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish requests: %w", err)
	}
	return nil
}

type Receiver interface {
	Receive(ctx context.Context) ([]Message, error)
	Ack(ctx context.Context, streamIDs ...string) error
}

type RedisReceiver struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
	count    int64
}

var _ Receiver = (*RedisReceiver)(nil)

// NewRedisReceiver joins the consumer group, creating the stream and the
// group if needed. A new group starts from the beginning of the stream.
func NewRedisReceiver(ctx context.Context, client *redis.Client, stream, group, consumer string) (*RedisReceiver, error) {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && err != redis.Nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, err
	}

	return &RedisReceiver{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    5 * time.Second,
		count:    10,
	}, nil
}

// Receive waits briefly for new requests. It returns no messages and no
// error when none arrived in time. Malformed entries are acknowledged and
// dropped.
func (r *RedisReceiver) Receive(ctx context.Context) ([]Message, error) {
	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, ">"},
		Count:    r.count,
		Block:    r.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var msgs []Message
	for _, s := range streams {
		for _, m := range s.Messages {
			req, err := requestFromValues(m.Values)
			if err != nil {
				slog.Warn("Dropping malformed request", "streamID", m.ID, "error", err)
				if ackErr := r.Ack(ctx, m.ID); ackErr != nil {
					slog.Warn("Failed to ack malformed request", "streamID", m.ID, "error", ackErr)
				}
				continue
			}
			msgs = append(msgs, Message{StreamID: m.ID, Request: req})
		}
	}
	return msgs, nil
}

func (r *RedisReceiver) Ack(ctx context.Context, streamIDs ...string) error {
	if len(streamIDs) == 0 {
		return nil
	}
	return r.client.XAck(ctx, r.stream, r.group, streamIDs...).Err()
}

type RequestHandler interface {
	HandleRequests(ctx context.Context, reqs ...Request) error
}

type Enqueuer interface {
	Enqueue(url string) int
}

// EnqueueHandler hands requests to the track queue.
type EnqueueHandler struct {
	Queue Enqueuer
}

func (h *EnqueueHandler) HandleRequests(ctx context.Context, reqs ...Request) error {
	for _, r := range reqs {
		slog.InfoContext(
			ctx,
			"Enqueuing request",
			slog.String("requestID", r.ID),
			slog.String("url", r.URL),
			slog.String("requestedBy", r.RequestedBy),
		)
		position := h.Queue.Enqueue(r.URL)
		slog.DebugContext(ctx, "Request enqueued", slog.String("requestID", r.ID), slog.Int("position", position))
	}
	return nil
}

// Consume receives requests until ctx is done. Requests are acknowledged
// once the handler accepted them.
func Consume(ctx context.Context, receiver Receiver, handler RequestHandler) error {
	for {
		msgs, err := receiver.Receive(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			slog.Error("Failed to receive requests", "error", err)
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		if len(msgs) == 0 {
			continue
		}

		reqs := make([]Request, len(msgs))
		ids := make([]string, len(msgs))
		for i, m := range msgs {
			reqs[i] = m.Request
			ids[i] = m.StreamID
		}

		if err := handler.HandleRequests(ctx, reqs...); err != nil {
			slog.Error("Failed to handle requests", "error", err)
			continue
		}
		if err := receiver.Ack(ctx, ids...); err != nil {
			slog.Error("Failed to ack requests", "error", err)
		}
	}
}
