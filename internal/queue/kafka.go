package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"booking/backend/internal/obs"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue publishes jobs to a topic keyed by job kind.
type KafkaQueue struct {
	w     messageWriter
	topic string
	log   *slog.Logger
	now   func() time.Time
}

func NewKafkaQueue(brokers []string, topic string, log *slog.Logger) *KafkaQueue {
	return newKafkaQueue(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}, topic, log)
}

func newKafkaQueue(w messageWriter, topic string, log *slog.Logger) *KafkaQueue {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaQueue{
		w:     w,
		topic: topic,
		log:   log.With(slog.String("component", "queue.kafka"), slog.String("topic", topic)),
		now:   time.Now,
	}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, kind string, payload any) error {
	job, err := NewJob(kind, payload, q.now())
	if err != nil {
		return err
	}
	value, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ctx, span := otel.Tracer("queue.kafka").Start(ctx, "kafka.produce "+q.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(q.topic),
			semconv.MessagingOperationPublish,
		),
	)
	defer span.End()

	carrier := &headerCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	msg := kafka.Message{Key: []byte(kind), Value: value, Headers: carrier.headers}
	if err := q.w.WriteMessages(ctx, msg); err != nil {
		q.log.Error("kafka write failed", slog.Any("err", err))
		return err
	}
	q.log.Debug("job published", slog.String("kind", kind), slog.Int("value_len", len(value)))
	return nil
}

func (q *KafkaQueue) Close() error { return q.w.Close() }

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	FromBeginning bool
	Logger        *slog.Logger
}

// KafkaConsumer reads jobs in a consumer group. Offsets are committed only
// after the handler succeeds.
type KafkaConsumer struct {
	reader messageReader
	log    *slog.Logger
}

func NewKafkaConsumer(cfg ConsumerConfig) *KafkaConsumer {
	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           start,
		WatchPartitionChanges: true,

		MinBytes:          1,
		MaxBytes:          10e6,
		SessionTimeout:    10 * time.Second,
		RebalanceTimeout:  15 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	})
	return newKafkaConsumer(r, cfg)
}

func newKafkaConsumer(r messageReader, cfg ConsumerConfig) *KafkaConsumer {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &KafkaConsumer{
		reader: r,
		log: log.With(
			slog.String("component", "queue.kafka.consumer"),
			slog.String("topic", cfg.Topic),
			slog.String("group", cfg.GroupID),
		),
	}
}

func (c *KafkaConsumer) Consume(ctx context.Context, h Handler) error {
	log := c.log
	log.Info("consumer started")

	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		if ctx.Err() != nil {
			log.Info("consumer stopped (ctx canceled)")
			return ctx.Err()
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopped (ctx canceled)")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				log.Debug("fetch EOF; retry", slog.Duration("backoff", backoff))
			} else {
				log.Warn("fetch failed; retry", slog.Any("err", err), slog.Duration("backoff", backoff))
			}
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		var job Job
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			obs.JobsProcessed.WithLabelValues("unknown", "malformed").Inc()
			log.Error("malformed job skipped", slog.Int("partition", msg.Partition), slog.Int64("offset", msg.Offset), slog.Any("err", err))
			c.commit(ctx, msg)
			continue
		}

		hctx := otel.GetTextMapPropagator().Extract(ctx, &headerCarrier{headers: msg.Headers})
		if err := h(hctx, job); err != nil {
			obs.JobsProcessed.WithLabelValues(job.Kind, "error").Inc()
			log.Error("handler error",
				slog.String("kind", job.Kind),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Any("err", err),
			)
			continue
		}
		obs.JobsProcessed.WithLabelValues(job.Kind, "ok").Inc()
		c.commit(ctx, msg)
	}
}

func (c *KafkaConsumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		if ctx.Err() != nil {
			c.log.Info("commit interrupted by context cancel")
			return
		}
		c.log.Warn("commit failed; will retry later", slog.Any("err", err))
	}
}

func (c *KafkaConsumer) Close() error { return c.reader.Close() }

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
