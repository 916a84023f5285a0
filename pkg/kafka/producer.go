package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// ProducerConfig mirrors the kafka producer section of the service config.
// Zero fields take the defaults applied by NewProducer.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	Linger       time.Duration
	BatchSize    int
	BatchBytes   int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	Async        bool
}

func (c ProducerConfig) withDefaults() ProducerConfig {
	if c.RequiredAcks == 0 {
		c.RequiredAcks = int(kafka.RequireAll)
	}
	if c.Compression == "" {
		c.Compression = "gzip"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Linger <= 0 {
		c.Linger = 50 * time.Millisecond
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchBytes <= 0 {
		c.BatchBytes = 1 << 20
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	return c
}

// Record is one message to publish. Value is sent as-is when it is []byte or string,
// otherwise JSON encoded.
type Record struct {
	Key     string
	Value   interface{}
	Headers map[string]string
}

// Producer publishes records keyed by hash, so every record with the same key
// (a scan request id) lands on the same partition in send order.
type Producer struct {
	writer *kafka.Writer
	comp   string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka producer: brokers are required")
	}
	cfg = cfg.withDefaults()

	initProducerMetrics()
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  parseCompression(cfg.Compression),
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			BatchSize:    cfg.BatchSize,
			BatchBytes:   int64(cfg.BatchBytes),
			BatchTimeout: cfg.Linger,
			Async:        cfg.Async,
		},
		comp: cfg.Compression,
	}, nil
}

// Send publishes records to topic in one write.
func (p *Producer) Send(ctx context.Context, topic string, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	msgs := make([]kafka.Message, 0, len(records))
	var size int64
	for _, r := range records {
		v, err := encodeValue(r.Value)
		if err != nil {
			return err
		}
		m := kafka.Message{Topic: topic, Value: v, Headers: toHeaders(r.Headers), Time: start}
		if r.Key != "" {
			m.Key = []byte(r.Key)
		}
		msgs = append(msgs, m)
		size += int64(len(v))
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	producerStats.observe(topic, p.comp, size, len(msgs), time.Since(start), err)
	return err
}

// PublishMessage sends one unkeyed record; it makes the producer a log collector sink.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Send(ctx, topic, Record{Value: payload})
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch val := value.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	}
	v, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return v, nil
}

func toHeaders(m map[string]string) []kafka.Header {
	if len(m) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(m))
	for k, v := range m {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	producerOnce  sync.Once
	producerStats *producerMetrics
)

func initProducerMetrics() {
	producerOnce.Do(func() {
		producerStats = &producerMetrics{
			messages: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "stockpulse_kafka_producer_messages_total",
				Help: "Messages written to Kafka by topic and result",
			}, []string{"topic", "result"}),
			bytes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "stockpulse_kafka_producer_bytes_total",
				Help: "Payload bytes written to Kafka",
			}, []string{"topic", "compression"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "stockpulse_kafka_producer_write_seconds",
				Help:    "WriteMessages latency",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
		}
	})
}

func (m *producerMetrics) observe(topic, comp string, size int64, n int, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.messages.WithLabelValues(topic, result).Add(float64(n))
	m.bytes.WithLabelValues(topic, comp).Add(float64(size))
	m.latency.WithLabelValues(topic).Observe(d.Seconds())
}
