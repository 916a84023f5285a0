package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	applogger "StockPulse/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles the messages of one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerConfig mirrors the kafka consumer section of the service config.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	StartOffset string // earliest or latest
	Workers     int
	BufferSize  int
	RetryMax    int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	MinBytes    int
	MaxBytes    int
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.GroupID == "" {
		c.GroupID = "stockpulse"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 16
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 100 * time.Millisecond
	}
	if c.BackoffMax < c.BackoffMin {
		c.BackoffMax = 5 * time.Second
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 1 << 20
	}
	return c
}

// Consumer reads registered topics in one consumer group and hands messages to a
// worker pool. Messages of one partition are handled one at a time; a message is
// committed once handled or parked on the DLQ.
type Consumer struct {
	cfg      ConsumerConfig
	logger   *applogger.Logger
	hook     ConsumerHook
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      *kafka.Writer

	queue    chan *delivery
	stop     chan struct{}
	stopOnce sync.Once
	readWG   sync.WaitGroup
	workWG   sync.WaitGroup

	partMu    sync.Mutex
	partLocks map[string]*sync.Mutex

	// handlers run under ctx; Stop cancels it
	ctx    context.Context
	cancel context.CancelFunc
}

type delivery struct {
	topic string
	km    kafka.Message
}

func NewConsumer(cfg ConsumerConfig, logger *applogger.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer: brokers are required")
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = applogger.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:       cfg,
		logger:    logger.With(applogger.String("component", "kafka_consumer")),
		hook:      HookFuncs{},
		handlers:  make(map[string]MessageHandler),
		readers:   make(map[string]*kafka.Reader),
		queue:     make(chan *delivery, cfg.BufferSize),
		stop:      make(chan struct{}),
		partLocks: make(map[string]*sync.Mutex),
		ctx:       ctx,
		cancel:    cancel,
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.LeastBytes{}}
	}
	initConsumerMetrics()
	return c, nil
}

// Use installs the hook run around every attempt. Call before Start.
func (c *Consumer) Use(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler adds handler for its topic; a second handler for the same topic is ignored.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.logger.Warn("handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: startOffset(c.cfg.StartOffset),
		})
	}
	for i := 0; i < c.cfg.Workers; i++ {
		c.workWG.Add(1)
		go c.work()
	}
	for topic, r := range c.readers {
		c.readWG.Add(1)
		go c.read(topic, r)
	}
	c.logger.Info("kafka consumer started",
		applogger.String("group_id", c.cfg.GroupID),
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.Workers),
	)
	return nil
}

// Stop cancels in-flight handlers, waits for the workers up to ctx and closes the readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stop)
		c.cancel()
		c.readWG.Wait()
		close(c.queue)

		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.logger.Warn("close reader failed", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.logger.Warn("close dlq writer failed", applogger.Error(cerr))
			}
		}
		c.logger.Info("kafka consumer stopped")
	})
	return err
}

func (c *Consumer) read(topic string, r *kafka.Reader) {
	defer c.readWG.Done()
	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("fetch message failed", applogger.String("topic", topic), applogger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
				continue
			case <-c.stop:
				return
			}
		}
		select {
		case c.queue <- &delivery{topic: topic, km: km}:
			consumerStats.depth.WithLabelValues(topic).Set(float64(len(c.queue)))
		case <-c.stop:
			return
		}
	}
}

func (c *Consumer) work() {
	defer c.workWG.Done()
	for d := range c.queue {
		h, ok := c.handlers[d.topic]
		if !ok {
			continue
		}
		start := time.Now()
		c.process(h, d)
		consumerStats.latency.WithLabelValues(d.topic).Observe(time.Since(start).Seconds())
	}
}

func (c *Consumer) process(h MessageHandler, d *delivery) {
	lock := c.partitionLock(d.topic, d.km.Partition)
	lock.Lock()
	defer lock.Unlock()

	attempts, err := c.attempt(h, d)
	if err == nil {
		consumerStats.outcomes.WithLabelValues(d.topic, "ok").Inc()
		c.commit(d)
		return
	}
	if c.ctx.Err() != nil {
		// shutting down; leave uncommitted for redelivery
		return
	}

	c.hook.OnError(c.ctx, d.topic, d.km, err)
	c.logger.Error("message handling failed",
		applogger.String("topic", d.topic),
		applogger.Int("partition", d.km.Partition),
		applogger.Int64("offset", d.km.Offset),
		applogger.Int("attempts", attempts),
		applogger.Error(err),
	)
	if c.dlq == nil {
		consumerStats.outcomes.WithLabelValues(d.topic, "failed").Inc()
		return
	}
	if derr := c.park(d, attempts, err); derr != nil {
		consumerStats.outcomes.WithLabelValues(d.topic, "failed").Inc()
		c.logger.Error("dlq write failed", applogger.String("dlq_topic", c.cfg.DLQTopic), applogger.Error(derr))
		return
	}
	consumerStats.outcomes.WithLabelValues(d.topic, "dlq").Inc()
	c.commit(d)
}

// attempt runs hooks and handler up to RetryMax+1 times.
func (c *Consumer) attempt(h MessageHandler, d *delivery) (int, error) {
	var err error
	for n := 1; ; n++ {
		err = c.handleOnce(h, d)
		if err == nil || n > c.cfg.RetryMax || c.ctx.Err() != nil {
			return n, err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, n)):
		case <-c.stop:
			return n, err
		}
	}
}

func (c *Consumer) handleOnce(h MessageHandler, d *delivery) (err error) {
	ctx, data, err := c.hook.BeforeHandle(c.ctx, d.topic, d.km, d.km.Value)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("handler panic: %v", r)}
		}
		c.hook.AfterHandle(ctx, d.topic, d.km, err)
	}()
	return h.Handle(ctx, data)
}

func (c *Consumer) park(d *delivery, attempts int, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	headers := append([]kafka.Header{
		{Key: "source_topic", Value: []byte(d.topic)},
		{Key: "attempts", Value: []byte(strconv.Itoa(attempts))},
		{Key: "error", Value: []byte(cause.Error())},
	}, d.km.Headers...)
	return c.dlq.WriteMessages(ctx, kafka.Message{
		Key:     d.km.Key,
		Value:   d.km.Value,
		Headers: headers,
		Time:    time.Now(),
	})
}

func (c *Consumer) commit(d *delivery) {
	r := c.readers[d.topic]
	if r == nil {
		return
	}
	var err error
	for n := 1; n <= 3; n++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, d.km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, n))
	}
	c.logger.Warn("commit failed",
		applogger.String("topic", d.topic),
		applogger.Int64("offset", d.km.Offset),
		applogger.Error(err),
	)
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	key := topic + "/" + strconv.Itoa(partition)
	c.partMu.Lock()
	defer c.partMu.Unlock()
	l, ok := c.partLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.partLocks[key] = l
	}
	return l
}

func startOffset(s string) int64 {
	if s == "latest" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

// backoffWithJitter doubles min per attempt up to max and subtracts up to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 32 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	return exp - time.Duration(rand.Int63n(int64(exp)/2+1))
}

type consumerMetrics struct {
	depth    *prometheus.GaugeVec
	latency  *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

var (
	consumerOnce  sync.Once
	consumerStats *consumerMetrics
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerStats = &consumerMetrics{
			depth: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "stockpulse_kafka_consumer_queue_depth",
				Help: "Messages fetched and waiting for a worker",
			}, []string{"topic"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "stockpulse_kafka_consumer_handle_seconds",
				Help:    "Handling time per message including retries",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			}, []string{"topic"}),
			outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "stockpulse_kafka_consumer_messages_total",
				Help: "Handled messages by outcome (ok, dlq, failed)",
			}, []string{"topic", "outcome"}),
		}
	})
}
