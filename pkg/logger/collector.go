package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"
)

const (
	defaultCollectInterval  = 30 * time.Second
	defaultCollectThreshold = 100
	publishTimeout          = 30 * time.Second

	// entries differing only by symbol fold into one entry
	symbolKey = "stock_code"
	// symbols listed per entry
	maxSymbolsPerEntry = 50
)

// Publisher ships aggregated entries, e.g. the Kafka producer.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // distinct pending entries that force a flush
	Topic          string
	Publisher      Publisher
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Symbols   []string               `json:"symbols,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector folds repeated warnings and errors into counted entries and publishes
// them every TimeInterval, or as soon as CountThreshold distinct entries are pending.
type LogCollector struct {
	config  CollectionConfig
	mu      sync.Mutex
	pending map[uint64]*pendingEntry
	done    chan struct{}
	wg      sync.WaitGroup
}

type pendingEntry struct {
	AggregatedLogEntry
	seen map[string]struct{}
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = defaultCollectInterval
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = defaultCollectThreshold
	}
	c := &LogCollector{
		config:  cfg,
		pending: make(map[uint64]*pendingEntry),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	symbol, _ := fields[symbolKey].(string)
	rest := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if k != symbolKey {
			rest[k] = v
		}
	}
	key := entryKey(level, message, caller, rest)

	c.mu.Lock()
	e, ok := c.pending[key]
	if !ok {
		e = &pendingEntry{
			AggregatedLogEntry: AggregatedLogEntry{
				Level:     level,
				Message:   message,
				Fields:    rest,
				Caller:    caller,
				FirstSeen: now,
			},
			seen: make(map[string]struct{}),
		}
		c.pending[key] = e
	}
	e.Count++
	e.LastSeen = now
	if _, dup := e.seen[symbol]; symbol != "" && !dup && len(e.Symbols) < maxSymbolsPerEntry {
		e.seen[symbol] = struct{}{}
		e.Symbols = append(e.Symbols, symbol)
	}
	var batch []AggregatedLogEntry
	if len(c.pending) >= c.config.CountThreshold {
		batch = c.takeLocked()
	}
	c.mu.Unlock()

	if batch != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.publish(batch)
		}()
	}
}

// entryKey hashes level, message, caller and the fields in key order.
func entryKey(level, message, caller string, fields map[string]interface{}) uint64 {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s", level, message, caller)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, fields[k])
	}
	return h.Sum64()
}

func (c *LogCollector) loop() {
	defer c.wg.Done()
	t := time.NewTicker(c.config.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.flush()
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *LogCollector) flush() {
	c.mu.Lock()
	batch := c.takeLocked()
	c.mu.Unlock()
	c.publish(batch)
}

// takeLocked drains pending entries. Caller holds mu.
func (c *LogCollector) takeLocked() []AggregatedLogEntry {
	if len(c.pending) == 0 {
		return nil
	}
	out := make([]AggregatedLogEntry, 0, len(c.pending))
	for _, e := range c.pending {
		out = append(out, e.AggregatedLogEntry)
	}
	c.pending = make(map[uint64]*pendingEntry)
	return out
}

func (c *LogCollector) publish(batch []AggregatedLogEntry) {
	if len(batch) == 0 || c.config.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	// the logger cannot log its own sink failures
	if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
		fmt.Fprintf(os.Stderr, "publish aggregated logs: %v\n", err)
	}
}

// Close publishes what is pending and waits for in-flight publishes.
func (c *LogCollector) Close() {
	close(c.done)
	c.wg.Wait()
}
