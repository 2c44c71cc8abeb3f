// Package journal records confirmed client-side mutations as JSON lines to a
// file and/or a Kafka topic.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"delivery/internal/metrics"
)

type Kind string

const (
	KindLogin          Kind = "login"
	KindLogout         Kind = "logout"
	KindOrderCreated   Kind = "order_created"
	KindOrderAdvanced  Kind = "order_advanced"
	KindOrderDeleted   Kind = "order_deleted"
	KindProductCreated Kind = "product_created"
	KindProductDeleted Kind = "product_deleted"
)

type Event struct {
	ID        string      `json:"id"`
	Kind      Kind        `json:"kind"`
	Actor     string      `json:"actor,omitempty"`
	OrderID   int64       `json:"orderId,omitempty"`
	ProductID int64       `json:"productId,omitempty"`
	Status    string      `json:"status,omitempty"`
	Total     json.Number `json:"total,omitempty"`
	TS        int64       `json:"ts"`
}

// key partitions events by the entity they touch.
func (e Event) key() string {
	switch {
	case e.OrderID != 0:
		return "order#" + strconv.FormatInt(e.OrderID, 10)
	case e.ProductID != 0:
		return "product#" + strconv.FormatInt(e.ProductID, 10)
	}
	return "actor#" + e.Actor
}

type Writer interface {
	Append(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Append(context.Context, Event) error { return nil }

// MultiWriter fans out writes to multiple underlying writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(ctx context.Context, e Event) error {
	for _, w := range m.writers {
		if err := w.Append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

type FileWriter struct {
	mu   sync.Mutex
	path string
}

func NewFileWriter(dir string, filename string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{path: filepath.Join(dir, filename)}, nil
}

func (w *FileWriter) Append(_ context.Context, e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&e); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// KafkaWriter publishes events to a Kafka topic.
type KafkaWriter struct {
	writer kafkaMessageWriter
}

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter takes a comma-separated list of host:port brokers.
func NewKafkaWriter(bootstrap string, topic string) *KafkaWriter {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		if a = strings.TrimSpace(a); a != "" {
			brokers = append(brokers, a)
		}
	}
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 5 * time.Second,
	}}
}

// NewKafkaWriterWith is only for tests to inject a fake writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}

func (k *KafkaWriter) Append(ctx context.Context, e Event) error {
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.key()), Value: b})
}

// Close releases the underlying producer when it holds one.
func (k *KafkaWriter) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Journal stamps events and hands them to a Writer. Record never fails:
// write errors are logged and counted.
type Journal struct {
	w       Writer
	metrics *metrics.Registry
	now     func() time.Time
}

func New(w Writer, m *metrics.Registry) *Journal {
	if w == nil {
		w = Nop{}
	}
	return &Journal{w: w, metrics: m, now: time.Now}
}

func (j *Journal) Record(ctx context.Context, e Event) {
	if j == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.TS == 0 {
		e.TS = j.now().UnixMilli()
	}
	if err := j.w.Append(ctx, e); err != nil {
		log.Printf("journal append failed kind=%s id=%s: %v", e.Kind, e.ID, err)
		if j.metrics != nil {
			j.metrics.JournalFailed.Inc()
		}
		return
	}
	if j.metrics != nil {
		j.metrics.JournalAppended.Inc()
	}
}
