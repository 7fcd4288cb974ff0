package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/sl"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	BatchSize     int
	BatchTimeout  int
}

// ReportConsumer defines interface for consuming finished reports
type ReportConsumer interface {
	Subscribe(ctx context.Context) (<-chan *dto.ReportDTO, error)
	Commit(ctx context.Context, report *dto.ReportDTO) error
	Close() error
}

// KafkaProducer implements ReportPublisher using Kafka
type KafkaProducer struct {
	writer *kafka.Writer
}

var _ repository.ReportPublisher = (*KafkaProducer)(nil)

// NewKafkaProducer creates a new Kafka producer
func NewKafkaProducer(config KafkaConfig) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{}, // reports of one venue stay ordered on one partition
		RequiredAcks: kafka.RequireAll,
	}

	return &KafkaProducer{writer: writer}
}

// ReportMessage encodes a report keyed by its venue
func ReportMessage(report *dto.ReportDTO) (kafka.Message, error) {
	if report == nil {
		return kafka.Message{}, fmt.Errorf("cannot publish nil report")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal report: %w", err)
	}

	return kafka.Message{
		Key:   []byte(report.Source),
		Value: data,
		Time:  time.Now(),
	}, nil
}

// DecodeReport is the inverse of ReportMessage. Messages without a run id
// get one derived from their partition and offset.
func DecodeReport(msg kafka.Message) (*dto.ReportDTO, error) {
	var report dto.ReportDTO
	if err := json.Unmarshal(msg.Value, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	if report.Source == "" {
		report.Source = string(msg.Key)
	}
	if report.RunID == "" {
		report.RunID = fmt.Sprintf("%s-%d-%d", report.Source, msg.Partition, msg.Offset)
	}

	return &report, nil
}

// PublishReport sends a finished report to Kafka
func (p *KafkaProducer) PublishReport(ctx context.Context, report *dto.ReportDTO) error {
	msg, err := ReportMessage(report)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, msg)
}

// Close closes the producer
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer implements ReportConsumer using Kafka
type KafkaConsumer struct {
	log           *slog.Logger
	reader        *kafka.Reader
	topic         string
	pendingMsgs   map[string]kafka.Message // run id -> message
	pendingMsgsMu sync.RWMutex
	batchSize     int
	batchTimeout  time.Duration
}

// NewKafkaConsumer creates a new Kafka consumer
func NewKafkaConsumer(config KafkaConfig, log *slog.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6,             // 10MB
		CommitInterval: 0,                // Disable auto commit - we'll handle this manually
		StartOffset:    kafka.LastOffset, // only reports published after the first start matter
	})

	batchTimeout := time.Duration(config.BatchTimeout) * time.Millisecond
	if batchTimeout <= 0 {
		batchTimeout = 3 * time.Second
	}

	return &KafkaConsumer{
		log:          log.With(slog.String("component", "queue.KafkaConsumer"), slog.String("topic", config.Topic)),
		reader:       reader,
		topic:        config.Topic,
		pendingMsgs:  make(map[string]kafka.Message),
		batchSize:    config.BatchSize,
		batchTimeout: batchTimeout,
	}
}

// Subscribe returns a channel of reports from Kafka
func (c *KafkaConsumer) Subscribe(ctx context.Context) (<-chan *dto.ReportDTO, error) {
	reportCh := make(chan *dto.ReportDTO, 16)

	go c.startBatchCommitter(ctx)

	go func() {
		defer close(reportCh)

		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					c.log.Error("error fetching message", sl.Err(err))
				}
				return
			}

			report, err := DecodeReport(msg)
			if err != nil {
				c.log.Warn("skipping malformed report", sl.Err(err), slog.Int64("offset", msg.Offset))
				// Commit bad messages to avoid getting stuck
				_ = c.reader.CommitMessages(ctx, msg)
				continue
			}

			c.pendingMsgsMu.Lock()
			c.pendingMsgs[report.RunID] = msg
			pendingCount := len(c.pendingMsgs)
			c.pendingMsgsMu.Unlock()

			if c.batchSize > 0 && pendingCount > c.batchSize*10 {
				c.log.Warn("large number of uncommitted messages", slog.Int("pending", pendingCount), slog.Int("batch_size", c.batchSize))
			}

			select {
			case <-ctx.Done():
				return
			case reportCh <- report:
			}
		}
	}()

	return reportCh, nil
}

// startBatchCommitter periodically commits messages in batches
func (c *KafkaConsumer) startBatchCommitter(ctx context.Context) {
	ticker := time.NewTicker(c.batchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The original context is canceled
			c.commitAllPending(context.Background())
			return
		case <-ticker.C:
			c.commitAllPending(ctx)
		}
	}
}

func (c *KafkaConsumer) commitAllPending(ctx context.Context) {
	c.pendingMsgsMu.Lock()
	defer c.pendingMsgsMu.Unlock()

	if len(c.pendingMsgs) == 0 {
		return
	}

	msgs := make([]kafka.Message, 0, len(c.pendingMsgs))
	for _, msg := range c.pendingMsgs {
		msgs = append(msgs, msg)
	}

	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		c.log.Error("error committing batch", slog.Int("messages", len(msgs)), sl.Err(err))
		return
	}

	c.log.Debug("committed batch", slog.Int("messages", len(msgs)))
	c.pendingMsgs = make(map[string]kafka.Message)
}

// Commit acknowledges that a report has been processed
func (c *KafkaConsumer) Commit(ctx context.Context, report *dto.ReportDTO) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("cannot commit nil report or report with empty run id")
	}

	c.pendingMsgsMu.Lock()
	msg, exists := c.pendingMsgs[report.RunID]
	if !exists {
		c.pendingMsgsMu.Unlock()
		return fmt.Errorf("message for report %s not found in pending messages", report.RunID)
	}

	if len(c.pendingMsgs) < c.batchSize {
		delete(c.pendingMsgs, report.RunID)
		c.pendingMsgsMu.Unlock()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("failed to commit message for report %s: %w", report.RunID, err)
		}
		return nil
	}

	c.pendingMsgsMu.Unlock()
	c.commitAllPending(ctx)
	return nil
}

// Close closes the consumer
func (c *KafkaConsumer) Close() error {
	c.commitAllPending(context.Background())
	return c.reader.Close()
}
