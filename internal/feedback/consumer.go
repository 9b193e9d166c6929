// Package feedback ingests user feedback events from Kafka and hands them to
// the learning service. Events that cannot be learned from are parked on a
// dead-letter topic.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"tourism-retrieval/internal/common/config"
	apperrors "tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/common/metrics"
	"tourism-retrieval/internal/common/validation"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/engine"

	"github.com/segmentio/kafka-go"
)

const (
	DLQSuffix = "_dlq"

	defaultDLQAttempts = 5
	defaultDLQBackoff  = time.Second
)

// Event is the wire form of a feedback message.
type Event struct {
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Sources       []string `json:"sources,omitempty"`
	Confidence    float64  `json:"confidence"`
	Feedback      string   `json:"feedback,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Category      string   `json:"category,omitempty"`
	UserID        string   `json:"userId,omitempty"`
	SessionID     string   `json:"sessionId,omitempty"`
}

// Reader is the consuming side of a kafka.Reader.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Writer is the producing side of a kafka.Writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Submitter interface {
	SubmitFeedback(ctx context.Context, fb engine.Feedback) (models.InteractionOutcome, error)
}

type Consumer struct {
	reader      Reader
	dlq         Writer
	submitter   Submitter
	dlqAttempts int
	dlqBackoff  time.Duration
	logger      logger.Logger
}

func NewConsumer(reader Reader, dlq Writer, submitter Submitter, log logger.Logger) *Consumer {
	return &Consumer{
		reader:      reader,
		dlq:         dlq,
		submitter:   submitter,
		dlqAttempts: defaultDLQAttempts,
		dlqBackoff:  defaultDLQBackoff,
		logger:      logger.Component(log, "feedback-consumer"),
	}
}

// NewKafkaConsumer opens a group reader on cfg.Topic and a writer on its
// dead-letter topic. Offsets are committed manually.
func NewKafkaConsumer(cfg config.KafkaConfig, submitter Submitter, log logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	dlq := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic + DLQSuffix,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return NewConsumer(reader, dlq, submitter, log)
}

// Run consumes until ctx is cancelled or the reader is closed. A message is
// committed once it has been learned from or parked on the dead-letter
// topic. Offsets are positional, so a message that cannot be parked blocks
// its partition: the dead-letter write is retried until it succeeds or ctx
// ends, and nothing after it is fetched or committed in the meantime.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("feedback consumer started", nil)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				c.logger.Info("feedback consumer stopped", nil)
				return nil
			}
			c.logger.Error("fetch message", map[string]interface{}{"error": err.Error()})
			continue
		}

		if err := c.Process(ctx, msg); err != nil {
			c.logger.Warn("feedback event rejected, sending to DLQ", map[string]interface{}{
				"errorCode": string(apperrors.CodeOf(err)),
				"error":     err.Error(),
				"partition": msg.Partition,
				"offset":    msg.Offset,
			})
			for !c.deadLetter(ctx, msg, err) {
				if ctx.Err() != nil {
					c.logger.Info("feedback consumer stopped with message unparked", map[string]interface{}{
						"partition": msg.Partition,
						"offset":    msg.Offset,
					})
					return nil
				}
			}
		} else {
			metrics.FeedbackEventsConsumed.WithLabelValues("ok").Inc()
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("commit message", map[string]interface{}{
				"error":  err.Error(),
				"offset": msg.Offset,
			})
		}
	}
}

// Process decodes and validates one message and submits it for learning.
func (c *Consumer) Process(ctx context.Context, msg kafka.Message) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(msg.Value, &raw); err != nil {
		return apperrors.NewInvalidFeedbackError(fmt.Sprintf("decode event: %v", err))
	}
	result, err := validation.Validate(validation.FeedbackSchema, raw)
	if err != nil {
		return err
	}
	if !result.Valid {
		return apperrors.NewInvalidFeedbackError(result.Summary())
	}

	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return apperrors.NewInvalidFeedbackError(fmt.Sprintf("decode event: %v", err))
	}

	outcome, err := c.submitter.SubmitFeedback(ctx, engine.Feedback{
		Question:   ev.Question,
		Answer:     ev.Answer,
		Sources:    ev.Sources,
		Confidence: ev.Confidence,
		Feedback:   models.Feedback(ev.Feedback),
		Correction: ev.CorrectAnswer,
		Metadata: models.InteractionMetadata{
			Category:  ev.Category,
			UserID:    ev.UserID,
			SessionID: ev.SessionID,
		},
	})
	if err != nil {
		return err
	}

	c.logger.Debug("feedback event learned", map[string]interface{}{
		"interactionId": outcome.InteractionID,
		"category":      outcome.Category,
		"gapFlagged":    outcome.GapFlagged,
	})
	return nil
}

// deadLetter writes msg to the dead-letter topic with exponential backoff
// between attempts. It reports whether the write succeeded.
func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) bool {
	headers := append([]kafka.Header(nil), msg.Headers...)
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(headers,
			kafka.Header{Key: "original_topic", Value: []byte(msg.Topic)},
			kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: "error_code", Value: []byte(apperrors.CodeOf(cause))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := 0; attempt < c.dlqAttempts; attempt++ {
		err := c.dlq.WriteMessages(ctx, dlqMsg)
		if err == nil {
			metrics.FeedbackEventsConsumed.WithLabelValues("dlq").Inc()
			c.logger.Info("message sent to DLQ", map[string]interface{}{
				"offset":  msg.Offset,
				"attempt": attempt + 1,
			})
			return true
		}

		backoff := c.dlqBackoff << uint(attempt)
		c.logger.Warn("DLQ write failed, retrying", map[string]interface{}{
			"error":   err.Error(),
			"attempt": attempt + 1,
			"backoff": backoff.String(),
		})
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
	}

	metrics.FeedbackEventsConsumed.WithLabelValues("dlq_failed").Inc()
	c.logger.Error("DLQ write exhausted retries, holding partition", map[string]interface{}{
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})
	return false
}

func (c *Consumer) Close() error {
	return errors.Join(c.reader.Close(), c.dlq.Close())
}
