package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// DefaultDLQStream is the default dead letter stream for failed deliveries
	DefaultDLQStream = "fern:delivery:dlq"

	// DLQMaxLen is the maximum length of the DLQ stream (oldest entries trimmed)
	DLQMaxLen = 10000
)

// DeadLetterQueue records terminal delivery failures for operator inspection
type DeadLetterQueue struct {
	client     *Client
	streamName string
	logger     ectologger.Logger
}

// NewDeadLetterQueue creates a new dead letter queue handler
func NewDeadLetterQueue(client *Client, streamName string, logger ectologger.Logger) *DeadLetterQueue {
	if streamName == "" {
		streamName = DefaultDLQStream
	}
	return &DeadLetterQueue{
		client:     client,
		streamName: streamName,
		logger:     logger,
	}
}

// DLQEntry is one failed delivery
type DLQEntry struct {
	ID              string    `json:"id"`
	GroupID         string    `json:"group_id"`
	IntegrationID   string    `json:"integration_id"`
	IntegrationKind string    `json:"integration_kind"`
	EventType       string    `json:"event_type"`
	Attempts        int       `json:"attempts"`
	StatusCode      int       `json:"status_code,omitempty"`
	ErrorMessage    string    `json:"error_message"`
	CreatedAt       time.Time `json:"created_at"`
	TraceID         string    `json:"trace_id,omitempty"`
}

// Add pushes a failed delivery onto the stream
func (d *DeadLetterQueue) Add(ctx context.Context, entry *DLQEntry) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "DLQ.Add")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.TraceID = tracing.GetTraceID(ctx)

	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal DLQ entry: %w", err)
	}

	// Add to stream with max length trimming
	messageID, err := d.client.Redis().XAdd(ctx, &redis.XAddArgs{
		Stream: d.streamName,
		MaxLen: DLQMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":             string(data),
			"group_id":         entry.GroupID,
			"integration_kind": entry.IntegrationKind,
			"event_type":       entry.EventType,
		},
	}).Result()

	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Error("Failed to add delivery to DLQ")
		return "", fmt.Errorf("failed to add to DLQ: %w", err)
	}

	metrics.DLQPushedTotal.Inc()
	d.logger.WithContext(ctx).Infof("Added delivery to DLQ: id=%s integration=%s event=%s", entry.ID, entry.IntegrationID, entry.EventType)
	return messageID, nil
}

// List returns the newest entries from the dead letter queue
func (d *DeadLetterQueue) List(ctx context.Context, count int64) ([]DLQEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "DLQ.List")
	defer span.End()

	if count <= 0 {
		count = 100
	}

	messages, err := d.client.Redis().XRevRangeN(ctx, d.streamName, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLQ: %w", err)
	}

	entries := make([]DLQEntry, 0, len(messages))
	for _, msg := range messages {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}

		var entry DLQEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			d.logger.WithContext(ctx).WithError(err).Warnf("Failed to unmarshal DLQ entry: %s", msg.ID)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// ListByGroup returns entries for a specific group
func (d *DeadLetterQueue) ListByGroup(ctx context.Context, groupID string, count int64) ([]DLQEntry, error) {
	entries, err := d.List(ctx, count*2) // Fetch more to filter
	if err != nil {
		return nil, err
	}

	filtered := make([]DLQEntry, 0)
	for _, entry := range entries {
		if entry.GroupID == groupID {
			filtered = append(filtered, entry)
			if int64(len(filtered)) >= count {
				break
			}
		}
	}

	return filtered, nil
}

// Delete removes an entry from the dead letter queue
func (d *DeadLetterQueue) Delete(ctx context.Context, messageID string) error {
	ctx, span := tracing.StartSpan(ctx, "DLQ.Delete")
	defer span.End()

	count, err := d.client.Redis().XDel(ctx, d.streamName, messageID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete DLQ entry: %w", err)
	}

	if count == 0 {
		return fmt.Errorf("DLQ entry not found: %s", messageID)
	}

	d.logger.WithContext(ctx).Infof("Deleted DLQ entry: %s", messageID)
	return nil
}

// Count returns the number of entries in the DLQ
func (d *DeadLetterQueue) Count(ctx context.Context) (int64, error) {
	return d.client.Redis().XLen(ctx, d.streamName).Result()
}
