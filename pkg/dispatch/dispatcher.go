// Package dispatch fans one event out to a group's enabled integrations.
// One integration's failure never affects another and never blocks the
// caller.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/providers"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// DefaultOverallTimeout bounds one async dispatch run across all
// integrations and their retries
const DefaultOverallTimeout = 2 * time.Minute

// FailureRecorder appends delivery-failure events to the audit log.
// Satisfied by repositories.EventRepository.
type FailureRecorder interface {
	Append(ctx context.Context, event *models.Event) error
}

// Config holds dispatcher tuning
type Config struct {
	OverallTimeout time.Duration
	FailureEvents  bool
	DLQEnabled     bool
}

// Dispatcher routes events to provider adapters
type Dispatcher struct {
	registry *providers.Registry
	sender   providers.Sender
	dlq      *redis.DeadLetterQueue
	recorder FailureRecorder
	cfg      Config
	logger   ectologger.Logger
}

// NewDispatcher creates a new dispatcher. dlq and recorder are optional;
// nil disables the corresponding failure sink.
func NewDispatcher(registry *providers.Registry, sender providers.Sender, dlq *redis.DeadLetterQueue, recorder FailureRecorder, cfg Config, logger ectologger.Logger) *Dispatcher {
	if cfg.OverallTimeout <= 0 {
		cfg.OverallTimeout = DefaultOverallTimeout
	}
	return &Dispatcher{
		registry: registry,
		sender:   sender,
		dlq:      dlq,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Dispatch delivers the event to each enabled config in the order supplied.
// Disabled configs are skipped; every processed config yields exactly one
// result regardless of what its adapter does.
func (d *Dispatcher) Dispatch(ctx context.Context, payload *providers.EventPayload, configs []models.IntegrationConfig) []models.DeliveryResult {
	ctx, span := tracing.StartSpan(ctx, "Dispatcher.Dispatch")
	defer span.End()

	results := make([]models.DeliveryResult, 0, len(configs))
	for i := range configs {
		cfg := &configs[i]
		if !cfg.Enabled {
			continue
		}

		result := d.dispatchOne(ctx, payload, cfg)
		results = append(results, result)

		status := "failed"
		if result.Success {
			status = "success"
		}
		metrics.DispatchesTotal.WithLabelValues(string(cfg.Kind), status).Inc()
	}

	return results
}

// dispatchOne runs a single adapter with panic containment
func (d *Dispatcher) dispatchOne(ctx context.Context, payload *providers.EventPayload, cfg *models.IntegrationConfig) (result models.DeliveryResult) {
	result = models.DeliveryResult{
		IntegrationID:   cfg.ID,
		IntegrationKind: cfg.Kind,
		CompletedAt:     time.Now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.WithContext(ctx).WithFields(map[string]any{
				"integration_id": cfg.ID,
				"kind":           cfg.Kind,
				"panic":          fmt.Sprintf("%v", r),
			}).Error("adapter panicked during dispatch")
			result.Success = false
			result.Error = fmt.Sprintf("adapter panic: %v", r)
			result.CompletedAt = time.Now().UTC()
		}
	}()

	adapter, ok := d.registry.Get(cfg.Kind)
	if !ok {
		result.Error = fmt.Sprintf("unknown integration kind: %s", cfg.Kind)
		return result
	}

	res := adapter.Deliver(ctx, d.sender, cfg, payload)

	result.Success = res.Success
	result.Attempts = res.Attempts
	result.StatusCode = res.StatusCode
	result.ResponseBody = res.Body
	result.CompletedAt = time.Now().UTC()
	if res.Err != nil {
		result.Error = res.Err.Error()
	}

	return result
}

// DispatchAsync runs Dispatch on its own goroutine, detached from the
// request context so a slow endpoint cannot delay the original write. Failed
// results go to the DLQ and, when enabled, the event log.
func (d *Dispatcher) DispatchAsync(ctx context.Context, payload *providers.EventPayload, configs []models.IntegrationConfig) {
	if len(configs) == 0 {
		return
	}

	groupID := payload.GroupID

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), d.cfg.OverallTimeout)
		defer cancel()
		runCtx = appctx.SetGroupID(runCtx, groupID)

		results := d.Dispatch(runCtx, payload, configs)

		for _, result := range results {
			if result.Success {
				d.logger.WithContext(runCtx).WithFields(map[string]any{
					"integration_id": result.IntegrationID,
					"kind":           result.IntegrationKind,
					"attempts":       result.Attempts,
				}).Infof("Delivered %s", payload.Event)
				continue
			}

			d.logger.WithContext(runCtx).WithFields(map[string]any{
				"integration_id": result.IntegrationID,
				"kind":           result.IntegrationKind,
				"attempts":       result.Attempts,
				"status_code":    result.StatusCode,
				"error":          result.Error,
			}).Errorf("Delivery of %s failed", payload.Event)

			d.recordFailure(runCtx, payload, result)
		}
	}()
}

// recordFailure pushes a failed result to the DLQ and optionally appends an
// event. Both sinks are best effort.
func (d *Dispatcher) recordFailure(ctx context.Context, payload *providers.EventPayload, result models.DeliveryResult) {
	if d.cfg.DLQEnabled && d.dlq != nil {
		entry := &redis.DLQEntry{
			GroupID:         payload.GroupID,
			IntegrationID:   result.IntegrationID.String(),
			IntegrationKind: string(result.IntegrationKind),
			EventType:       payload.Event,
			Attempts:        result.Attempts,
			StatusCode:      result.StatusCode,
			ErrorMessage:    result.Error,
		}
		if _, err := d.dlq.Add(ctx, entry); err != nil {
			d.logger.WithContext(ctx).WithError(err).Warn("Failed to record delivery failure in DLQ")
		}
	}

	if d.cfg.FailureEvents && d.recorder != nil {
		metadata := map[string]any{
			"integration_id":   result.IntegrationID.String(),
			"integration_kind": result.IntegrationKind,
			"event_type":       payload.Event,
			"attempts":         result.Attempts,
			"error":            result.Error,
		}
		event := &models.Event{
			ID:        uuid.New(),
			EventType: models.EventIntegrationDeliveryFailed,
			Metadata:  database.JSONB[map[string]any]{Data: metadata},
		}
		if err := d.recorder.Append(ctx, event); err != nil {
			d.logger.WithContext(ctx).WithError(err).Warn("Failed to append delivery failure event")
		}
	}
}
