package processing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kzharvest/harvester/pkg/fetch"
	"github.com/kzharvest/harvester/pkg/record"
	"github.com/kzharvest/harvester/pkg/storage"
)

// Dead-letter reasons.
const (
	ReasonTransport  = "transport_error"
	ReasonDecode     = "decode_error"
	ReasonHTTPStatus = "http_status"
	ReasonGap        = "gap"
)

// Handler applies the outcome of one fetch: it persists found records,
// reports failures and asks the policy what the scanner should do next.
// One Handler serves one scanner.
type Handler struct {
	Sink   storage.Sink
	DLQ    DLQPublisher
	Policy Policy
	Logger *slog.Logger
	// Frontier marks a scanner whose NotFound outcomes mean it caught up with
	// the newest record, rather than hit a hole in history.
	Frontier bool
}

// Handle persists or reports out and returns the policy decision. Nothing
// that happens here stops the scan.
func (h *Handler) Handle(ctx context.Context, id uint64, out fetch.Outcome, stalls int) Decision {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dlq := h.DLQ
	if dlq == nil {
		dlq = &NoopDLQPublisher{}
	}

	decision := h.Policy.Decide(out, stalls)

	switch out.Kind {
	case fetch.Found:
		h.persist(ctx, logger, out.Record)
	case fetch.TransportError:
		reason := classify(out.Err)
		logger.Error("fetch failed, moving on", "id", id, "reason", reason, "error", out.Err)
		if ctx.Err() == nil {
			if err := dlq.Publish(ctx, id, reason); err != nil {
				logger.Error("error publishing to DLQ", "id", id, "error", err)
			}
		}
	case fetch.NotFound:
		switch {
		case decision.Gap:
			logger.Warn("giving up on missing record", "id", id, "attempts", stalls+1)
			if ctx.Err() == nil {
				if err := dlq.Publish(ctx, id, ReasonGap); err != nil {
					logger.Error("error publishing to DLQ", "id", id, "error", err)
				}
			}
		case h.Frontier:
			logger.Info("reached most recent record, sleeping", "id", id, "delay", decision.Delay)
		default:
			logger.Warn("record missing, waiting before retry", "id", id, "delay", decision.Delay)
		}
	}
	return decision
}

func (h *Handler) persist(ctx context.Context, logger *slog.Logger, rec record.Record) {
	if h.Sink == nil {
		return
	}
	logger.Debug("writing record", "record", rec.Label())
	// The record has already been fetched; shutdown must not discard it.
	err := h.Sink.Persist(context.WithoutCancel(ctx), rec)
	switch {
	case err == nil && storage.IsQueued(h.Sink):
		logger.Debug("record queued", "record", rec.Label())
	case err == nil:
		logger.Info("record written", "record", rec.Label())
	case errors.Is(err, storage.ErrSerialization):
		logger.Error("failed to serialize record, dropping it", "record", rec.Label(), "error", err)
	default:
		logger.Error("failed to write record", "record", rec.Label(), "error", err)
	}
}

func classify(err error) string {
	var apiErr *fetch.APIError
	switch {
	case errors.As(err, &apiErr):
		return ReasonHTTPStatus
	case errors.Is(err, record.ErrDecode):
		return ReasonDecode
	default:
		return ReasonTransport
	}
}
