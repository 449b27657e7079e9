package storage

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

// SettlePayment marks a pending scheduled payment paid and, when next is not
// nil, inserts the following occurrence in the same transaction. Either both
// writes land or neither does. A payment that is no longer pending yields
// core.ErrAlreadySettled.
func (r *SQLiteRepository) SettlePayment(ctx context.Context, paid core.Record, next *core.Record) (core.Record, *core.Record, error) {
	if paid.Kind != core.KindScheduledPayment || paid.Payment == nil {
		return core.Record{}, nil, core.NewValidationError("kind", core.ErrInvalidKind)
	}
	now := r.now().UTC()
	paid.UpdatedAt = now
	row, err := fromRecord(paid)
	if err != nil {
		return core.Record{}, nil, err
	}

	var created *core.Record
	err = r.withTx(ctx, func(q *Queries) error {
		n, err := q.SettlePayment(ctx, row)
		if err != nil {
			return &core.PersistenceError{Op: "settle payment", Err: err}
		}
		if n == 0 {
			if _, err := q.GetRecord(ctx, paid.ID, paid.UserID); err != nil {
				return notFoundOr("settle payment", paid.ID, err)
			}
			return fmt.Errorf("payment %s: %w", paid.ID, core.ErrAlreadySettled)
		}
		if next == nil {
			return nil
		}

		rec := *next
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt, rec.UpdatedAt = now, now
		nextRow, err := fromRecord(rec)
		if err != nil {
			return err
		}
		if err := q.CreateRecord(ctx, nextRow); err != nil {
			return &core.PersistenceError{Op: "create next payment", Err: err}
		}
		created = &rec
		return nil
	})
	if err != nil {
		return core.Record{}, nil, err
	}

	slog.InfoContext(ctx, "Payment settled in SQLite", "id", paid.ID, "next_scheduled", created != nil)
	return paid, created, nil
}
