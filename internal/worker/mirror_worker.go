package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// RecordReader loads a single record. *storage.SQLiteRepository
// implements it.
type RecordReader interface {
	GetRecord(ctx context.Context, userID, id string) (core.Record, error)
}

// MirrorWorker applies record change notifications to the spreadsheet
// mirror. Messages carry only ids, so the current row is always read back
// from storage.
type MirrorWorker struct {
	records RecordReader
	mirror  sheets.RecordMirror
}

func NewMirrorWorker(records RecordReader, mirror sheets.RecordMirror) *MirrorWorker {
	return &MirrorWorker{records: records, mirror: mirror}
}

// HandleRecordChanged is the consumer callback for record change messages.
func (w *MirrorWorker) HandleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	slog.InfoContext(ctx, "Processing record change",
		"id", msg.ID,
		"user_id", msg.UserID,
		"kind", msg.Kind,
		"op", msg.Op)

	if msg.Op == amqp.OpDelete {
		return w.delete(ctx, msg.ID)
	}

	rec, err := w.records.GetRecord(ctx, msg.UserID, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted after the upsert was published.
		return w.delete(ctx, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}

	if err := w.mirror.Upsert(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "Failed to mirror record", "id", msg.ID, "error", err)
		return fmt.Errorf("mirror record: %w", err)
	}
	slog.InfoContext(ctx, "Record mirrored", "id", msg.ID, "kind", rec.Kind)
	return nil
}

func (w *MirrorWorker) delete(ctx context.Context, id string) error {
	if err := w.mirror.Delete(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to remove mirrored record", "id", id, "error", err)
		return fmt.Errorf("delete mirrored record: %w", err)
	}
	slog.InfoContext(ctx, "Mirrored record removed", "id", id)
	return nil
}
