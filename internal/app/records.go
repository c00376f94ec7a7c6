package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/offsync/internal/domain"
	"github.com/bft-labs/offsync/internal/ports"
)

// loadRecord decodes a persisted record. An absent record yields the zero
// value. A record that no longer decodes is copied aside under
// "<name>.corrupt-<unix>" and the zero value is returned, so the session can
// start while the bad bytes stay available for inspection.
func loadRecord[T any](ctx context.Context, storage ports.Storage, ns, name string, logger ports.Logger) (T, error) {
	var zero T
	data, err := storage.Load(ctx, ns, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return zero, nil
		}
		return zero, fmt.Errorf("%w: load %s: %v", domain.ErrStorage, name, err)
	}

	// json.Unmarshal may fill v partway before failing
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", name, time.Now().Unix())
		logger.Error("discarding unreadable record",
			ports.String("session", ns),
			ports.String("record", name),
			ports.String("moved_to", aside),
			ports.Err(err),
		)
		if saveErr := storage.Save(ctx, ns, aside, data); saveErr != nil {
			logger.Error("failed to preserve unreadable record", ports.Err(saveErr))
		}
		return zero, nil
	}
	return v, nil
}

// saveRecord encodes v and writes it through to storage.
// Persistence is not abandoned when the caller's context is canceled.
func saveRecord(ctx context.Context, storage ports.Storage, ns, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrStorage, name, err)
	}
	if err := storage.Save(context.WithoutCancel(ctx), ns, name, data); err != nil {
		return fmt.Errorf("%w: save %s: %v", domain.ErrStorage, name, err)
	}
	return nil
}
