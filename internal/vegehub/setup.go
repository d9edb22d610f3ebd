package vegehub

import (
	"context"

	"go.uber.org/zap"

	"github.com/vegetronix/vegehub/internal/logging"
)

// Setup points the hub's upstream reporting at serverURL, authenticated with apiKey.
//
// The current config is read, reconciled for whichever schema the firmware
// speaks and written back. Unrelated configuration is preserved and repeated
// calls with the same arguments leave a single reserved endpoint.
//
// Setup returns false without writing when the hub has no config or the config
// matches neither schema. Errors are returned only when the hub cannot be
// reached within the retry budget, the context is done, or a response cannot be
// parsed.
//
// After a successful write the cached info is refreshed. A failed refresh never
// changes the result: the cache is cleared and a warning logged, so callers must
// tolerate Info() returning nil after a successful Setup.
func (h *Hub) Setup(ctx context.Context, apiKey, serverURL string, retries int) (bool, error) {
	blob, err := h.FetchConfig(ctx, retries)
	if err != nil {
		return false, err
	}
	if len(blob) == 0 {
		logging.Warn("Hub returned an empty config", zap.String("device", h.Address))
		return false, nil
	}

	updated, ok := ReconcileConfig(blob, apiKey, serverURL)
	if !ok {
		shape, _ := ClassifyConfig(blob).(UnrecognizedConfig)
		logging.Warn("Unrecognized hub config schema",
			zap.String("device", h.Address),
			zap.String("reason", shape.Reason),
		)
		return false, nil
	}

	if err := h.SetConfig(ctx, updated, retries); err != nil {
		return false, err
	}

	logging.Info("Hub configured",
		zap.String("device", h.Address),
		zap.String("schema", SchemaName(ClassifyConfig(updated))),
		zap.String("server_url", serverURL),
	)

	h.refreshInfo(ctx, retries)
	return true, nil
}

// refreshInfo re-reads the info after a config write. It never fails the caller.
func (h *Hub) refreshInfo(ctx context.Context, retries int) {
	if _, err := h.FetchInfo(ctx, retries); err != nil {
		h.info = nil
		logging.Warn("Info refresh after setup failed",
			zap.String("device", h.Address),
			zap.Error(err),
		)
	}
}
