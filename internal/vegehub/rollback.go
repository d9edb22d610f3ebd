package vegehub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vegetronix/vegehub/internal/logging"
)

// ConfigSnapshot is a saved copy of a hub's configuration blob
type ConfigSnapshot struct {
	// Config is a deep copy of the blob as read from the hub
	Config map[string]any

	// Timestamp when this snapshot was created
	Timestamp time.Time

	// Description of what operation this snapshot was taken before
	Description string
}

// SnapshotManager keeps a bounded history of config snapshots for one hub
type SnapshotManager struct {
	hub *Hub

	// Retries is the request budget used for reads and restores
	Retries int

	snapshots    []*ConfigSnapshot
	maxSnapshots int
	mutex        sync.RWMutex
}

// NewSnapshotManager creates a snapshot manager for a hub
func NewSnapshotManager(hub *Hub) *SnapshotManager {
	return &SnapshotManager{
		hub:          hub,
		Retries:      DefaultRetries,
		snapshots:    make([]*ConfigSnapshot, 0, 10),
		maxSnapshots: 10,
	}
}

// SaveSnapshot reads the current hub config and stores a copy of it
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, description string) (*ConfigSnapshot, error) {
	blob, err := sm.hub.FetchConfig(ctx, sm.Retries)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch configuration for snapshot: %w", err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("hub returned an empty configuration")
	}

	snapshot := &ConfigSnapshot{
		Config:      CloneConfig(blob),
		Timestamp:   time.Now(),
		Description: description,
	}

	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.snapshots = append(sm.snapshots, snapshot)
	if len(sm.snapshots) > sm.maxSnapshots {
		sm.snapshots = sm.snapshots[1:]
	}

	return snapshot, nil
}

// LatestSnapshot returns the most recent snapshot, or nil if none exist
func (sm *SnapshotManager) LatestSnapshot() *ConfigSnapshot {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	if len(sm.snapshots) == 0 {
		return nil
	}
	return sm.snapshots[len(sm.snapshots)-1]
}

// Snapshots returns all snapshots, oldest first
func (sm *SnapshotManager) Snapshots() []*ConfigSnapshot {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	result := make([]*ConfigSnapshot, len(sm.snapshots))
	copy(result, sm.snapshots)
	return result
}

// ClearSnapshots removes all saved snapshots
func (sm *SnapshotManager) ClearSnapshots() {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.snapshots = make([]*ConfigSnapshot, 0, 10)
}

// Restore writes a snapshot back to the hub
func (sm *SnapshotManager) Restore(ctx context.Context, snapshot *ConfigSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot is nil")
	}
	if err := sm.hub.SetConfig(ctx, CloneConfig(snapshot.Config), sm.Retries); err != nil {
		return fmt.Errorf("failed to restore snapshot %q: %w", snapshot.Description, err)
	}
	return nil
}

// RestoreLatest writes the most recent snapshot back to the hub
func (sm *SnapshotManager) RestoreLatest(ctx context.Context) error {
	snapshot := sm.LatestSnapshot()
	if snapshot == nil {
		return fmt.Errorf("no snapshots available for rollback")
	}
	return sm.Restore(ctx, snapshot)
}

// SafeSetup runs Setup with verification and restores the previous config if
// either fails
func (sm *SnapshotManager) SafeSetup(ctx context.Context, apiKey, serverURL string, opts *VerificationOptions) *SafeSetupResult {
	description := fmt.Sprintf("setup %s", serverURL)
	result := &SafeSetupResult{Description: description}

	snapshot, err := sm.SaveSnapshot(ctx, description)
	if err != nil {
		result.Error = fmt.Errorf("failed to save pre-setup snapshot: %w", err)
		return result
	}

	verifyResult := sm.hub.SetupAndVerify(ctx, apiKey, serverURL, sm.Retries, opts)
	result.Verification = verifyResult

	if verifyResult.Success {
		result.Success = true
		return result
	}

	result.RollbackAttempted = true
	logging.Warn("Setup failed, restoring previous config",
		zap.String("device", sm.hub.Address),
		zap.Error(verifyResult.Error),
	)

	if err := sm.Restore(ctx, snapshot); err != nil {
		result.RollbackError = err
		result.Error = fmt.Errorf("setup failed (%w) AND rollback failed: %w", verifyResult.Error, err)
		return result
	}

	result.RollbackSucceeded = true
	result.Error = fmt.Errorf("setup failed (%w), restored previous configuration", verifyResult.Error)
	return result
}

// SafeSetupResult contains the results of a safe setup operation
type SafeSetupResult struct {
	// Success indicates whether setup succeeded and was verified
	Success bool

	// Description of the operation
	Description string

	// Verification contains the result of the setup and verification
	Verification *VerificationResult

	// RollbackAttempted indicates whether the previous config was written back
	RollbackAttempted bool

	// RollbackSucceeded is only meaningful if RollbackAttempted is true
	RollbackSucceeded bool

	// RollbackError is the restore failure, if any
	RollbackError error

	// Error contains any error that occurred
	Error error
}

// String returns a human-readable summary of the safe setup result
func (r *SafeSetupResult) String() string {
	if r.Success {
		return fmt.Sprintf("✅ Setup succeeded: %s (verified in %d attempt(s))",
			r.Description, r.Verification.Attempts)
	}

	if r.RollbackAttempted {
		if r.RollbackSucceeded {
			return fmt.Sprintf("⚠️  Setup failed but previous configuration was restored: %s\nSetup error: %v",
				r.Description, r.Verification.Error)
		}
		return fmt.Sprintf("❌ Setup failed and rollback failed: %s\nSetup error: %v\nRollback error: %v",
			r.Description, r.Verification.Error, r.RollbackError)
	}

	return fmt.Sprintf("❌ Setup failed: %s\nError: %v", r.Description, r.Error)
}
