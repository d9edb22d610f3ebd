// Package vegehub provides an HTTP client for VegeHub sensor and actuator hubs.
//
// A hub exposes a small JSON API on port 80 of the local network. This package
// wraps it with a retry-aware Hub handle: every request is attempted up to a
// caller-supplied budget with a short exponential backoff, and a request that
// never succeeds is reported as a *ConnectionError.
//
// # Usage Example
//
//	hub := vegehub.NewHub("192.168.0.100", "", nil)
//	defer hub.Close()
//
//	ok, err := hub.Setup(ctx, apiKey, "http://10.0.0.2:8321/api/vegehub/update", vegehub.DefaultRetries)
//	if err != nil {
//	    log.Fatal(vegehub.GetShortErrorMessage(err))
//	}
//	if !ok {
//	    log.Fatal("hub config not recognized")
//	}
//
// # Configuration Schemas
//
// Firmware speaks one of two config schemas, told apart structurally by
// ClassifyConfig:
//   - Endpoints: an "endpoints" array of upstream destinations. Setup installs or
//     overwrites the endpoint named "HomeAssistant".
//   - Legacy: a flat "api_key" plus a "hub" object holding server_url and
//     server_type.
//
// ReconcileConfig is the pure half of Setup and can be tested without a hub.
//
// # Safe Updates with Rollback
//
//	sm := vegehub.NewSnapshotManager(hub)
//	result := sm.SafeSetup(ctx, apiKey, serverURL, nil)
//	if !result.Success {
//	    log.Println(result)
//	}
//
// # Errors
//
// Failures are *DeviceError values classified by ErrorType. Use the Is*
// helpers, which see through *ConnectionError:
//   - IsConnectionError: the retry budget was exhausted
//   - IsDataShapeError: the hub answered 2xx without a required key
//   - IsValidationError: arguments were rejected before any request
//
// Schema mismatches are not errors; Setup reports them as false.
//
// # Thread Safety
//
// A Hub does no internal locking. Calls against one Hub must be serialized by
// the caller; separate Hubs may be used concurrently and may share a transport.
package vegehub
