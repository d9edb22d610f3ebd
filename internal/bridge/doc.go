// Package bridge receives the telemetry VegeHubs push and republishes it.
//
// A hub set up with "vegehub-cfg register" posts every reading to the bridge's
// update path with the api_key stored for it in the registry. The bridge:
//
//  1. Authenticates the payload against that key, or against the simple MAC
//     for devices registered without one
//  2. Splits slots into analog channels, battery and actuators using the
//     channel counts recorded at registration
//  3. Calibrates analog channels per their configured probe type
//  4. Publishes the resulting state through a Publisher (MQTT in production)
//
// Readings that fail calibration are dropped; they never fail the request.
// The last state of every hub is kept in memory and served on /devices.
//
// Routes:
//
//	POST {UpdatePath}      hub push endpoint (default /api/vegehub/update)
//	GET  /devices          last state of every hub
//	GET  /devices/{mac}    last state of one hub
//	GET  /healthz          liveness
//	GET  /metrics          Prometheus metrics
package bridge
