// Package ui renders terminal output for the vegehub-cfg CLI.
//
// Components are "render once" lipgloss boxes: nothing here reads the keyboard
// except Confirm, which asks before overwriting a hub's configuration.
//
//   - Header: command banner with the target hub and parameters
//   - Result: success, warning and failure boxes with ordered details
//   - Table: bordered tables for scan results and the device registry
//   - Confirm: typed confirmation for destructive operations
//
// Example:
//
//	fmt.Println(ui.RenderCommandHeader(ui.HeaderConfig{
//	    Title:   "Hub Setup",
//	    Command: "vegehub-cfg setup",
//	    Params:  []ui.Detail{{Key: "Device", Value: "192.168.0.100"}},
//	}))
//	fmt.Println(ui.RenderSuccess("Hub configured", []ui.Detail{{Key: "Schema", Value: "endpoints"}}))
//
// Logging is controlled separately by VEGEHUB_LOG_LEVEL and goes to stderr, so
// these boxes stay readable when it is unset.
package ui
