// Package flags provides runtime flags for the monitor: toggles the operator
// can flip without restarting the sweep loop.
package flags

import (
	"time"
)

// Well-known flag keys.
const (
	// FlagProbeEnabled turns the active round-trip probe on or off.
	FlagProbeEnabled = "probe_enabled"

	// FlagProbeDeleteMessage removes probe messages after delivery.
	FlagProbeDeleteMessage = "probe_delete_message"

	// FlagAlertsEnabled gates operator alert delivery.
	FlagAlertsEnabled = "alerts_enabled"

	// FlagWebhookRequireMatch makes the webhook checker fail when the
	// registered callback URL differs from the bot's target URL.
	FlagWebhookRequireMatch = "webhook_require_match"
)

// Flag is a runtime flag with its current value.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// BoolValue returns the flag value as a boolean, or defaultValue when the
// flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return defaultValue
	}
}

// Defaults returns the built-in value for every well-known flag.
func Defaults() map[string]bool {
	return map[string]bool{
		FlagProbeEnabled:        true,
		FlagProbeDeleteMessage:  false,
		FlagAlertsEnabled:       true,
		FlagWebhookRequireMatch: false,
	}
}
