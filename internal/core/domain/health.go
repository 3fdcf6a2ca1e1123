package domain

// HealthState is the transient availability flag of a registered provider.
// It is process-local and never persisted; transitions are owned by the
// registry (available -> degraded -> disabled).
type HealthState string

// Health states.
const (
	// HealthAvailable means the provider is offered as a candidate normally.
	HealthAvailable HealthState = "available"

	// HealthDegraded means repeated transient failures tripped the soft
	// circuit breaker; the provider is still offered but deprioritised,
	// and recovers after a cooldown window.
	HealthDegraded HealthState = "degraded"

	// HealthDisabled means the provider is not offered at all, either by
	// configuration or after a permanent failure such as bad credentials.
	HealthDisabled HealthState = "disabled"
)
