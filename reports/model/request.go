package model

// GenerationRequest is the validated, normalized input the coordinator
// receives from the API layer. All validation happens before this struct is
// constructed; the coordinator trusts it.
type GenerationRequest struct {
	// Subject identity fields. Name/DateOfBirth/TimeOfBirth/Place identify
	// the person the report is about; Latitude/Longitude disambiguate the
	// place when two locations share a name.
	Name        string  `json:"name"`
	DateOfBirth string  `json:"date_of_birth"`
	TimeOfBirth string  `json:"time_of_birth"`
	Place       string  `json:"place"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`

	// ArtifactType selects the kind of report to generate and drives the
	// cache TTL table and substitute-path eligibility.
	ArtifactType string `json:"artifact_type"`

	// TargetPeriod disambiguates period-scoped artifacts (e.g. a yearly
	// forecast for 2026 vs 2027). Empty for timeless artifacts.
	TargetPeriod string `json:"target_period,omitempty"`

	// RetryNonce lets a caller deliberately start a fresh attempt after a
	// terminal failure. It feeds the idempotency key but not the cache key.
	RetryNonce string `json:"retry_nonce,omitempty"`

	// Email is a stable contact identity used for budget tracking only; it
	// never affects the idempotency key.
	Email string `json:"email,omitempty"`

	// ForceReal requests the real generation path for this request even in
	// contexts that would otherwise route to the substitute path.
	ForceReal bool `json:"force_real,omitempty"`

	// Synthetic marks requests originating from test harnesses and demo
	// flows; they route to the substitute path unless overridden.
	Synthetic bool `json:"synthetic,omitempty"`
}
