package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the import job ID
	FieldJobID = "job_id"

	// FieldBatchID is the batch run ID assigned when jobs are claimed
	FieldBatchID = "batch_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldProvider is the location data provider identifier
	FieldProvider = "provider"

	// FieldMerchant is the merchant name being resolved
	FieldMerchant = "merchant"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldCost is the estimated provider cost in USD
	FieldCost = "cost"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
