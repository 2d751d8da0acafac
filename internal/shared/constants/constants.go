package constants

const (
	// Environment constants
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// HTTP Headers
	HeaderContentType     = "Content-Type"
	HeaderXRequestID      = "X-Request-ID"
	HeaderStripeSignature = "Stripe-Signature"

	// Content Types
	ContentTypeJSON = "application/json"

	// Context keys
	ContextKeyRequestID = "request_id"

	// Database table names
	TableUsers           = "users"
	TablePlans           = "plans"
	TableSubscriptions   = "subscriptions"
	TablePayments        = "payments"
	TableNotifications   = "notifications"
	TableProcessedEvents = "processed_events"
	TableJobs            = "jobs"

	// Error messages
	ErrMsgInternalServerError = "Internal server error occurred"
	ErrMsgValidationFailed    = "Validation failed"
)
