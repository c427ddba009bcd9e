package constants

// Session and context keys
const (
	SessionCookieName  = "edu_session"
	ContextKeyUserID   = "user_id"
	ContextKeyUserRole = "user_role"
	ContextKeyProject  = "project"
)

// Validation limits
const (
	MinPasswordLength       = 8
	MaxAIGeneratedQuestions = 20
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Realtime event names
const (
	EventNotification = "notification"
)
