package constants

const (
	// Pagination
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	// Context keys
	ContextKeyActor     = "actor"
	ContextKeyUserID    = "user_id"
	ContextKeyRequestID = "request_id"
	ContextKeyTask      = "task"
	ContextKeyUser      = "resource_user"

	// Sessions
	SessionCookieName   = "task_session"
	SessionKeyAuthToken = "auth_token"
	RememberMaxAge      = 20 * 365 * 24 * 60 * 60

	// Headers
	HeaderAuthentication = "Authentication"
	HeaderRequestID      = "X-Request-ID"

	// User constraints
	MinNameLength     = 3
	MaxNameLength     = 30
	MinPasswordLength = 4
	MaxPasswordLength = 20

	// Attachments
	MaxAttachmentSize = 2 << 20
	AttachmentField   = "attachment"
	UploadIDLength    = 12

	// Thumbnails of image attachments
	ThumbnailSize            = 200
	MaxThumbnailSourcePixels = 4096 * 4096

	// Auth tokens
	AuthTokenLength     = 22
	MaxTokenAttempts    = 16
	MaxTokenInsertRetry = 3
)
