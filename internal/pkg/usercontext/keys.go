package usercontext

// Session keys written by the account service at login and read here.
const (
	SessionUserID   = "user_id"
	SessionUsername = "username"
	SessionIsAdmin  = "is_admin"
)

// Locals keys used across controllers and middlewares
const (
	KeyContext       = "USER_CONTEXT"
	KeyUserID        = "user_id"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"
	KeyViaAPIKey     = "via_api_key"
)
