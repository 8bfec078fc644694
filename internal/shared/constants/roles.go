package constants

// Roles carried in session tokens
const (
	ROLE_OCCUPANT = "occupant"
	ROLE_ADMIN    = "admin"
)

// Gin context keys set by the auth middleware
const (
	CTX_USER_ID    = "user_id"
	CTX_USER_EMAIL = "user_email"
	CTX_USER_ROLE  = "user_role"
	CTX_USER_NAME  = "user_name"
)
