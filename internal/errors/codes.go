package errors

// Error codes sent in the "error" field of failed responses.
// Format: CATEGORY_SPECIFIC_DETAIL. Clients map these to their own messages.

const (
	// ==================== Auth (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"        // login required
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS" // wrong email or password
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthTokenRevoked       = "AUTH_TOKEN_REVOKED"
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"
	AuthUserNotFound       = "AUTH_USER_NOT_FOUND"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"
	ValidationInvalidRange = "VALIDATION_INVALID_RANGE"
	ValidationRequired     = "VALIDATION_REQUIRED"

	// ==================== Resource (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"

	// ==================== Cart (CART_) ====================
	CartNotFound        = "CART_NOT_FOUND"
	CartItemNotFound    = "CART_ITEM_NOT_FOUND"
	CartInvalidQuantity = "CART_INVALID_QUANTITY"
	CartStockExceeded   = "CART_STOCK_EXCEEDED"
	CartConflict        = "CART_CONFLICT" // concurrent modification, retry
	CartSyncFailed      = "CART_SYNC_FAILED"

	// ==================== Medication (MEDICATION_) ====================
	MedicationNotFound    = "MEDICATION_NOT_FOUND"
	MedicationUnavailable = "MEDICATION_UNAVAILABLE" // inactive product
	CategoryNotFound      = "CATEGORY_NOT_FOUND"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
)
