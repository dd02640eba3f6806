package shared

const (
	// Fiber locals keys set by the auth middleware.
	SlotKey     = "client_slot"
	SessionKey  = "session"
	IdentityKey = "identity_id"

	// Header carrying the client context (device) identifier.
	DeviceIDHeader = "X-Device-ID"
)
