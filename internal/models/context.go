package models

type keyContext int

const (
	//ContextKeySubject is used as key to add the acknowledgment.Subject of the caller in the request context
	ContextKeySubject keyContext = iota
)

// Headers set by the authenticating gateway in front of the service
const (
	HeaderUserID    = "X-User-Id"
	HeaderSessionID = "X-Session-Id"
)
