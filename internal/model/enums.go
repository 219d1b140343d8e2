package model

type SessionStatus string

const (
	// SessionStatusPending is set the moment a pairing attempt starts and
	// holds until the first successful connection open.
	SessionStatusPending SessionStatus = "pending"
	// SessionStatusConnected is set exactly once, at the first open. Transport
	// churn after that does not move the record out of this status.
	SessionStatusConnected SessionStatus = "connected"
	// SessionStatusClosed marks a session torn down by an explicit logout.
	SessionStatusClosed SessionStatus = "closed"
)
