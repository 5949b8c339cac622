package models

// ConnectionState is the client-side view of relay health.
type ConnectionState string

const (
	ConnectionStateConnecting ConnectionState = "Connecting"
	ConnectionStateOnline     ConnectionState = "Online"
	ConnectionStateOffline    ConnectionState = "Offline"
)

// Event names exchanged over the live connection.
const (
	EventPing     = "ping"
	EventSavePath = "save-path"
)
