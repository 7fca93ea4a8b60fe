// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the status feed.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Secret or token was missing or invalid.
	InvalidRoomIDError    = 3003 // Room in the WS URL has no session.
)
