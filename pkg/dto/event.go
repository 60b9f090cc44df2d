package dto

// Client-to-server WebSocket message kinds.
const (
	WSRequestCounts = "request_counts"
)

// WSRequest is a message sent by a viewer over the WebSocket.
type WSRequest struct {
	Type string `json:"type"`
}
