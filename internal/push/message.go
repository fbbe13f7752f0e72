package push

// Default sound flag attached to every broadcast message.
const defaultSound = "default"

// Ticket statuses reported by the gateway.
const (
	TicketStatusOK    = "ok"
	TicketStatusError = "error"
)

// Message is one push submission addressed to a single device token.
type Message struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
	Sound string         `json:"sound"`
}

// Ticket is the gateway's per-message delivery outcome.
type Ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}
