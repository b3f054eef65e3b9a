package core

// Role classes observing the conversation state.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// eventBuffer bounds the per-connection event queue. A consumer that falls
// further behind has its events dropped rather than blocking the hub.
const eventBuffer = 64

// Client is one authenticated connection as seen by the core layer.
// A user may own many clients at once (multi-tab, multi-device).
type Client struct {
	ID     string
	UserID string
	Name   string
	Role   Role
	Events chan *Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id, userID, name string, role Role) *Client {
	if name == "" {
		name = userID
	}
	return &Client{
		ID:     id,
		UserID: userID,
		Name:   name,
		Role:   role,
		Events: make(chan *Event, eventBuffer),
	}
}
