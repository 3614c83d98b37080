package response

// Client-facing messages not owned by a service.
const (
	MsgRouteNotFound   = "Route not found"
	MsgTooManyRequests = "Too many requests, please try again later."
	MsgServerBusy      = "Server busy"
	MsgBodyTooLarge    = "Request body too large"
	MsgBadBody         = "Invalid request body"
	MsgTimeout         = "Request timed out"
)
