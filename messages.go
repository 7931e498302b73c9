package main

// Action tags carried in the "action" field of every outbound message.
const (
	ActionResize = "resize"
	ActionRead   = "read"
)

// ResizeMessage announces the terminal dimensions to the server.
// Sent once, right after the connection opens.
type ResizeMessage struct {
	Action string `json:"action"`
	Cols   int    `json:"cols"`
	Rows   int    `json:"rows"`
}

// ReadMessage carries input for the remote terminal. An empty Data is the
// keepalive, so the field is never omitted.
type ReadMessage struct {
	Action string `json:"action"`
	Data   string `json:"data"`
}

func newResizeMessage(cols, rows int) ResizeMessage {
	return ResizeMessage{Action: ActionResize, Cols: cols, Rows: rows}
}

func newReadMessage(data string) ReadMessage {
	return ReadMessage{Action: ActionRead, Data: data}
}
