package domain

// Event is what the Room engine publishes after every successfully
// completed state-changing request — for UI notification and, via
// UndoRequest, as the sole record of "what just happened" the server
// keeps (it is stateless about history; the client echoes the Event back).
type Event struct {
	Request    Request
	ClientID   ClientID
	Additional any
}

// Per-request-type Additional payloads. Only the types undo() actually
// needs to invert carry a payload; others publish with Additional == nil.

type SkipEventPayload struct {
	Video        *Video
	PrevPosition float64
}

type SeekEventPayload struct {
	PrevPosition float64
}

type AddEventPayload struct {
	Video  *Video
	Videos []Video
}

type RemoveEventPayload struct {
	Video    Video
	QueueIdx int
}
