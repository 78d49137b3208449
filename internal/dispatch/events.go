package dispatch

// Kind classifies an inbound chat event.
type Kind int

const (
	KindUnsupported Kind = iota
	KindText
	KindVoice
	KindAudio
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVoice:
		return "voice"
	case KindAudio:
		return "audio"
	case KindCallback:
		return "callback"
	default:
		return "unsupported"
	}
}

// Event is the tagged inbound-message variant the dispatcher routes on.
// Only the fields for the event's Kind are set.
type Event struct {
	Kind      Kind
	ChatID    int64
	MessageID int64

	// KindText
	Text string

	// KindVoice / KindAudio
	FileID   string
	Duration int // seconds, as reported by the chat platform
	Title    string

	// KindCallback
	CallbackID        string
	CallbackData      string
	CallbackMessageID int64
}
