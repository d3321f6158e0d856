package protocol

import (
	"fmt"
	"time"
)

// Message is one chat message. It is immutable once accepted by the
// server; the broadcast worker assigns its id on entry to the log.
type Message struct {
	Sender   string    `json:"sender"`
	DateTime time.Time `json:"date_time"`
	Text     string    `json:"text"`
}

// NewMessage builds a message stamped with the given instant in UTC.
func NewMessage(sender string, at time.Time, text string) Message {
	return Message{Sender: sender, DateTime: at.UTC(), Text: text}
}

func (m Message) String() string {
	return fmt.Sprintf("%s@%s: %s", m.Sender, m.DateTime.Format(time.RFC3339), m.Text)
}
