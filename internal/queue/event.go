// Package queue is the live notification transport: formatted user
// messages are published to a durable broker queue and picked up on
// the other side by the chat delivery process.
package queue

// UserNotificationEvent is the payload published for every outbound
// user message.  It carries the resolved delivery handle and the final
// text; the consumer never needs to query the primary database.
type UserNotificationEvent struct {
	Handle string `json:"handle"`
	Text   string `json:"text"`
	SentAt string `json:"sent_at"`
}
