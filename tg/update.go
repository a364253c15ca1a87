package tg

// Update represents an incoming update from Telegram. Update identifiers
// increase monotonically; the dispatcher uses them to advance its polling
// offset so no update is delivered twice.
type Update struct {
	UpdateID          int64    `json:"update_id"`
	Message           *Message `json:"message,omitempty"`
	EditedMessage     *Message `json:"edited_message,omitempty"`
	ChannelPost       *Message `json:"channel_post,omitempty"`
	EditedChannelPost *Message `json:"edited_channel_post,omitempty"`
}

// Msg returns whichever message payload the update carries, or nil.
func (u Update) Msg() *Message {
	switch {
	case u.Message != nil:
		return u.Message
	case u.EditedMessage != nil:
		return u.EditedMessage
	case u.ChannelPost != nil:
		return u.ChannelPost
	case u.EditedChannelPost != nil:
		return u.EditedChannelPost
	}
	return nil
}

// Sender returns the user that produced the update's message, or nil when
// the update carries no message or the message has no sender (channel
// posts, for example).
func (u Update) Sender() *User {
	if m := u.Msg(); m != nil {
		return m.From
	}
	return nil
}
