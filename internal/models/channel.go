package models

// ChannelKind distinguishes the three broadcast scopes.
type ChannelKind string

const (
	ChannelUser         ChannelKind = "user"
	ChannelConversation ChannelKind = "conversation"
	ChannelClass        ChannelKind = "class"
)

// ChannelID identifies one logical broadcast group. It is a comparable value
// type usable directly as a map key, so a conversation id can never be
// mistaken for a user id by string formatting.
type ChannelID struct {
	Kind ChannelKind
	ID   string
}

func UserChannel(id string) ChannelID {
	return ChannelID{Kind: ChannelUser, ID: id}
}

func ConversationChannel(id string) ChannelID {
	return ChannelID{Kind: ChannelConversation, ID: id}
}

func ClassChannel(id string) ChannelID {
	return ChannelID{Kind: ChannelClass, ID: id}
}

// String renders the channel as "kind:id" for logging.
func (c ChannelID) String() string {
	return string(c.Kind) + ":" + c.ID
}
