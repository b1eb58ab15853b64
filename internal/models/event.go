package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Event types pushed to clients. Each mirrors one ingress category and carries
// the opaque payload given to that ingress call.
const (
	EventNewMessage   = "newMessage"
	EventNotification = "notification"
	EventNewGrade     = "newGrade"
	EventNewAbsence   = "newAbsence"
	EventNewEvent     = "newEvent"
)

// Event is a single published notification. It exists only during the
// synchronous dispatch from ingress to subscribers; nothing stores it.
type Event struct {
	Channel ChannelID       `json:"-"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ID is a target identifier in a JSON body. The backend sends ids both as
// strings and as bare numbers depending on the call site, so both decode.
type ID string

func (i *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*i = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*i = ID(n.String())
	return nil
}
