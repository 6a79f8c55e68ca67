package gateway

import (
	"encoding/json"

	"github.com/enlighten-app/enlighten-chat/internal/entity"
)

// Frame is the envelope every websocket message travels in, both directions.
// Event names the operation; Data carries the event payload.
type Frame struct {
	Event   string          `json:"event"`
	ErrCode int             `json:"err_code,omitempty"`
	ErrMsg  string          `json:"err_msg,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// AnnounceData is sent by the client right after connecting to bind the
// connection to its user for delivery.
type AnnounceData struct {
	UserId string `json:"user_id"`
}

// SendData is the client payload for the send event
type SendData struct {
	ClientMsgId string         `json:"client_msg_id"`
	RecvId      string         `json:"recv_id"`
	Kind        int32          `json:"kind"`
	Content     string         `json:"content,omitempty"`
	File        entity.FileRef `json:"file,omitempty"`
}

// SendErrorData tells the sender which outgoing message failed
type SendErrorData struct {
	ClientMsgId string `json:"client_msg_id"`
	Code        int    `json:"code"`
	Msg         string `json:"msg"`
}

// PresenceData carries the full list of online user ids
type PresenceData struct {
	Online []string `json:"online"`
}

// Encode builds a frame with a marshaled payload
func Encode(event string, payload interface{}) ([]byte, error) {
	frame := Frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		frame.Data = data
	}
	return json.Marshal(&frame)
}
