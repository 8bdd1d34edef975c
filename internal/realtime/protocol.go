package realtime

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Pusher protocol 7 event names.
const (
	ProtocolVersion = 7

	EventConnectionEstablished = "pusher:connection_established"
	EventSubscribe             = "pusher:subscribe"
	EventUnsubscribe           = "pusher:unsubscribe"
	EventPing                  = "pusher:ping"
	EventPong                  = "pusher:pong"
	EventError                 = "pusher:error"
	EventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"

	PrivatePrefix = "private-"
)

// Message is one websocket frame. Data is either a JSON object or a JSON
// string holding an encoded object.
type Message struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type ConnectionEstablished struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

type SubscribeData struct {
	Channel     string `json:"channel"`
	Auth        string `json:"auth,omitempty"`
	ChannelData string `json:"channel_data,omitempty"`
}

type ErrorData struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Payload returns the message data with one level of string encoding removed.
func (m Message) Payload() []byte {
	data := m.Data
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return []byte(s)
		}
	}
	return data
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Payload(), v)
}

// NewMessage builds a frame with v encoded as an object.
func NewMessage(event, channel string, v any) ([]byte, error) {
	var data json.RawMessage
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(Message{Event: event, Channel: channel, Data: data})
}

// NewEventMessage builds an application event frame; the payload is sent as a
// JSON string the way broadcasting servers do.
func NewEventMessage(event, channel string, payload []byte) ([]byte, error) {
	data, err := json.Marshal(string(payload))
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: event, Channel: channel, Data: data})
}

func IsPrivate(channel string) bool {
	return strings.HasPrefix(channel, PrivatePrefix)
}

// Sign returns the auth token for a private channel subscription.
func Sign(key, secret, socketID, channel string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(socketID + ":" + channel))
	return key + ":" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks auth against the expected token in constant time.
func VerifySignature(key, secret, socketID, channel, auth string) bool {
	want := Sign(key, secret, socketID, channel)
	return hmac.Equal([]byte(want), []byte(auth))
}
