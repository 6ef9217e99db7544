package nostr

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Message is the decoded form of one inbound client frame (spec §4.2).
type Message interface {
	isMessage()
}

// PublishMessage is an inbound ["EVENT", <event>] frame.
type PublishMessage struct {
	Event Event
}

// SubscribeMessage is an inbound ["REQ", <sub id>, <filter>...] frame.
type SubscribeMessage struct {
	SubscriptionID string
	Filters        Filters
}

// CountMessage is an inbound ["COUNT", <sub id>, <filter>...] frame.
type CountMessage struct {
	SubscriptionID string
	Filters        Filters
}

// UnsubscribeMessage is an inbound ["CLOSE", <sub id>] frame.
type UnsubscribeMessage struct {
	SubscriptionID string
}

func (PublishMessage) isMessage()     {}
func (SubscribeMessage) isMessage()   {}
func (CountMessage) isMessage()       {}
func (UnsubscribeMessage) isMessage() {}

// Decode parses one raw websocket text frame into a Message. It mirrors the
// teacher's manual JSON-array dispatch (lib/transports/websocket/responder.go)
// rather than unmarshaling into a typed envelope struct, since the array's
// second element's shape depends on the first element's value.
func Decode(raw []byte) (Message, error) {
	var arr []jsoniter.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}
	if len(arr) < 1 {
		return nil, fmt.Errorf("malformed message: empty array")
	}

	var label string
	if err := json.Unmarshal(arr[0], &label); err != nil {
		return nil, fmt.Errorf("malformed message: label: %w", err)
	}

	switch label {
	case "EVENT":
		if len(arr) != 2 {
			return nil, fmt.Errorf("malformed EVENT: want 2 elements, got %d", len(arr))
		}
		var e Event
		if err := json.Unmarshal(arr[1], &e); err != nil {
			return nil, fmt.Errorf("malformed EVENT: %w", err)
		}
		return PublishMessage{Event: e}, nil

	case "REQ":
		if len(arr) < 2 {
			return nil, fmt.Errorf("malformed REQ: missing subscription id")
		}
		var subID string
		if err := json.Unmarshal(arr[1], &subID); err != nil {
			return nil, fmt.Errorf("malformed REQ: subscription id: %w", err)
		}
		filters, err := decodeFilters(arr[2:])
		if err != nil {
			return nil, fmt.Errorf("malformed REQ: %w", err)
		}
		return SubscribeMessage{SubscriptionID: subID, Filters: filters}, nil

	case "COUNT":
		if len(arr) < 2 {
			return nil, fmt.Errorf("malformed COUNT: missing subscription id")
		}
		var subID string
		if err := json.Unmarshal(arr[1], &subID); err != nil {
			return nil, fmt.Errorf("malformed COUNT: subscription id: %w", err)
		}
		filters, err := decodeFilters(arr[2:])
		if err != nil {
			return nil, fmt.Errorf("malformed COUNT: %w", err)
		}
		return CountMessage{SubscriptionID: subID, Filters: filters}, nil

	case "CLOSE":
		if len(arr) != 2 {
			return nil, fmt.Errorf("malformed CLOSE: want 2 elements, got %d", len(arr))
		}
		var subID string
		if err := json.Unmarshal(arr[1], &subID); err != nil {
			return nil, fmt.Errorf("malformed CLOSE: subscription id: %w", err)
		}
		return UnsubscribeMessage{SubscriptionID: subID}, nil

	default:
		return nil, fmt.Errorf("unknown message label %q", label)
	}
}

func decodeFilters(raw []jsoniter.RawMessage) (Filters, error) {
	filters := make(Filters, 0, len(raw))
	for _, r := range raw {
		var f Filter
		if err := json.Unmarshal(r, &f); err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// EncodeEvent renders an outbound ["EVENT", <sub id>, <event>] frame.
func EncodeEvent(subID string, e *Event) ([]byte, error) {
	return json.Marshal([]interface{}{"EVENT", subID, e})
}

// EncodeEOSE renders an outbound ["EOSE", <sub id>] frame.
func EncodeEOSE(subID string) ([]byte, error) {
	return json.Marshal([]interface{}{"EOSE", subID})
}

// EncodeOK renders an outbound ["OK", <event id>, <accepted>, <message>] frame.
func EncodeOK(eventID string, accepted bool, message string) ([]byte, error) {
	return json.Marshal([]interface{}{"OK", eventID, accepted, message})
}

// EncodeCount renders an outbound ["COUNT", <sub id>, {"count": n}] frame.
func EncodeCount(subID string, count int64) ([]byte, error) {
	return json.Marshal([]interface{}{"COUNT", subID, map[string]int64{"count": count}})
}

// EncodeNotice renders an outbound ["NOTICE", <message>] frame.
func EncodeNotice(message string) ([]byte, error) {
	return json.Marshal([]interface{}{"NOTICE", message})
}

// EncodeClosed renders an outbound ["CLOSED", <sub id>, <message>] frame,
// used when a subscription is terminated server-side.
func EncodeClosed(subID string, message string) ([]byte, error) {
	return json.Marshal([]interface{}{"CLOSED", subID, message})
}
