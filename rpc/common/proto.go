package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   string `json:"key,omitempty"`   // Used for: Get, Put, Delete
	Value []byte `json:"value,omitempty"` // Used for: Put (request), Get (response)

	// Response only fields
	Ok      bool   `json:"ok,omitempty"`      // Get: a live value was found
	Updated int64  `json:"updated,omitempty"` // Get: unix millis of the latest write, 0 = never written
	Err     string `json:"err,omitempty"`     // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Info: JSON encoded store info
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewReplicaGetRequest creates a new replica Get request
func NewReplicaGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTReplicaGet,
		Key:     key,
	}
}

// NewReplicaGetResponse creates a new replica Get response.
// updated is the timestamp marker (0 if the key was never written).
func NewReplicaGetResponse(value []byte, ok bool, updated int64, err error) *Message {
	msg := &Message{
		MsgType: MsgTReplicaGet,
		Ok:      ok,
		Value:   value,
		Updated: updated,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewReplicaPutRequest creates a new replica Put request
func NewReplicaPutRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTReplicaPut,
		Key:     key,
		Value:   value,
	}
}

// NewReplicaPutResponse creates a new replica Put response
func NewReplicaPutResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTReplicaPut,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewReplicaDeleteRequest creates a new replica Delete request
func NewReplicaDeleteRequest(key string) *Message {
	return &Message{
		MsgType: MsgTReplicaDelete,
		Key:     key,
	}
}

// NewReplicaDeleteResponse creates a new replica Delete response
func NewReplicaDeleteResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTReplicaDelete,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewPingRequest creates a new Ping request
func NewPingRequest() *Message {
	return &Message{
		MsgType: MsgTPing,
	}
}

// NewSuccessResponse creates a new Success response
func NewSuccessResponse() *Message {
	return &Message{
		MsgType: MsgTSuccess,
		Ok:      true,
	}
}

// NewInfoRequest creates a request for the store info of a node
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTInfo,
	}
}

// NewInfoResponse creates an Info response. meta is the JSON encoded db.DatabaseInfo.
func NewInfoResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTInfo,
		Meta:    meta,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:       "success",
	MsgTError:         "error",
	MsgTReplicaGet:    "replicaGet",
	MsgTReplicaPut:    "replicaPut",
	MsgTReplicaDelete: "replicaDelete",
	MsgTPing:          "ping",
	MsgTInfo:          "info",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Replica operations (single node, no quorum)

	MsgTReplicaGet    // Read the local record of a key
	MsgTReplicaPut    // Upsert a key on the local node
	MsgTReplicaDelete // Write a tombstone on the local node

	// Control operations

	MsgTPing // Liveness check between peers
	MsgTInfo // Store info of a node
)
