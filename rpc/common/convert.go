package common

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/qKV/lib/replica"
)

// ErrUnexpectedResponse is returned if a peer answers with a message that does
// not match the request
var ErrUnexpectedResponse = errors.New("unexpected response")

// FromReplicaResponse encodes the answer of the local replica endpoint for a
// request of type msgType.
func FromReplicaResponse(msgType MessageType, resp replica.Response) *Message {
	if resp.Status == replica.StatusBadRequest {
		return NewErrorResponse("bad request: key is required")
	}

	var err error
	if resp.Status == replica.StatusInternalError {
		err = errors.New("internal error")
	}

	switch msgType {
	case MsgTReplicaGet:
		return NewReplicaGetResponse(resp.Value, resp.Status == replica.StatusFound, resp.Timestamp, err)
	case MsgTReplicaPut:
		return NewReplicaPutResponse(err)
	case MsgTReplicaDelete:
		return NewReplicaDeleteResponse(err)
	default:
		return NewErrorResponse(fmt.Sprintf("unsupported message type %s", msgType))
	}
}

// ToReplicaResponse decodes the answer of a peer to a request of type msgType.
// An error is returned for messages that are not a valid answer, a message
// carrying Err becomes StatusInternalError.
func ToReplicaResponse(msgType MessageType, msg *Message) (replica.Response, error) {
	if msg == nil {
		return replica.Response{}, fmt.Errorf("%w: empty message", ErrUnexpectedResponse)
	}
	if msg.MsgType == MsgTError {
		return replica.Response{}, fmt.Errorf("%w: peer error: %s", ErrUnexpectedResponse, msg.Err)
	}
	if msg.MsgType != msgType {
		return replica.Response{}, fmt.Errorf("%w: got %s for %s", ErrUnexpectedResponse, msg.MsgType, msgType)
	}
	if msg.Err != "" {
		return replica.Response{Status: replica.StatusInternalError}, nil
	}

	switch msgType {
	case MsgTReplicaGet:
		if msg.Ok {
			return replica.Response{Status: replica.StatusFound, Value: msg.Value, Timestamp: msg.Updated}, nil
		}
		return replica.Response{Status: replica.StatusNotFound, Timestamp: msg.Updated}, nil
	case MsgTReplicaPut:
		return replica.Response{Status: replica.StatusCreated}, nil
	case MsgTReplicaDelete:
		return replica.Response{Status: replica.StatusAccepted}, nil
	default:
		return replica.Response{}, fmt.Errorf("%w: %s is not a replica operation", ErrUnexpectedResponse, msgType)
	}
}
