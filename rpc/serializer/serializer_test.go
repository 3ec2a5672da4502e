package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/qKV/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of messages as they appear between peers
func testMessages() []common.Message {
	return []common.Message{
		*common.NewSuccessResponse(),
		*common.NewPingRequest(),
		*common.NewReplicaGetRequest("test-key"),
		*common.NewReplicaPutRequest("test-key", []byte("test-value")),
		*common.NewReplicaDeleteRequest("test-key"),
		*common.NewReplicaPutResponse(nil),
		*common.NewReplicaDeleteResponse(nil),

		// live value
		*common.NewReplicaGetResponse([]byte("test-value"), true, 1718000000123, nil),

		// tombstone: no value, timestamp marker present
		*common.NewReplicaGetResponse(nil, false, 1718000000456, nil),

		// never written: neither value nor marker
		*common.NewReplicaGetResponse(nil, false, 0, nil),

		*common.NewErrorResponse("test error message"),
		*common.NewInfoResponse([]byte(`{"db_type":"maple"}`), nil),
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestDeserializeResetsMessage tests that a reused message does not keep fields of the previous one
func TestDeserializeResetsMessage(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			full, err := serializer.Serialize(*common.NewReplicaGetResponse([]byte("v"), true, 42, nil))
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			empty, err := serializer.Serialize(*common.NewReplicaGetResponse(nil, false, 0, nil))
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var msg common.Message
			if err := serializer.Deserialize(full, &msg); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if err := serializer.Deserialize(empty, &msg); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if msg.Ok || msg.Updated != 0 || msg.Value != nil {
				t.Errorf("Fields of the previous message survived: %+v", msg)
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// MsgTUnknown is skipped since its json name is not decodable
			for msgType := common.MsgTSuccess; msgType <= common.MsgTInfo; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType, err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType, result.MsgType)
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests edge cases only the binary format preserves
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty value slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTReplicaPut,
				Key:     "test",
				Value:   []byte{},
			},
		},
		{
			name: "Empty meta slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTInfo,
				Meta:    []byte{},
			},
		},
		{
			name: "Ok without value",
			msg: common.Message{
				MsgType: common.MsgTReplicaGet,
				Ok:      true,
			},
		},
		{
			name: "Negative updated marker",
			msg: common.Message{
				MsgType: common.MsgTReplicaGet,
				Updated: -1,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Mismatch after round trip:\nOriginal: %#v\nResult: %#v", tc.msg, result)
			}
		})
	}
}

// TestBinarySerializedSize checks that absent fields take no space
func TestBinarySerializedSize(t *testing.T) {
	serializer := NewBinarySerializer()

	data, err := serializer.Serialize(*common.NewReplicaGetRequest("k"))
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	if want := 2 + 4 + 1; len(data) != want {
		t.Errorf("Expected %d bytes, got %d", want, len(data))
	}

	data, err = serializer.Serialize(*common.NewReplicaGetResponse(nil, false, 7, nil))
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	if want := 2 + 8; len(data) != want {
		t.Errorf("Expected %d bytes, got %d", want, len(data))
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1}, // Only message type, no flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for key",
			data:        []byte{1, hasKey, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims key length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, hasValue, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Truncated updated marker",
			data:        []byte{1, hasUpdated, 0, 0, 0, 1},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range append(Names, "BINARY") {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q) failed: %v", name, err)
		}
	}
	if _, err := ByName("xml"); err == nil {
		t.Errorf("Expected an error for an unknown serializer")
	}
}
