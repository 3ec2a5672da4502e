package serializer

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/qKV/rpc/common"
)

// IRPCSerializer is the interface for all Message Serializers.
// Client and server of a cluster must use the same serializer.
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
}

// Names lists the serializers accepted by ByName
var Names = []string{"binary", "json", "gob"}

// ByName returns the serializer for one of Names (case-insensitive)
func ByName(name string) (IRPCSerializer, error) {
	switch strings.ToLower(name) {
	case "binary":
		return NewBinarySerializer(), nil
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q (must be one of %s)", name, strings.Join(Names, ", "))
	}
}
