package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/qKV/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType (1 byte) | flags (1 byte) | present fields in flag order.
// Byte fields are prefixed with a uint32 length, Updated is a big endian int64.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey     byte = 1 << 0
	hasValue   byte = 1 << 1
	hasOk      byte = 1 << 2
	hasUpdated byte = 1 << 3
	hasErr     byte = 1 << 4
	hasMeta    byte = 1 << 5
)

const headerSize = 2

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	out := make([]byte, headerSize, b.sizeBytes(msg))
	out[0] = byte(msg.MsgType)

	var flags byte
	if msg.Key != "" {
		flags |= hasKey
		out = appendBytes(out, []byte(msg.Key))
	}
	// nil and empty values are different on the wire
	if msg.Value != nil {
		flags |= hasValue
		out = appendBytes(out, msg.Value)
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.Updated != 0 {
		flags |= hasUpdated
		out = binary.BigEndian.AppendUint64(out, uint64(msg.Updated))
	}
	if msg.Err != "" {
		flags |= hasErr
		out = appendBytes(out, []byte(msg.Err))
	}
	if msg.Meta != nil {
		flags |= hasMeta
		out = appendBytes(out, msg.Meta)
	}

	out[1] = flags
	return out, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := data[1]
	r := reader{data: data, pos: headerSize}

	msg.Key = ""
	if flags&hasKey != 0 {
		key, err := r.bytes("key")
		if err != nil {
			return err
		}
		msg.Key = string(key)
	}

	msg.Value = nil
	if flags&hasValue != 0 {
		value, err := r.bytes("value")
		if err != nil {
			return err
		}
		msg.Value = value
	}

	msg.Ok = flags&hasOk != 0

	msg.Updated = 0
	if flags&hasUpdated != 0 {
		updated, err := r.uint64("updated")
		if err != nil {
			return err
		}
		msg.Updated = int64(updated)
	}

	msg.Err = ""
	if flags&hasErr != 0 {
		errMsg, err := r.bytes("err")
		if err != nil {
			return err
		}
		msg.Err = string(errMsg)
	}

	msg.Meta = nil
	if flags&hasMeta != 0 {
		meta, err := r.bytes("meta")
		if err != nil {
			return err
		}
		msg.Meta = meta
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Updated != 0 {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

// appendBytes appends a length prefixed byte field
func appendBytes(out, field []byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(field)))
	return append(out, field...)
}

// reader walks over the fields of a serialized message
type reader struct {
	data []byte
	pos  int
}

// bytes reads a length prefixed field. The result is a copy (never nil).
func (r *reader) bytes(field string) ([]byte, error) {
	if r.pos+4 > len(r.data) {
		return nil, fmt.Errorf("data too short for %s length", field)
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4

	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("data too short for %s data", field)
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *reader) uint64(field string) (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s", field)
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}
