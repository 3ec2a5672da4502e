package serializer

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/ValentinKolb/qKV/rpc/common"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format.
// Every message is encoded with a fresh encoder, so the type description is
// part of each payload.
func NewGOBSerializer() IRPCSerializer {
	return &gobSerializerImpl{
		buffers: sync.Pool{New: func() any { return new(bytes.Buffer) }},
	}
}

// gobSerializerImpl implements the IRPCSerializer interface using gob encoding
type gobSerializerImpl struct {
	buffers sync.Pool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (g *gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	buf := g.buffers.Get().(*bytes.Buffer)
	buf.Reset()
	defer g.buffers.Put(buf)

	if err := gob.NewEncoder(buf).Encode(msg); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func (g *gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// gob leaves fields that are zero on the wire untouched
	*msg = common.Message{}
	return gob.NewDecoder(bytes.NewReader(b)).Decode(msg)
}
