package server

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/qKV/lib/replica"
	"github.com/ValentinKolb/qKV/rpc/common"
)

// NewReplicaServerAdapter creates the adapter that serves replica messages of peers
func NewReplicaServerAdapter() IRPCServerAdapter {
	return &replicaServerAdapterImpl{}
}

type replicaServerAdapterImpl struct{}

func (adapter *replicaServerAdapterImpl) Handle(req *common.Message, endpoint *replica.Endpoint) *common.Message {
	if endpoint == nil {
		return common.NewErrorResponse("handler: replica endpoint is nil")
	}

	switch req.MsgType {
	case common.MsgTReplicaGet:
		return common.FromReplicaResponse(req.MsgType, endpoint.Get(req.Key))
	case common.MsgTReplicaPut:
		return common.FromReplicaResponse(req.MsgType, endpoint.Put(req.Key, req.Value))
	case common.MsgTReplicaDelete:
		return common.FromReplicaResponse(req.MsgType, endpoint.Delete(req.Key))
	case common.MsgTPing:
		return common.NewSuccessResponse()
	case common.MsgTInfo:
		info, err := endpoint.Info()
		if err != nil {
			return common.NewInfoResponse(nil, err)
		}
		meta, err := json.Marshal(info)
		return common.NewInfoResponse(meta, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("replica adapter: unsupported message type: %s", req.MsgType),
		)
	}
}
