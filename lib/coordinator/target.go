package coordinator

import (
	"context"

	"github.com/ValentinKolb/qKV/lib/replica"
)

// --------------------------------------------------------------------------
// Node targets
// --------------------------------------------------------------------------

// Target is a node the coordinator can dispatch replica operations to.
// A transport or decoding failure is reported as error, every answer the
// node gave (including StatusInternalError) as a Response.
type Target interface {
	Get(ctx context.Context, key string) (replica.Response, error)
	Put(ctx context.Context, key string, value []byte) (replica.Response, error)
	Delete(ctx context.Context, key string) (replica.Response, error)
}

// localTarget dispatches to the replica endpoint of this process
type localTarget struct {
	endpoint *replica.Endpoint
}

// NewLocalTarget creates the target for the local node
func NewLocalTarget(endpoint *replica.Endpoint) Target {
	return &localTarget{endpoint: endpoint}
}

func (t *localTarget) Get(_ context.Context, key string) (replica.Response, error) {
	return t.endpoint.Get(key), nil
}

func (t *localTarget) Put(_ context.Context, key string, value []byte) (replica.Response, error) {
	return t.endpoint.Put(key, value), nil
}

func (t *localTarget) Delete(_ context.Context, key string) (replica.Response, error) {
	return t.endpoint.Delete(key), nil
}
