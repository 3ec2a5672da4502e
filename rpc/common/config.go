package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds buffer settings for socket based transports (tcp, unix)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds settings only the tcp transport uses
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// ServerTransportConfig configures the peer facing transport of a node
type ServerTransportConfig struct {
	// Endpoint is the address the transport listens on (host:port or socket path)
	Endpoint string
	// WorkersPerConn limits the concurrent requests per connection (tcp, unix)
	WorkersPerConn int
	SocketConf
	TCPConf
}

// ClientTransportConfig configures a client transport
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	// Lazy keeps endpoints that are not reachable on Connect and dials them on Send.
	// Peers of a cluster use this because nodes start in any order.
	Lazy bool
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ClusterMember is one entry of the --cluster-members list
type ClusterMember struct {
	ID      string
	Address string
}

// ServerConfig holds all configuration parameters of a qKV node.
type ServerConfig struct {
	// ReplicaID is the ID of this node, it must be one of ClusterMembers
	ReplicaID string
	// ClusterMembers in topology order. Address is the peer transport endpoint.
	ClusterMembers []ClusterMember

	// DataDir holds the snapshot and write log of the local store (empty = memory only)
	DataDir string
	// SyncWrites fsyncs the write log after every write
	SyncWrites bool

	// Timeout bounds every call to a peer
	Timeout time.Duration

	// Endpoint is the address of the client facing HTTP API
	Endpoint string

	// Transport configures the peer facing transport
	Transport ServerTransportConfig

	// Logging configuration
	LogLevel string
}

// MembersString renders ClusterMembers in the command line format
func (c *ServerConfig) MembersString() string {
	parts := make([]string, len(c.ClusterMembers))
	for i, m := range c.ClusterMembers {
		parts[i] = m.ID + "=" + m.Address
	}
	return strings.Join(parts, ",")
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Node")
	addField("Replica ID", c.ReplicaID)
	addField("API Endpoint", c.Endpoint)
	addField("RPC Endpoint", c.Transport.Endpoint)
	addField("Peer Timeout", c.Timeout.String())

	addSection("Storage")
	if c.DataDir == "" {
		addField("Data Directory", "(in memory)")
	} else {
		addField("Data Directory", c.DataDir)
		addField("Sync Writes", strconv.FormatBool(c.SyncWrites))
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Topology")
	for i, m := range c.ClusterMembers {
		marker := ""
		if m.ID == c.ReplicaID {
			marker = " (self)"
		}
		addField(strconv.Itoa(i+1)+". "+m.ID, m.Address+marker)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	// Timeout is used for dialing and for requests without a context deadline
	Timeout   time.Duration
	Transport ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", c.Timeout.String())
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))

	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
