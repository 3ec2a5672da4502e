package serve

import (
	"fmt"
	"strings"

	cmdUtil "github.com/ValentinKolb/qKV/cmd/util"
	"github.com/ValentinKolb/qKV/lib/coordinator"
	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a qKV node",
		Long:    `Start a qKV node with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is QKV_<flag> (e.g. QKV_REPLICA_ID=node-1)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("ReplicaID is the unique identifier of this node (e.g. 'node-1'). It must be one of the cluster members"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("ClusterMembers is a comma-separated list of all nodes and their peer transport addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'. The order is the replica order of every key and must be the same on all nodes"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the HTTP API will listen"))

	key = "rpc-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address on which the peer transport will listen (e.g. 0.0.0.0:63001, /tmp/qkv.sock). Defaults to the address of this node in the cluster members"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("DataDir is the directory of the snapshot and write log of the local store. Empty keeps the store in memory only"))

	key = "sync-writes"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Fsync the write log after every write. Without it acknowledged writes survive a crash of the process but not of the machine"))

	key = "timeout"
	ServeCmd.PersistentFlags().Duration(key, coordinator.DefaultTimeout, cmdUtil.WrapString("Timeout of a single call to a peer"))

	key = "transport-workers"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Concurrent requests per peer connection (tcp and unix, 0 uses the default)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	cmdUtil.SetupSocketFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.ReplicaID = strings.TrimSpace(viper.GetString("replica-id"))
	if serveCmdConfig.ReplicaID == "" {
		return fmt.Errorf("replica-id is required")
	}

	members, err := ParseClusterMembers(viper.GetString("cluster-members"))
	if err != nil {
		return err
	}
	serveCmdConfig.ClusterMembers = members

	self := ""
	for _, m := range members {
		if m.ID == serveCmdConfig.ReplicaID {
			self = m.Address
		}
	}
	if self == "" {
		return fmt.Errorf("no address found for replica ID %s in cluster members", serveCmdConfig.ReplicaID)
	}

	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.SyncWrites = viper.GetBool("sync-writes")
	serveCmdConfig.Timeout = viper.GetDuration("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	serveCmdConfig.Transport.Endpoint = viper.GetString("rpc-endpoint")
	if serveCmdConfig.Transport.Endpoint == "" {
		serveCmdConfig.Transport.Endpoint = self
	}
	serveCmdConfig.Transport.WorkersPerConn = viper.GetInt("transport-workers")
	serveCmdConfig.Transport.SocketConf, serveCmdConfig.Transport.TCPConf = cmdUtil.GetSocketConf()

	return nil
}

// ParseClusterMembers parses a list in the format 'id=address,id=address'.
// The order of the list is kept.
func ParseClusterMembers(raw string) ([]common.ClusterMember, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("cluster-members is required")
	}

	var members []common.ClusterMember
	seen := make(map[string]bool)
	for _, member := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(member), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
		}
		if seen[parts[0]] {
			return nil, fmt.Errorf("duplicate cluster member %s", parts[0])
		}
		seen[parts[0]] = true
		members = append(members, common.ClusterMember{ID: parts[0], Address: parts[1]})
	}
	return members, nil
}

// run starts the node
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t.NewServer(),
		t.NewClient,
		s,
	)

	return serv.Serve()
}
