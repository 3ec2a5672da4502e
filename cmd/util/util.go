package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/serializer"
	"github.com/ValentinKolb/qKV/rpc/transport"
	"github.com/ValentinKolb/qKV/rpc/transport/grpc"
	"github.com/ValentinKolb/qKV/rpc/transport/http"
	"github.com/ValentinKolb/qKV/rpc/transport/tcp"
	"github.com/ValentinKolb/qKV/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. QKV_TIMEOUT)
	EnvPrefix = "qkv"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads the env files and lets viper read QKV_* variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Client flags
// --------------------------------------------------------------------------

// SetupClientFlags adds the flags shared by all client commands
func SetupClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "endpoint"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the HTTP API of a qKV node"))

	key = "replicas"
	cmd.PersistentFlags().String(key, "", WrapString("Quorum of the request as ack/from (e.g. 2/3). Empty uses the default quorum of the node"))
}

// SetupRPCClientFlags adds the flags to talk to the peer transport of a node directly
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "transport-endpoints"
	cmd.PersistentFlags().String(key, "localhost:63001", WrapString("The peer transport address of the qKV node. Multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry the request"))

	SetupSocketFlags(cmd)
}

// SetupSocketFlags adds the socket tuning flags of the tcp and unix transports
func SetupSocketFlags(cmd *cobra.Command) {
	key := "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http and grpc)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http and grpc)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time for the transport (in seconds, only for tcp)"))
}

// GetTimeout reads the timeout flag
func GetTimeout() time.Duration {
	return time.Duration(viper.GetInt("timeout")) * time.Second
}

// GetSocketConf reads the socket tuning flags
func GetSocketConf() (common.SocketConf, common.TCPConf) {
	return common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		}, common.TCPConf{
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		}
}

// GetClientConfig reads the peer transport client configuration from viper
func GetClientConfig() *common.ClientConfig {
	socketConf, tcpConf := GetSocketConf()
	return &common.ClientConfig{
		Timeout: GetTimeout(),
		Transport: common.ClientTransportConfig{
			RetryCount:             viper.GetInt("transport-retries"),
			Endpoints:              strings.Split(viper.GetString("transport-endpoints"), ","),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			SocketConf:             socketConf,
			TCPConf:                tcpConf,
		},
	}
}

// --------------------------------------------------------------------------
// Serializer and transport
// --------------------------------------------------------------------------

// GetSerializer creates the serializer selected by the serializer flag
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.ByName(viper.GetString("serializer"))
}

// Transport bundles the server and client side of one transport
type Transport struct {
	NewServer func() transport.IRPCServerTransport
	NewClient func() transport.IRPCClientTransport
}

// Transports lists all transports by name
var Transports = map[string]Transport{
	"tcp":  {NewServer: tcp.NewTCPServerTransport, NewClient: tcp.NewTCPClientTransport},
	"unix": {NewServer: unix.NewUnixDefaultServerTransport, NewClient: unix.NewUnixClientTransport},
	"http": {NewServer: http.NewHttpServerTransport, NewClient: http.NewHttpClientTransport},
	"grpc": {NewServer: grpc.NewGRPCServerTransport, NewClient: grpc.NewGRPCClientTransport},
}

// GetTransport returns the transport selected by the transport flag
func GetTransport() (Transport, error) {
	name := viper.GetString("transport")
	t, ok := Transports[name]
	if !ok {
		return Transport{}, fmt.Errorf("invalid transport %s", name)
	}
	return t, nil
}
