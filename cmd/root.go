package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/qKV/cmd/kv"
	"github.com/ValentinKolb/qKV/cmd/serve"
	"github.com/ValentinKolb/qKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "qkv",
		Short: "replicated key-value store with tunable quorums",
		Long: fmt.Sprintf(`qKV (v%s)

A replicated key-value store written in Go. Every request names its
quorum (ack/from) and is fanned out to the first from nodes of the
cluster. Conflicting versions are not reconciled, a tombstone on any
queried node wins.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of qKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qKV v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer of the peer transport (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("peer transport (tcp, unix, http, grpc)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
