package kv

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/qKV/api"
	"github.com/ValentinKolb/qKV/cmd/util"
	"github.com/ValentinKolb/qKV/rpc/client"
	"github.com/spf13/cobra"
)

var (
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext()
			defer cancel()
			if err := apiClient.Put(ctx, args[0], []byte(args[1]), replicas()); err != nil {
				return err
			}
			fmt.Println("put successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext()
			defer cancel()
			key := args[0]
			value, err := apiClient.Get(ctx, key, replicas())
			if errors.Is(err, api.ErrNotFound) {
				fmt.Printf("key=%s, found=false\n", key)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=true, value=%s\n", key, value)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext()
			defer cancel()
			if err := apiClient.Delete(ctx, args[0], replicas()); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Checks that the node answers on its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext()
			defer cancel()
			if err := apiClient.Status(ctx); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Pings the peer transport of a node and prints its store info",
		Long:  "Pings the peer transport of a node and prints its store info. Transport and serializer must match the ones the node was started with.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := util.GetSerializer()
			if err != nil {
				return err
			}
			t, err := util.GetTransport()
			if err != nil {
				return err
			}

			config := util.GetClientConfig()
			target, err := client.NewRPCTarget("ping", *config, t.NewClient(), s)
			if err != nil {
				return err
			}
			defer target.Close()

			ctx, cancel := requestContext()
			defer cancel()
			if err := target.Ping(ctx); err != nil {
				return err
			}
			fmt.Println("pong")

			info, err := target.Info(ctx)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

func init() {
	util.SetupRPCClientFlags(pingCmd)
}
