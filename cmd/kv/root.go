package kv

import (
	"context"

	"github.com/ValentinKolb/qKV/api"
	"github.com/ValentinKolb/qKV/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	apiClient *api.Client

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform key-value operations against a qKV cluster",
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupClientFlags(KeyValueCommands)

	KeyValueCommands.AddCommand(putCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(statusCmd)
	KeyValueCommands.AddCommand(pingCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the API client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	apiClient, err = api.NewClient(viper.GetString("endpoint"), util.GetTimeout())
	return err
}

// requestContext bounds a single command by the client timeout
func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), util.GetTimeout())
}

func replicas() string {
	return viper.GetString("replicas")
}
