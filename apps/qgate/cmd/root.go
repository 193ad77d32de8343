package cmd

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/quatton/qgate/pkg/qsdk"
	"github.com/spf13/cobra"
)

type contextKey string

const configContextKey contextKey = "qgateconfig"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "qgate",
		Short: "Job gateway for quantum and classical compute resources",
		Long: `qgate uploads programs, runs them as jobs on compute resources
(Ray clusters, Kubernetes namespaces or the local machine) and proxies job
status, logs, stop and results.

Server commands: serve, migrate, resources, openapi.
Client commands: login, me, run, jobs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := qsdk.LoadConfig(cfgFile)
			if err != nil {
				return err
			}

			if err := cfg.Viper().BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if f := cmd.Flags().Lookup("base-url"); f != nil && f.Changed {
				cfg.BaseURL = strings.TrimRight(f.Value.String(), "/")
			}

			ctx := context.WithValue(cmd.Context(), configContextKey, cfg)
			cmd.SetContext(ctx)

			return nil
		},
	}
)

// GetConfig retrieves the client Config from the command context
func GetConfig(cmd *cobra.Command) (*qsdk.Config, error) {
	ctx := cmd.Context()
	cfg, ok := ctx.Value(configContextKey).(*qsdk.Config)
	if !ok {
		return nil, errors.New("no config in context")
	}
	return cfg, nil
}

func newSdk(cmd *cobra.Command) (*qsdk.Sdk, error) {
	cfg, err := GetConfig(cmd)
	if err != nil {
		return nil, err
	}
	return qsdk.NewSdk(cfg), nil
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "client config file (YAML). Searches: qgate.yaml, .qgate/config.yaml")
	rootCmd.PersistentFlags().String("base-url", "", "Base URL of the qgate gateway (overrides config)")
}
