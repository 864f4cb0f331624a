package command

import (
	"github.com/spf13/cobra"

	"gitlab.com/arbfn-2025.net/internal/config"
	logger2 "gitlab.com/arbfn-2025.net/internal/global/logger"
)

type rootOptions struct {
	configPath  string
	environment string
	verbose     bool

	cfg *config.AppConfig
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "arbfn",
		Short:         "Master/worker service that answers atom force reports with corrections",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitReader(opts.environment); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.verbose {
				cfg.LogConfig.Level = "debug"
			}
			logger2.Configure(cfg.LogConfig)
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVarP(&opts.environment, "env", "e", "", "load <env>.env before reading the configuration")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(
		NewMasterCommand(opts),
		NewWorkerCommand(opts),
		NewVersionCommand(),
	)
	return cmd
}
