package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cm "github.com/gasparian/lsh-evolve-go/common"
	"github.com/spf13/cobra"
)

var (
	configPath string
	config     cm.Config
	logger     = cm.GetNewLogger()
)

var rootCmd = &cobra.Command{
	Use:           "lsh-evolve",
	Short:         "Evolutionary search of LSH hash function parameters",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = cm.LoadConfig(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd)
		return config.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the yaml config")
	rootCmd.PersistentFlags().String("store", "", "population store: memory, badger, sqlite or purekv")
	rootCmd.PersistentFlags().String("store-path", "", "badger directory or sqlite file")
	rootCmd.AddCommand(evolveCmd, serveCmd, topCmd, exportCmd, importCmd, benchCmd)
}

// applyFlags overrides config by the explicitly set command line flags
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("store") {
		config.Store.Kind, _ = flags.GetString("store")
	}
	if flags.Changed("store-path") {
		config.Store.Path, _ = flags.GetString("store-path")
	}
	if flags.Changed("mode") {
		config.Evolve.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("steps") {
		config.Evolve.MaxSteps, _ = flags.GetInt("steps")
	}
	if flags.Changed("seed") {
		config.Evolve.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("addr") {
		config.App.Address, _ = flags.GetString("addr")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Err.Println(err.Error())
		os.Exit(1)
	}
}
