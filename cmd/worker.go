package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oseayemenre/novelnest/internal/events"
	"github.com/oseayemenre/novelnest/internal/novels"
)

// WorkerCommand drains queued view events into the novel documents.
func WorkerCommand(ctx context.Context) *cobra.Command {
	var env string
	var configPath string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "count queued novel views",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
			defer stop()

			cfg, err := loadConfig(configPath, env)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.Env, "worker")
			if err != nil {
				return err
			}

			client, err := openCollection(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			logger.Info("connecting to queue...")
			consumer, err := events.NewConsumer(cfg.RabbitMQConn, cfg.RabbitMQQueue, novels.NewDirectCounter(client), logger)
			if err != nil {
				return err
			}
			defer consumer.Close()
			logger.Info("queue connected", "queue", cfg.RabbitMQQueue)

			return consumer.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&env, "env", "e", "", "current working environment, overrides APP_ENV")
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the env file")

	return cmd
}
