package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func Run() error {
	ctx := context.Background()

	cmd := &cobra.Command{
		Use:   "novelnest",
		Short: "novelnest reading platform",
	}

	cmd.AddCommand(HTTPCommand(ctx))
	cmd.AddCommand(WorkerCommand(ctx))

	if err := cmd.Execute(); err != nil {
		return err
	}

	return nil
}
