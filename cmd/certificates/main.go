// Package main is the operator CLI for batch certificate processing.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aura-seminar/certificates/config"
	"github.com/aura-seminar/certificates/internal/app"
	"github.com/aura-seminar/certificates/internal/certificates"
	"github.com/aura-seminar/certificates/internal/models"
)

var Version = "dev"

// scanner is the batch side of the pipeline the commands drive.
type scanner interface {
	ProcessMissing(ctx context.Context, opts certificates.MissingOptions) (certificates.MissingSummary, error)
	ProcessPending(ctx context.Context, opts certificates.PendingOptions) (certificates.PendingSummary, error)
}

// env is what a command needs once connections are open.
type env struct {
	scanner scanner
	purge   func(ctx context.Context, code string) error
	close   func()
}

type opener func(ctx context.Context) (*env, error)

func main() {
	logger := app.NewLogger()
	defer logger.Sync()

	if err := newRootCmd(openApp(logger)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "certificates",
		Short:         "Batch tools for attendance certificates",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(processMissingCmd(open))
	rootCmd.AddCommand(processPendingCmd(open))
	rootCmd.AddCommand(purgeCmd(open))
	return rootCmd
}

func openApp(logger *zap.Logger) opener {
	return func(ctx context.Context) (*env, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return &env{
			scanner: a.Scanner,
			purge: func(ctx context.Context, code string) error {
				reg, err := a.Registrations.GetByCertificateCode(ctx, code)
				if err != nil {
					return err
				}
				return a.Artifacts.Purge(ctx, reg)
			},
			close: a.Close,
		}, nil
	}
}

func purgeCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "purge [code]",
		Short: "Delete a certificate's image and document so they are regenerated on next use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.purge(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, models.ErrRegistrationNotFound) {
					return fmt.Errorf("no certificate with code %s", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged certificate %s\n", args[0])
			return nil
		},
	}
}
