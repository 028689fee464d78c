package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/signalnine/autoback/internal/agent"
	"github.com/signalnine/autoback/internal/config"
	"github.com/signalnine/autoback/internal/diag"
	"github.com/signalnine/autoback/internal/protocol"
)

// outcomeFlag is a pflag.Value restricted to success/failure
type outcomeFlag struct {
	outcome protocol.Outcome
}

var _ pflag.Value = (*outcomeFlag)(nil)

func (f *outcomeFlag) String() string {
	if !f.outcome.Valid() {
		return ""
	}
	return f.outcome.String()
}

func (f *outcomeFlag) Set(s string) error {
	o, err := protocol.ParseOutcome(s)
	if err != nil {
		return err
	}
	f.outcome = o
	return nil
}

func (f *outcomeFlag) Type() string { return "outcome" }

var reportOutcome outcomeFlag

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Record an imaging outcome to the shared log and notify the coordinator",
	Long: `Appends one status line to the shared log and sends host:OUTCOME to the
coordinator. Exits non-zero only if the log line could not be written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAgentConfig(configPath)
		if err != nil {
			return err
		}
		closer := diag.Setup(cfg.DiagLog, verbose)
		defer closer.Close()

		a, err := agent.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, err = a.Run(ctx, reportOutcome.outcome)
		return err
	},
}

func init() {
	reportCmd.Flags().Var(&reportOutcome, "outcome", "job outcome: success or failure")
	reportCmd.MarkFlagRequired("outcome")
}
