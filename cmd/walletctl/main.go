// Command walletctl is the operator CLI for the Veilfi wallet backend.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"veilfi-wallet/pkg/config"
	"veilfi-wallet/pkg/logging"
	sln "veilfi-wallet/pkg/solana"
)

// app carries state shared by every subcommand.
type app struct {
	rpcURL  string
	verbose bool
	cfg     *config.Config
	logger  *logrus.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "walletctl",
		Short: "Operator tools for the Veilfi wallet backend",
		Long: `walletctl inspects keys, balances and transactions, creates token
accounts, applies database migrations and runs one-off deposit scans.

Settings are read from the environment and .env like the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if a.rpcURL != "" {
				cfg.SolanaRpcURL = a.rpcURL
			}
			a.cfg = cfg
			if a.verbose {
				a.logger = logging.NewWithOutput(cmd.ErrOrStderr(), "debug", cfg.LogFormat)
			} else {
				a.logger = logging.NewWithOutput(cmd.ErrOrStderr(), "warn", cfg.LogFormat)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.rpcURL, "rpc", "", "Solana RPC endpoint (default RPC_URL)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		a.keygenCmd(),
		a.inspectKeyCmd(),
		a.balanceCmd(),
		a.inspectTxCmd(),
		a.createATACmd(),
		a.migrateCmd(),
		a.checkDepositsCmd(),
	)
	return root
}

func (a *app) node() sln.RPC {
	return sln.NewRPC(a.cfg.SolanaRpcURL)
}
