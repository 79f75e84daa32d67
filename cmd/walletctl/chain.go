package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"veilfi-wallet/pkg/deposit"
	"veilfi-wallet/pkg/keys"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/storage/memory"
)

func (a *app) balanceCmd() *cobra.Command {
	var empty bool
	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Show SOL and token balances of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}
			info, err := sln.NewBalances(a.node(), a.logger).WalletInfo(cmd.Context(), owner, empty)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Address: %s\n", info.Address)
			fmt.Fprintf(out, "SOL:     %s (%d lamports)\n", info.Sol, info.Lamports)
			if len(info.Tokens) == 0 {
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MINT\tAMOUNT\tDECIMALS\tPROGRAM")
			for _, t := range info.Tokens {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", t.Mint, t.UiAmountString, t.Decimals, t.Program)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&empty, "all", false, "include empty token accounts")
	return cmd
}

func (a *app) inspectTxCmd() *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "inspect-tx <signature>",
		Short: "Print balance changes of a confirmed transaction as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := solana.SignatureFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("invalid signature: %w", err)
			}
			var addr *solana.PublicKey
			if address != "" {
				key, err := solana.PublicKeyFromBase58(address)
				if err != nil {
					return fmt.Errorf("invalid address: %w", err)
				}
				addr = &key
			}

			inspection, err := sln.InspectTransaction(cmd.Context(), a.node(), sig, addr)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(inspection)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "report changes for this address instead of the fee payer")
	return cmd
}

func (a *app) createATACmd() *cobra.Command {
	var payerEnv string
	cmd := &cobra.Command{
		Use:   "create-ata <owner> <mint>",
		Short: "Create the associated token account of owner for mint",
		Long: `Create owner's associated token account for mint unless it exists.
The payer secret is read from the environment variable named by --payer-env.
Token-2022 mints are detected from the mint account.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("invalid owner: %w", err)
			}
			mint, err := solana.PublicKeyFromBase58(args[1])
			if err != nil {
				return fmt.Errorf("invalid mint: %w", err)
			}
			secret := os.Getenv(payerEnv)
			if secret == "" {
				return fmt.Errorf("%s is not set", payerEnv)
			}
			payer, err := keys.Parse(secret, keys.Options{})
			if err != nil {
				return fmt.Errorf("%s: %w", payerEnv, err)
			}

			sender := sln.NewSender(a.node(), a.cfg.PriorityFeeMicroLamports, a.logger)
			ata, sig, err := sln.NewTransfers(sender, a.logger).EnsureATA(cmd.Context(), payer.PrivateKey, owner, mint)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Token account: %s\n", ata)
			if sig == nil {
				fmt.Fprintln(out, "Already exists, nothing sent")
				return nil
			}
			fmt.Fprintf(out, "Created: %s\n", sln.ExplorerURL(sig.String()))
			return nil
		},
	}
	cmd.Flags().StringVar(&payerEnv, "payer-env", "TREASURY_SECRET", "environment variable holding the payer secret")
	return cmd
}

func (a *app) checkDepositsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "check-deposits [wallet]",
		Short: "Scan a wallet's recent transactions for SOL deposits",
		Long: `Run one deposit scan against the wallet (default DEPOSIT_WALLET) and
print what it finds. Nothing is persisted and no notifications are sent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := a.cfg.DepositWallet
			if len(args) == 1 {
				address = args[0]
			}
			if address == "" {
				return fmt.Errorf("no wallet given and DEPOSIT_WALLET is not set")
			}
			wallet, err := solana.PublicKeyFromBase58(address)
			if err != nil {
				return fmt.Errorf("invalid wallet: %w", err)
			}

			tracker := deposit.NewTracker(a.node(), wallet, memory.NewDepositStore(), nil, nil, a.logger)
			tracker.ScanLimit = limit
			found, err := tracker.Check(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "No deposits found.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOL\tTIME\tSIGNATURE")
			for _, d := range found {
				when := "-"
				if d.BlockTime != nil {
					when = d.BlockTime.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.AmountSol, when, d.Signature)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", deposit.DefaultScanLimit, "number of recent signatures to inspect")
	return cmd
}
