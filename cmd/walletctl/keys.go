package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"veilfi-wallet/pkg/keys"
)

func (a *app) keygenCmd() *cobra.Command {
	var (
		words  int
		export string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new wallet and print its mnemonic",
		Long: `Generate a BIP-39 mnemonic and derive its wallet on the Phantom path
m/44'/501'/0'/0'. The mnemonic is printed once; store it offline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kp, mnemonic, err := keys.Generate(words)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Address:  %s\n", kp.PublicKey())
			fmt.Fprintf(out, "Mnemonic: %s\n", mnemonic)
			return printExport(out, kp, export)
		},
	}
	cmd.Flags().IntVar(&words, "words", 12, "mnemonic length, 12 or 24")
	cmd.Flags().StringVar(&export, "export", "", "also print the secret key as base58 or json")
	return cmd
}

func (a *app) inspectKeyCmd() *cobra.Command {
	var (
		derivation string
		export     string
	)
	cmd := &cobra.Command{
		Use:   "inspect-key [secret]",
		Short: "Detect the format of a secret and print its address",
		Long: `Parse a mnemonic, base58 secret or JSON byte array the same way the
server does on import. Without an argument the secret is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := secretInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			d, err := keys.ParseDerivation(derivation)
			if err != nil {
				return err
			}
			kp, err := keys.Parse(input, keys.Options{Derivation: d})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Format:  %s\n", kp.Format)
			if kp.Derivation != "" {
				fmt.Fprintf(out, "Path:    %s\n", kp.Derivation)
			}
			fmt.Fprintf(out, "Address: %s\n", kp.PublicKey())
			return printExport(out, kp, export)
		},
	}
	cmd.Flags().StringVar(&derivation, "derivation", "phantom", "mnemonic derivation: phantom or seed32")
	cmd.Flags().StringVar(&export, "export", "", "also print the secret key as base58 or json")
	return cmd
}

func secretInput(in io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printExport(out io.Writer, kp *keys.Keypair, format string) error {
	switch format {
	case "":
		return nil
	case "base58":
		fmt.Fprintf(out, "Secret:  %s\n", keys.EncodeBase58(kp))
		return nil
	case "json":
		arr, err := keys.EncodeJSONArray(kp)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Secret:  %s\n", arr)
		return nil
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
