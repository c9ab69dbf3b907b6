package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/sponsor-go/sponsor"
)

func newWalletCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage community wallets",
	}
	cmd.AddCommand(newWalletEnrollCmd(app), newWalletListCmd(app))
	return cmd
}

func newWalletEnrollCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enroll [key]",
		Short: "Add a funded key to the community set",
		Long:  "Enroll a WIF or hex private key as a community wallet. With no argument, or \"-\", the key is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			material := ""
			if len(args) == 1 && args[0] != "-" {
				material = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read key from stdin: %w", err)
				}
				material = line
			}
			material = strings.TrimSpace(material)

			return app.withService(cmd, func(ctx context.Context, svc *sponsor.Service) error {
				addr, err := svc.EnrollCommunityWallet(ctx, material)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Enrolled %s\n", addr)
				return err
			})
		},
	}
}

func newWalletListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List community wallet addresses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withService(cmd, func(ctx context.Context, svc *sponsor.Service) error {
				addrs, err := svc.CommunityWallets(ctx)
				if err != nil {
					return err
				}
				if app.jsonOut {
					return writeJSON(cmd.OutOrStdout(), addrs)
				}
				for _, a := range addrs {
					fmt.Fprintln(cmd.OutOrStdout(), a)
				}
				return nil
			})
		},
	}
}
