package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd(newApp()).Execute()
}

func newRootCmd(app *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "sponsord",
		Short:        "Sponsored deploys to permanent storage",
		Long:         "sponsord manages sponsorship pools and community wallets, and publishes static-site bundles paid for by them.",
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.dataDir, "datadir", "", "data directory (default ~/.sponsor)")
	flags.StringVar(&app.network, "network", "", "network: mainnet, testnet or regtest")
	flags.StringVar(&app.gatewayURL, "gateway-url", "", "upload gateway URL")
	flags.BoolVar(&app.jsonOut, "json", false, "print JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(app),
		newPoolCmd(app),
		newWalletCmd(app),
		newDeployCmd(app),
	)

	return rootCmd
}
