package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/sponsor-go/network"
	"github.com/bitfsorg/sponsor-go/pool"
	"github.com/bitfsorg/sponsor-go/sponsor"
)

func newPoolCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Manage sponsorship pools",
	}
	cmd.AddCommand(
		newPoolCreateCmd(app),
		newPoolUpdateCmd(app),
		newPoolDeleteCmd(app),
		newPoolListCmd(app),
		newPoolShowCmd(app),
		newPoolBalanceCmd(app),
	)
	return cmd
}

func newPoolCreateCmd(app *app) *cobra.Command {
	var (
		spec       pool.Spec
		start, end string
		capCredits float64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pool with a fresh dedicated wallet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if spec.StartTime, err = parseTime(start, time.Now()); err != nil {
				return err
			}
			if spec.EndTime, err = parseTime(end, time.Time{}); err != nil {
				return err
			}
			if capCredits > 0 {
				spec.UsageCap = uint64(capCredits * network.WincPerCredit)
			}
			return app.withService(cmd, func(ctx context.Context, svc *sponsor.Service) error {
				p, err := svc.CreatePool(ctx, spec)
				if err != nil {
					return err
				}
				if app.jsonOut {
					return writeJSON(cmd.OutOrStdout(), p)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created pool %s\n", p.ID)
				_, err = fmt.Fprintf(out, "Fund %s to activate it.\n", p.WalletAddress)
				return err
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&spec.Name, "name", "", "pool name shown to uploaders")
	f.StringVar(&spec.CreatorAddress, "creator", "", "creator address")
	f.StringVar(&start, "start", "", "window start, RFC3339 (default now)")
	f.StringVar(&end, "end", "", "window end, RFC3339")
	f.Uint64Var(&spec.UsageCap, "cap", 0, "per-wallet usage cap in winc")
	f.Float64Var(&capCredits, "cap-credits", 0, "per-wallet usage cap in credits (overrides --cap)")
	f.StringSliceVar(&spec.Whitelist, "whitelist", nil, "addresses allowed to spend")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("creator")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newPoolUpdateCmd(app *app) *cobra.Command {
	var (
		start, end string
		whitelist  []string
		requester  string
	)

	cmd := &cobra.Command{
		Use:   "update <pool-id>",
		Short: "Change a pool's window or whitelist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch pool.Patch
			if start != "" {
				t, err := parseTime(start, time.Time{})
				if err != nil {
					return err
				}
				patch.StartTime = &t
			}
			if end != "" {
				t, err := parseTime(end, time.Time{})
				if err != nil {
					return err
				}
				patch.EndTime = &t
			}
			if cmd.Flags().Changed("whitelist") {
				patch.Whitelist = append([]string{}, whitelist...)
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to update: set --start, --end or --whitelist")
			}
			return app.withService(cmd, func(ctx context.Context, svc *sponsor.Service) error {
				p, err := svc.UpdatePool(ctx, args[0], patch, requester)
				if err != nil {
					return err
				}
				if app.jsonOut {
					return writeJSON(cmd.OutOrStdout(), p)
				}
				return printPool(cmd.OutOrStdout(), p)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&start, "start", "", "new window start, RFC3339")
	f.StringVar(&end, "end", "", "new window end, RFC3339")
	f.StringSliceVar(&whitelist, "whitelist", nil, "replacement whitelist")
	f.StringVar(&requester, "requester", "", "require this address to be the pool creator")
	return cmd
}

func newPoolDeleteCmd(app *app) *cobra.Command {
	var requester string

	cmd := &cobra.Command{
		Use:   "delete <pool-id>",
		Short: "Delete a pool and destroy its dedicated key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withService(cmd, func(ctx context.Context, svc *sponsor.Service) error {
				if err := svc.DeletePool(ctx, args[0], requester); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted pool %s\n", args[0])
				return err
			})
		},
	}
	cmd.Flags().StringVar(&requester, "requester", "", "require this address to be the pool creator")
	return cmd
}

func newPoolListCmd(app *app) *cobra.Command {
	var (
		filter   pool.Filter
		activeAt string
		active   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if activeAt != "" {
				t, err := parseTime(activeAt, time.Time{})
				if err != nil {
					return err
				}
				filter.ActiveAt = t
			} else if active {
				filter.ActiveAt = time.Now()
			}
			return app.withService(cmd, func(ctx context.Context, svc *sponsor.Service) error {
				pools, err := svc.ListPools(ctx, filter)
				if err != nil {
					return err
				}
				if app.jsonOut {
					return writeJSON(cmd.OutOrStdout(), pools)
				}
				out := cmd.OutOrStdout()
				if len(pools) == 0 {
					_, err := fmt.Fprintln(out, "No pools.")
					return err
				}
				for _, p := range pools {
					fmt.Fprintf(out, "%s  %-24s  %s .. %s  cap %s\n",
						p.ID, p.Name,
						p.StartTime.Format(time.RFC3339), p.EndTime.Format(time.RFC3339),
						formatWinc(p.UsageCap))
				}
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&filter.Creator, "creator", "", "only pools created by this address")
	f.StringVar(&filter.Wallet, "wallet", "", "only pools whitelisting this address")
	f.StringVar(&activeAt, "active-at", "", "only pools active at this RFC3339 time")
	f.BoolVar(&active, "active", false, "only pools active now")
	return cmd
}

func newPoolShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <pool-id>",
		Short: "Show one pool and its usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withService(cmd, func(ctx context.Context, svc *sponsor.Service) error {
				p, err := svc.GetPool(ctx, args[0])
				if err != nil {
					return err
				}
				if app.jsonOut {
					return writeJSON(cmd.OutOrStdout(), p)
				}
				return printPool(cmd.OutOrStdout(), p)
			})
		},
	}
}

func newPoolBalanceCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <pool-id>",
		Short: "Show the funding left in a pool's wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withService(cmd, func(ctx context.Context, svc *sponsor.Service) error {
				bal, err := svc.GetBalance(ctx, args[0])
				if err != nil {
					return err
				}
				if app.jsonOut {
					return writeJSON(cmd.OutOrStdout(), bal)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Wallet:     %s\n", bal.Address)
				fmt.Fprintf(out, "Balance:    %s\n", formatWinc(bal.Winc))
				_, err = fmt.Fprintf(out, "Pays for:   %s\n", humanize.IBytes(bal.EquivalentFileSize))
				return err
			})
		},
	}
}

func printPool(w io.Writer, p *pool.Record) error {
	fmt.Fprintf(w, "Pool:       %s (%s)\n", p.Name, p.ID)
	fmt.Fprintf(w, "Creator:    %s\n", p.CreatorAddress)
	fmt.Fprintf(w, "Wallet:     %s\n", p.WalletAddress)
	fmt.Fprintf(w, "Window:     %s .. %s\n", p.StartTime.Format(time.RFC3339), p.EndTime.Format(time.RFC3339))
	fmt.Fprintf(w, "Cap:        %s per wallet\n", formatWinc(p.UsageCap))
	fmt.Fprintf(w, "Whitelist:  %s\n", strings.Join(p.Whitelist, ", "))
	for _, addr := range p.Whitelist {
		if used := p.UsageOf(addr); used > 0 {
			fmt.Fprintf(w, "  %s used %s\n", addr, formatWinc(used))
		}
	}
	return nil
}

func formatWinc(winc uint64) string {
	return fmt.Sprintf("%s credits (%s winc)",
		humanize.FtoaWithDigits(network.Credits(winc), 6), humanize.Comma(int64(winc)))
}

// parseTime parses an RFC3339 flag value. Empty yields def.
func parseTime(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 such as 2026-05-01T18:00:00Z", s)
	}
	return t, nil
}
