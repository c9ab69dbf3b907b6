package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/sponsor-go/deploy"
	"github.com/bitfsorg/sponsor-go/sponsor"
	"github.com/bitfsorg/sponsor-go/wallet"
)

type deployFlags struct {
	archive   string
	manifest  string
	tier      string
	poolID    string
	key       string
	signature string
	publicKey string
	address   string
}

func newDeployCmd(app *app) *cobra.Command {
	var f deployFlags

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Publish a site bundle through a sponsor",
		Long: "Publish the files of a zip or tar.gz bundle listed in a JSON manifest.\n" +
			"The bundle hash is signed with --key, or a detached --signature and --pubkey are supplied.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withService(cmd, func(ctx context.Context, svc *sponsor.Service) error {
				req, cleanup, err := f.request(svc.Network())
				if err != nil {
					return err
				}
				defer cleanup()

				res, err := svc.HandleUpload(ctx, req)
				if err != nil {
					return err
				}
				if app.jsonOut {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				return printResult(cmd.OutOrStdout(), res)
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.archive, "archive", "", "zip or tar.gz bundle")
	fl.StringVar(&f.manifest, "manifest", "", "JSON manifest of files to publish")
	fl.StringVar(&f.tier, "tier", "", "payer: event (pool) or community (default)")
	fl.StringVar(&f.poolID, "pool", "", "pool id for the event tier")
	fl.StringVar(&f.key, "key", "", "uploader private key (WIF or hex) used to sign the bundle hash")
	fl.StringVar(&f.signature, "signature", "", "hex signature over the bundle hash")
	fl.StringVar(&f.publicKey, "pubkey", "", "hex public key for --signature")
	fl.StringVar(&f.address, "address", "", "claimed uploader address (default derived from the key)")
	_ = cmd.MarkFlagRequired("archive")
	_ = cmd.MarkFlagRequired("manifest")
	cmd.MarkFlagsMutuallyExclusive("key", "signature")
	cmd.MarkFlagsRequiredTogether("signature", "pubkey")
	return cmd
}

// request builds an upload request. The service consumes its archive, so
// the bundle is staged as a private copy that the returned func removes.
func (f *deployFlags) request(net *wallet.NetworkConfig) (deploy.Request, func(), error) {
	noop := func() {}

	tier, err := deploy.ParseTier(f.tier)
	if err != nil {
		return deploy.Request{}, noop, err
	}
	raw, err := os.ReadFile(f.manifest)
	if err != nil {
		return deploy.Request{}, noop, fmt.Errorf("read manifest: %w", err)
	}
	manifest, err := deploy.ParseManifest(raw)
	if err != nil {
		return deploy.Request{}, noop, err
	}

	staged, digest, err := stageArchive(f.archive)
	if err != nil {
		return deploy.Request{}, noop, err
	}
	cleanup := func() { _ = os.RemoveAll(filepath.Dir(staged)) }

	req := deploy.Request{
		ContentHash:    hex.EncodeToString(digest),
		Signature:      f.signature,
		PublicKey:      f.publicKey,
		ClaimedAddress: f.address,
		Tier:           tier,
		PoolID:         f.poolID,
		ArchivePath:    staged,
		Manifest:       manifest,
	}

	if f.key != "" {
		key, err := wallet.ParseKeyMaterial(f.key, net)
		if err != nil {
			cleanup()
			return deploy.Request{}, noop, err
		}
		sig, err := key.Sign(digest)
		if err != nil {
			cleanup()
			return deploy.Request{}, noop, err
		}
		req.Signature = hex.EncodeToString(sig)
		req.PublicKey = key.PublicKeyHex()
		if req.ClaimedAddress == "" {
			req.ClaimedAddress = key.Address
		}
	} else if req.Signature == "" {
		cleanup()
		return deploy.Request{}, noop, fmt.Errorf("one of --key or --signature is required")
	}

	if req.ClaimedAddress == "" {
		pub, err := wallet.ParsePublicKeyHex(req.PublicKey)
		if err != nil {
			cleanup()
			return deploy.Request{}, noop, err
		}
		if req.ClaimedAddress, err = wallet.DeriveAddress(pub, net); err != nil {
			cleanup()
			return deploy.Request{}, noop, err
		}
	}
	return req, cleanup, nil
}

// stageArchive copies src into a fresh temp dir and returns the copy's path
// and its SHA-256.
func stageArchive(src string) (string, []byte, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", nil, fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	dir, err := os.MkdirTemp("", "sponsord-")
	if err != nil {
		return "", nil, err
	}
	dst := filepath.Join(dir, filepath.Base(src))
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}

	h := sha256.New()
	_, err = io.Copy(io.MultiWriter(out, h), in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, fmt.Errorf("stage archive: %w", err)
	}
	return dst, h.Sum(nil), nil
}

func printResult(w io.Writer, res *deploy.Result) error {
	fmt.Fprintf(w, "%s\n", res.Sponsor)
	for _, f := range res.Files {
		fmt.Fprintf(w, "  %-32s %s  %s\n", f.Path, f.TxID, humanize.IBytes(uint64(f.Size)))
	}
	fmt.Fprintf(w, "Spent:      %s\n", formatWinc(res.Spent))
	if res.Tier == deploy.TierPool {
		fmt.Fprintf(w, "Allowance:  %s left\n", formatWinc(res.RemainingAllowance))
	}
	_, err := fmt.Fprintf(w, "Remaining:  %s (about %s)\n", formatWinc(res.RemainingBalance), humanize.IBytes(res.EquivalentFileSize))
	return err
}
