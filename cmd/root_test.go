package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/sponsor-go/access"
	"github.com/bitfsorg/sponsor-go/config"
	"github.com/bitfsorg/sponsor-go/deploy"
	"github.com/bitfsorg/sponsor-go/network"
	"github.com/bitfsorg/sponsor-go/pool"
	"github.com/bitfsorg/sponsor-go/sponsor"
	"github.com/bitfsorg/sponsor-go/wallet"
)

func testPublisher() *network.MockPublisher {
	var n atomic.Int64
	return &network.MockPublisher{
		PublishFn: func(_ context.Context, _ *wallet.Key, _ []byte, _ []network.Tag) (*network.Receipt, error) {
			return &network.Receipt{TxID: fmt.Sprintf("tx-%d", n.Add(1)), Cost: 2500}, nil
		},
		GetBalanceFn: func(context.Context, string) (*network.Balance, error) {
			w := uint64(network.WincPerCredit / 4)
			return &network.Balance{Available: w, Spendable: w}, nil
		},
	}
}

func executeCLI(t *testing.T, dataDir string, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SPONSOR_KEY_PASSPHRASE", "test passphrase")

	app := newApp(
		sponsor.WithPublisher(testPublisher()),
		sponsor.WithKDFParams(wallet.KDFParams{Time: 1, Memory: 64, Parallelism: 1}),
	)
	root := newRootCmd(app)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--datadir", dataDir}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func newKey(t *testing.T) *wallet.Key {
	t.Helper()
	k, err := wallet.GenerateKey(&wallet.MainNet)
	require.NoError(t, err)
	return k
}

func createPool(t *testing.T, dir string, creator string, members ...string) *pool.Record {
	t.Helper()
	args := []string{"pool", "create", "--json",
		"--name", "Launch Party",
		"--creator", creator,
		"--start", time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
		"--end", time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"--cap-credits", "0.5",
	}
	if len(members) > 0 {
		args = append(args, "--whitelist", strings.Join(members, ","))
	}
	out, _, err := executeCLI(t, dir, "", args...)
	require.NoError(t, err)

	var p pool.Record
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	return &p
}

func TestVersion(t *testing.T) {
	out, _, err := executeCLI(t, t.TempDir(), "", "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	out, _, err := executeCLI(t, dir, "", "init", "--backend", "file", "--network", "testnet")
	require.NoError(t, err)
	assert.Contains(t, out, config.ConfigPath(dir))

	cfg, err := config.LoadConfig(config.ConfigPath(dir))
	require.NoError(t, err)
	assert.Equal(t, config.BackendFile, cfg.StoreBackend)
	assert.Equal(t, "testnet", cfg.Network)

	raw, err := os.ReadFile(config.ConfigPath(dir))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "test passphrase")

	_, _, err = executeCLI(t, dir, "", "init")
	assert.ErrorContains(t, err, "already exists")

	_, _, err = executeCLI(t, dir, "", "init", "--force", "--backend", "nosql")
	assert.ErrorIs(t, err, config.ErrInvalidStoreBackend)
}

func TestPoolCommands(t *testing.T) {
	dir := t.TempDir()
	creator, member, stranger := newKey(t), newKey(t), newKey(t)

	p := createPool(t, dir, creator.Address, member.Address)
	assert.Equal(t, "Launch Party", p.Name)
	assert.Equal(t, uint64(network.WincPerCredit/2), p.UsageCap)
	assert.NotEmpty(t, p.WalletAddress)

	out, _, err := executeCLI(t, dir, "", "pool", "list", "--creator", creator.Address)
	require.NoError(t, err)
	assert.Contains(t, out, p.ID)
	assert.Contains(t, out, "0.5 credits (500,000,000,000 winc)")

	out, _, err = executeCLI(t, dir, "", "pool", "list", "--creator", stranger.Address)
	require.NoError(t, err)
	assert.Equal(t, "No pools.\n", out)

	out, _, err = executeCLI(t, dir, "", "pool", "list", "--active-at", "2001-01-01T00:00:00Z", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	_, _, err = executeCLI(t, dir, "", "pool", "update", p.ID,
		"--whitelist", member.Address+","+stranger.Address, "--requester", stranger.Address)
	assert.ErrorIs(t, err, access.ErrNotPoolOwner)

	out, _, err = executeCLI(t, dir, "", "pool", "update", p.ID,
		"--whitelist", member.Address+","+stranger.Address, "--requester", creator.Address)
	require.NoError(t, err)
	assert.Contains(t, out, stranger.Address)

	_, _, err = executeCLI(t, dir, "", "pool", "update", p.ID)
	assert.ErrorContains(t, err, "nothing to update")

	out, _, err = executeCLI(t, dir, "", "pool", "balance", p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, p.WalletAddress)
	assert.Contains(t, out, "0.25 credits")
	assert.Contains(t, out, "2.5 MiB")

	out, _, err = executeCLI(t, dir, "", "pool", "delete", p.ID, "--requester", creator.Address)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted pool "+p.ID)

	_, _, err = executeCLI(t, dir, "", "pool", "show", p.ID)
	assert.ErrorIs(t, err, pool.ErrPoolNotFound)
}

func TestPoolCreate_BadTime(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "", "pool", "create",
		"--name", "x", "--creator", newKey(t).Address, "--end", "tomorrow")
	assert.ErrorContains(t, err, "RFC3339")
}

func TestWalletCommands(t *testing.T) {
	dir := t.TempDir()
	k1, k2 := newKey(t), newKey(t)

	out, _, err := executeCLI(t, dir, "", "wallet", "enroll", k1.WIF())
	require.NoError(t, err)
	assert.Equal(t, "Enrolled "+k1.Address+"\n", out)

	out, _, err = executeCLI(t, dir, k2.WIF()+"\n", "wallet", "enroll")
	require.NoError(t, err)
	assert.Equal(t, "Enrolled "+k2.Address+"\n", out)

	out, _, err = executeCLI(t, dir, "", "wallet", "list", "--json")
	require.NoError(t, err)
	var addrs []string
	require.NoError(t, json.Unmarshal([]byte(out), &addrs))
	assert.ElementsMatch(t, []string{k1.Address, k2.Address}, addrs)

	_, _, err = executeCLI(t, dir, "", "wallet", "enroll", "garbage")
	assert.ErrorIs(t, err, wallet.ErrInvalidKeyMaterial)
}

func writeBundle(t *testing.T) (archive, manifest string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"index.html": "<html>hello</html>",
		"style.css":  "body { color: teal }",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	dir := t.TempDir()
	archive = filepath.Join(dir, "site.zip")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0o600))
	manifest = filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifest,
		[]byte(`[{"relativePath":"index.html"},{"relativePath":"style.css","contentType":"text/css"}]`), 0o600))
	return archive, manifest
}

func TestDeploy_PoolTier(t *testing.T) {
	dir := t.TempDir()
	creator, uploader := newKey(t), newKey(t)
	p := createPool(t, dir, creator.Address, uploader.Address)
	archive, manifest := writeBundle(t)

	out, _, err := executeCLI(t, dir, "", "deploy", "--json",
		"--archive", archive, "--manifest", manifest,
		"--tier", "event", "--pool", p.ID, "--key", uploader.WIF())
	require.NoError(t, err)

	var res deploy.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, deploy.TierPool, res.Tier)
	assert.Len(t, res.Files, 2)
	assert.Equal(t, uint64(5000), res.Spent)
	assert.Equal(t, uint64(5000), res.Usage)
	assert.Equal(t, "You have been sponsored by Launch Party", res.Sponsor)

	// The caller's bundle is left in place.
	assert.FileExists(t, archive)

	out, _, err = executeCLI(t, dir, "", "pool", "show", p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, uploader.Address+" used ")
}

func TestDeploy_CommunityTier(t *testing.T) {
	dir := t.TempDir()
	funder, uploader := newKey(t), newKey(t)
	_, _, err := executeCLI(t, dir, "", "wallet", "enroll", funder.WIF())
	require.NoError(t, err)
	archive, manifest := writeBundle(t)

	out, _, err := executeCLI(t, dir, "", "deploy",
		"--archive", archive, "--manifest", manifest, "--key", uploader.WIF())
	require.NoError(t, err)
	assert.Contains(t, out, "Sponsored by the community pool")
	assert.Contains(t, out, "tx-1")
	assert.Contains(t, out, "index.html")
}

func TestDeploy_NotWhitelisted(t *testing.T) {
	dir := t.TempDir()
	creator := newKey(t)
	p := createPool(t, dir, creator.Address, creator.Address)
	archive, manifest := writeBundle(t)

	_, _, err := executeCLI(t, dir, "", "deploy",
		"--archive", archive, "--manifest", manifest,
		"--tier", "event", "--pool", p.ID, "--key", newKey(t).WIF())
	assert.ErrorIs(t, err, access.ErrWalletNotWhitelisted)
	assert.FileExists(t, archive)
}

func TestDeploy_NeedsSignature(t *testing.T) {
	archive, manifest := writeBundle(t)
	_, _, err := executeCLI(t, t.TempDir(), "", "deploy", "--archive", archive, "--manifest", manifest)
	assert.ErrorContains(t, err, "--key or --signature")
}
