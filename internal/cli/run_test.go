package cli_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/kiln"
	"github.com/aretw0/kiln/internal/cli"
	"github.com/aretw0/kiln/internal/host"
	"github.com/aretw0/kiln/internal/testutils"
	"github.com/aretw0/kiln/pkg/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runOptions(t *testing.T, entry func(ctx context.Context, args []string) error) (cli.RunOptions, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	mods := filepath.Join(dir, "mods")
	require.NoError(t, os.MkdirAll(mods, 0o755))
	classes := testutils.WriteUnits(t, filepath.Join(dir, "classes"), &unit.Unit{
		Name:    "app/Main",
		Methods: []unit.Method{{Name: "main", Flags: unit.FlagStatic, Blocks: []unit.Block{{ID: 0}}}},
	})

	var out bytes.Buffer
	return cli.RunOptions{
		Flags:   cli.Flags{Entry: "app.Main", Mods: mods, SearchPath: classes, LogLevel: "off"},
		Out:     &out,
		Runtime: []kiln.Option{kiln.WithHost(host.New(host.WithEntry("app.Main", entry)))},
	}, &out
}

func TestRun_InvokesEntry(t *testing.T) {
	var got []string
	opts, out := runOptions(t, func(ctx context.Context, args []string) error {
		got = args
		return nil
	})

	require.NoError(t, cli.Run(context.Background(), opts, []string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Contains(t, out.String(), ">>> Entering app.Main")
	assert.Contains(t, out.String(), ">>> Program finished (0 extensions)")
}

func TestRun_Quiet(t *testing.T) {
	opts, out := runOptions(t, func(ctx context.Context, args []string) error { return nil })
	opts.Quiet = true

	require.NoError(t, cli.Run(context.Background(), opts, nil))
	assert.Empty(t, out.String())
}

func TestRun_CancellationIsNotAnError(t *testing.T) {
	opts, out := runOptions(t, func(ctx context.Context, args []string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, cli.Run(ctx, opts, nil))
	assert.Contains(t, out.String(), ">>> Interrupted")
}

func TestRun_EntryError(t *testing.T) {
	boom := errors.New("boom")
	opts, _ := runOptions(t, func(ctx context.Context, args []string) error { return boom })

	assert.ErrorIs(t, cli.Run(context.Background(), opts, nil), boom)
}
