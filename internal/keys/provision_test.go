package keys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/altoplano/appscale-tools/internal/errors"
	exectest "github.com/altoplano/appscale-tools/internal/exec/testing"
	"github.com/altoplano/appscale-tools/internal/layout"
	"github.com/altoplano/appscale-tools/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPaths puts the keypair in a temp directory and optionally writes
// a key there, standing in for an earlier provisioning run.
func testPaths(t *testing.T, withKey bool) Paths {
	t.Helper()
	paths := PathsIn(t.TempDir())
	if withKey {
		require.NoError(t, os.WriteFile(paths.Private, []byte("fake private key"), 0o600))
		require.NoError(t, os.WriteFile(paths.Public, []byte("fake public key"), 0o644))
	}
	return paths
}

func simpleLayout(t *testing.T, controller string, servers ...string) *layout.Layout {
	t.Helper()
	raw := map[string]interface{}{"controller": controller}
	if len(servers) > 0 {
		list := make([]interface{}, len(servers))
		for i, s := range servers {
			list[i] = s
		}
		raw["servers"] = list
	}
	l, err := layout.Parse(raw, layout.Options{})
	require.NoError(t, err)
	return l
}

func newTestProvisioner(runner *exectest.FakeRunner, copier *exectest.FakeCopier, paths Paths) *Provisioner {
	return NewProvisionerWithLogger(runner, copier, paths, logger.Noop())
}

func TestProvisionDistributesToEveryMachine(t *testing.T) {
	runner := exectest.NewFakeRunner()
	copier := exectest.NewFakeCopier()
	paths := testPaths(t, true)
	p := newTestProvisioner(runner, copier, paths)

	result, err := p.Provision(context.Background(), Options{
		Layout:        simpleLayout(t, "192.168.33.10", "192.168.33.11", "192.168.33.12"),
		AddToExisting: true,
	})
	require.NoError(t, err)

	expected := []string{
		"which ssh-keygen",
		"which ssh-copy-id",
	}
	for _, addr := range []string{"192.168.33.10", "192.168.33.11", "192.168.33.12"} {
		expected = append(expected,
			fmt.Sprintf("ssh-copy-id -i %s root@%s", paths.Private, addr),
			fmt.Sprintf("scp -i %s %s root@%s:.ssh/id_rsa", paths.Private, paths.Private, addr),
			fmt.Sprintf("scp -i %s %s root@%s:.ssh/id_rsa.pub", paths.Private, paths.Public, addr),
		)
	}
	assert.Equal(t, expected, runner.CallLines())

	// The backup happens once per run, not once per machine.
	assert.Equal(t, []exectest.CopyCall{{Src: paths.Private, Dst: paths.Backup}}, copier.Calls)

	assert.Equal(t, paths.Private, result.KeyPath)
	assert.Equal(t, []string{"192.168.33.10", "192.168.33.11", "192.168.33.12"}, result.Distributed)
	assert.True(t, result.BackedUp)
	assert.False(t, result.Generated)
}

func TestProvisionChecksToolsFirst(t *testing.T) {
	t.Run("missing ssh-keygen stops everything", func(t *testing.T) {
		for _, auto := range []bool{false, true} {
			runner := exectest.NewFakeRunner().Fail("^which ssh-keygen$", 1, "")
			copier := exectest.NewFakeCopier()
			p := newTestProvisioner(runner, copier, testPaths(t, true))

			_, err := p.Provision(context.Background(), Options{
				Layout: simpleLayout(t, "192.168.33.10"),
				Auto:   auto,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "ssh-keygen not found")
			assert.True(t, errors.IsCode(err, errors.ErrConfig))

			assert.Zero(t, runner.CountMatching("^(ssh-copy-id|scp) "))
			assert.Empty(t, copier.Calls)
		}
	})

	t.Run("missing ssh-copy-id", func(t *testing.T) {
		runner := exectest.NewFakeRunner().Fail("^which ssh-copy-id$", 1, "")
		p := newTestProvisioner(runner, exectest.NewFakeCopier(), testPaths(t, true))

		_, err := p.Provision(context.Background(), Options{
			Layout: simpleLayout(t, "192.168.33.10"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ssh-copy-id not found")
		assert.Equal(t, []string{"which ssh-keygen", "which ssh-copy-id"}, runner.CallLines())
	})

	t.Run("auto also needs expect", func(t *testing.T) {
		runner := exectest.NewFakeRunner().Fail("^which expect$", 1, "")
		p := newTestProvisioner(runner, exectest.NewFakeCopier(), testPaths(t, true))

		_, err := p.Provision(context.Background(), Options{
			Layout: simpleLayout(t, "192.168.33.10"),
			Auto:   true,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expect not found")
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	})

	t.Run("expect is not probed without auto", func(t *testing.T) {
		runner := exectest.NewFakeRunner().Fail("^which expect$", 1, "")
		p := newTestProvisioner(runner, exectest.NewFakeCopier(), testPaths(t, true))

		_, err := p.Provision(context.Background(), Options{
			Layout: simpleLayout(t, "192.168.33.10"),
		})
		require.NoError(t, err)
		assert.Zero(t, runner.CountMatching("^which expect$"))
	})
}

func TestProvisionGeneratesWhenKeyIsMissing(t *testing.T) {
	t.Run("fresh directory gets a new keypair", func(t *testing.T) {
		runner := exectest.NewFakeRunner()
		copier := exectest.NewFakeCopier()
		paths := testPaths(t, false)
		p := newTestProvisioner(runner, copier, paths)

		result, err := p.Provision(context.Background(), Options{
			Layout: simpleLayout(t, "192.168.33.10"),
		})
		require.NoError(t, err)
		assert.True(t, result.Generated)
		assert.False(t, result.BackedUp)
		assert.Empty(t, copier.Calls)

		gens := runner.CallsMatching("^ssh-keygen ")
		require.Len(t, gens, 1)
		assert.Equal(t, []string{"-t", "rsa", "-N", "", "-f", paths.Private, "-C", "appscale"}, gens[0].Args)

		// The dot directory is created on the way.
		info, statErr := os.Stat(filepath.Dir(paths.Private))
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	})

	t.Run("generation failure stops the run", func(t *testing.T) {
		runner := exectest.NewFakeRunner().Fail("^ssh-keygen ", 1, "ssh-keygen: bad things")
		p := newTestProvisioner(runner, exectest.NewFakeCopier(), testPaths(t, false))

		_, err := p.Provision(context.Background(), Options{
			Layout: simpleLayout(t, "192.168.33.10"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Couldn't generate an SSH keypair")
		assert.Contains(t, err.Error(), "ssh-keygen: bad things")
		assert.Zero(t, runner.CountMatching("^(ssh-copy-id|scp) "))
	})

	t.Run("existing key is reused, not regenerated", func(t *testing.T) {
		runner := exectest.NewFakeRunner()
		p := newTestProvisioner(runner, exectest.NewFakeCopier(), testPaths(t, true))

		result, err := p.Provision(context.Background(), Options{
			Layout: simpleLayout(t, "192.168.33.10"),
		})
		require.NoError(t, err)
		assert.False(t, result.Generated)
		assert.Zero(t, runner.CountMatching("^ssh-keygen "))
	})
}

func TestProvisionBackup(t *testing.T) {
	t.Run("only happens for existing deployments", func(t *testing.T) {
		copier := exectest.NewFakeCopier()
		p := newTestProvisioner(exectest.NewFakeRunner(), copier, testPaths(t, true))

		result, err := p.Provision(context.Background(), Options{
			Layout: simpleLayout(t, "192.168.33.10"),
		})
		require.NoError(t, err)
		assert.False(t, result.BackedUp)
		assert.Empty(t, copier.Calls)
	})

	t.Run("failure aborts before any machine is touched", func(t *testing.T) {
		runner := exectest.NewFakeRunner()
		copier := exectest.NewFakeCopier()
		copier.Err = fmt.Errorf("disk full")
		p := newTestProvisioner(runner, copier, testPaths(t, true))

		_, err := p.Provision(context.Background(), Options{
			Layout:        simpleLayout(t, "192.168.33.10"),
			AddToExisting: true,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Couldn't back up your existing key")
		assert.Zero(t, runner.CountMatching("^(ssh-copy-id|scp) "))
	})
}

func TestProvisionSingleMachine(t *testing.T) {
	runner := exectest.NewFakeRunner()
	copier := exectest.NewFakeCopier()
	paths := testPaths(t, true)
	p := newTestProvisioner(runner, copier, paths)

	result, err := p.Provision(context.Background(), Options{
		Layout:        simpleLayout(t, "1.2.3.4"),
		AddToExisting: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"which ssh-keygen",
		"which ssh-copy-id",
		fmt.Sprintf("ssh-copy-id -i %s root@1.2.3.4", paths.Private),
		fmt.Sprintf("scp -i %s %s root@1.2.3.4:.ssh/id_rsa", paths.Private, paths.Private),
		fmt.Sprintf("scp -i %s %s root@1.2.3.4:.ssh/id_rsa.pub", paths.Private, paths.Public),
	}, runner.CallLines())

	require.Len(t, copier.Calls, 1)
	assert.Equal(t, []string{"1.2.3.4"}, result.Distributed)
}

func TestProvisionStopsAtFirstFailure(t *testing.T) {
	t.Run("unreachable machine", func(t *testing.T) {
		runner := exectest.NewFakeRunner().
			Fail(`^ssh-copy-id .* root@192\.168\.33\.11$`, 255, "Connection refused")
		p := newTestProvisioner(runner, exectest.NewFakeCopier(), testPaths(t, true))

		_, err := p.Provision(context.Background(), Options{
			Layout: simpleLayout(t, "192.168.33.10", "192.168.33.11", "192.168.33.12"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Couldn't authorize the key on root@192.168.33.11")
		assert.Contains(t, err.Error(), "Connection refused")
		assert.True(t, errors.IsCode(err, errors.ErrSSH))

		// The first machine got its full sequence, the failed one stops
		// after ssh-copy-id, the third is never reached.
		assert.Equal(t, 3, runner.CountMatching(`root@192\.168\.33\.10`))
		assert.Equal(t, 1, runner.CountMatching(`root@192\.168\.33\.11`))
		assert.Zero(t, runner.CountMatching(`root@192\.168\.33\.12`))
	})

	t.Run("private key copy failure", func(t *testing.T) {
		runner := exectest.NewFakeRunner().
			Fail(`^scp .*:\.ssh/id_rsa$`, 1, "scp: permission denied")
		p := newTestProvisioner(runner, exectest.NewFakeCopier(), testPaths(t, true))

		_, err := p.Provision(context.Background(), Options{
			Layout: simpleLayout(t, "192.168.33.10"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Couldn't copy the private key to root@192.168.33.10")
		assert.Zero(t, runner.CountMatching(`id_rsa\.pub`))
	})

	t.Run("runner errors pass through untouched", func(t *testing.T) {
		hard := errors.New(errors.ErrExec, "Command interrupted", "")
		runner := exectest.NewFakeRunner().
			Respond(`^scp `, exectest.Response{Err: hard})
		p := newTestProvisioner(runner, exectest.NewFakeCopier(), testPaths(t, true))

		_, err := p.Provision(context.Background(), Options{
			Layout: simpleLayout(t, "192.168.33.10"),
		})
		require.ErrorIs(t, err, hard)
	})
}

func TestProvisionReportsEachHost(t *testing.T) {
	type visit struct {
		addr         string
		index, total int
	}

	t.Run("every machine in layout order", func(t *testing.T) {
		runner := exectest.NewFakeRunner()
		p := newTestProvisioner(runner, exectest.NewFakeCopier(), testPaths(t, true))

		var visits []visit
		result, err := p.Provision(context.Background(), Options{
			Layout: simpleLayout(t, "192.168.33.10", "192.168.33.11", "192.168.33.12"),
			OnHost: func(addr string, index, total int) {
				visits = append(visits, visit{addr, index, total})
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []visit{
			{"192.168.33.10", 0, 3},
			{"192.168.33.11", 1, 3},
			{"192.168.33.12", 2, 3},
		}, visits)
		assert.Equal(t, []string{"192.168.33.10", "192.168.33.11", "192.168.33.12"}, result.Distributed)
	})

	t.Run("called before the machine's commands run", func(t *testing.T) {
		runner := exectest.NewFakeRunner().
			Fail(`^ssh-copy-id .* root@192\.168\.33\.11$`, 255, "Connection refused")
		p := newTestProvisioner(runner, exectest.NewFakeCopier(), testPaths(t, true))

		var visited []string
		_, err := p.Provision(context.Background(), Options{
			Layout: simpleLayout(t, "192.168.33.10", "192.168.33.11", "192.168.33.12"),
			OnHost: func(addr string, index, total int) {
				visited = append(visited, addr)
			},
		})
		require.Error(t, err)

		// The failing machine was announced, the one after it never was.
		assert.Equal(t, []string{"192.168.33.10", "192.168.33.11"}, visited)
	})
}

func TestProvisionWithoutLayout(t *testing.T) {
	runner := exectest.NewFakeRunner()
	paths := testPaths(t, true)
	p := newTestProvisioner(runner, exectest.NewFakeCopier(), paths)

	result, err := p.Provision(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Distributed)
	assert.Equal(t, paths.Private, result.KeyPath)
	assert.Equal(t, []string{"which ssh-keygen", "which ssh-copy-id"}, runner.CallLines())
}

func TestDefaultPaths(t *testing.T) {
	paths, err := DefaultPaths()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".appscale", "appscale"), paths.Private)
	assert.Equal(t, paths.Private+".pub", paths.Public)
	assert.Equal(t, paths.Private+".key", paths.Backup)
}
