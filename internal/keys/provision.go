package keys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/exec"
	"github.com/altoplano/appscale-tools/internal/layout"
	"github.com/altoplano/appscale-tools/internal/logger"
)

// Options controls one provisioning run.
type Options struct {
	// Layout lists the machines that should trust the keypair. A nil
	// layout provisions the local keypair without touching any machine.
	Layout *layout.Layout

	// AddToExisting marks the machines as part of a running deployment,
	// which backs up the current private key before anything else
	// happens.
	AddToExisting bool

	// Auto means no human is around to answer SSH password prompts, so
	// the expect tool must be available to script them.
	Auto bool

	// OnHost, when set, is called as distribution reaches each machine,
	// before its commands run. The CLI points its spinner at this.
	OnHost func(addr string, index, total int)
}

// Result reports what a provisioning run did.
type Result struct {
	// KeyPath is the private key that was installed.
	KeyPath string
	// Distributed lists the addresses the key was installed on, in the
	// order they were visited.
	Distributed []string
	// Generated is true when a fresh keypair was created.
	Generated bool
	// BackedUp is true when the previous private key was saved aside.
	BackedUp bool
}

// Provisioner installs the deployment keypair locally and on the
// layout's machines. All process and file work goes through the
// injected runner and copier.
type Provisioner struct {
	runner exec.Runner
	copier exec.FileCopier
	paths  Paths
	log    logger.Logger
}

// NewProvisioner creates a provisioner for the given keypair paths.
func NewProvisioner(runner exec.Runner, copier exec.FileCopier, paths Paths) *Provisioner {
	return NewProvisionerWithLogger(runner, copier, paths, logger.NewEnvLogger("[keys]"))
}

// NewProvisionerWithLogger creates a provisioner with a custom logger.
func NewProvisionerWithLogger(runner exec.Runner, copier exec.FileCopier, paths Paths, log logger.Logger) *Provisioner {
	return &Provisioner{runner: runner, copier: copier, paths: paths, log: log}
}

// Provision runs the keypair flow: check the required tools, back up or
// generate the local keypair, then install it on every machine in the
// layout. It stops at the first failure and leaves already-provisioned
// machines as they are.
func (p *Provisioner) Provision(ctx context.Context, opts Options) (*Result, error) {
	if err := p.checkTools(ctx, opts.Auto); err != nil {
		return nil, err
	}

	result := &Result{KeyPath: p.paths.Private}

	if fileExists(p.paths.Private) {
		if opts.AddToExisting {
			p.log.Debug("backing up %s to %s", p.paths.Private, p.paths.Backup)
			if err := p.copier.Copy(p.paths.Private, p.paths.Backup); err != nil {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Couldn't back up your existing key",
					"Check the permissions on "+filepath.Dir(p.paths.Backup)+".")
			}
			result.BackedUp = true
		}
	} else {
		if err := p.generate(ctx); err != nil {
			return nil, err
		}
		result.Generated = true
	}

	if opts.Layout != nil {
		addrs := opts.Layout.Addresses()
		for i, addr := range addrs {
			if opts.OnHost != nil {
				opts.OnHost(addr, i, len(addrs))
			}
			if err := p.install(ctx, addr); err != nil {
				return nil, err
			}
			result.Distributed = append(result.Distributed, addr)
		}
	}

	return result, nil
}

// requiredTools lists the commands provisioning shells out to. expect
// is checked up front when running unattended, but only the automation
// scripts themselves ever invoke it.
func requiredTools(auto bool) []string {
	tools := []string{"ssh-keygen", "ssh-copy-id"}
	if auto {
		tools = append(tools, "expect")
	}
	return tools
}

func (p *Provisioner) checkTools(ctx context.Context, auto bool) error {
	for _, tool := range requiredTools(auto) {
		res, err := p.runner.Run(ctx, "which", tool)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return errors.NewMissingTool(tool)
		}
	}
	return nil
}

// generate creates a fresh RSA keypair with no passphrase.
func (p *Provisioner) generate(ctx context.Context) error {
	dir := filepath.Dir(p.paths.Private)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't create "+dir,
			"Check the permissions on your home directory.")
	}

	p.log.Debug("generating keypair at %s", p.paths.Private)
	res, err := p.runner.Run(ctx, "ssh-keygen",
		"-t", "rsa", "-N", "", "-f", p.paths.Private, "-C", KeyName)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return commandError(errors.ErrExec, res,
			"Couldn't generate an SSH keypair",
			"Run ssh-keygen -t rsa by hand to see what's wrong.")
	}
	return nil
}

// install pushes the keypair onto one machine: the public key into its
// authorized keys, then both key files into root's .ssh directory so
// the machine can reach the rest of the cluster itself.
func (p *Provisioner) install(ctx context.Context, addr string) error {
	target := "root@" + addr
	p.log.Debug("installing key on %s", target)

	res, err := p.runner.Run(ctx, "ssh-copy-id", "-i", p.paths.Private, target)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return sshError(res, "Couldn't authorize the key on "+target)
	}

	res, err = p.runner.Run(ctx, "scp", "-i", p.paths.Private,
		p.paths.Private, target+":.ssh/id_rsa")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return sshError(res, "Couldn't copy the private key to "+target)
	}

	res, err = p.runner.Run(ctx, "scp", "-i", p.paths.Private,
		p.paths.Public, target+":.ssh/id_rsa.pub")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return sshError(res, "Couldn't copy the public key to "+target)
	}

	return nil
}

func sshError(res exec.Result, message string) error {
	return commandError(errors.ErrSSH, res, message,
		"Make sure the machine is up and allows root SSH logins.")
}

// commandError turns a non-zero exit into a coded error, folding any
// stderr output in as the cause.
func commandError(code string, res exec.Result, message, suggestion string) error {
	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		return errors.WrapWithCode(fmt.Errorf("%s", stderr), code, message, suggestion)
	}
	return errors.New(code, message, suggestion)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
