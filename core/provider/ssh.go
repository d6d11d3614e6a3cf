package provider

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/furkankose/katmer/core/errs"
	"github.com/furkankose/katmer/core/invariant"
	"github.com/furkankose/katmer/core/types"
)

// SSHProvider runs commands over golang.org/x/crypto/ssh, grounded on
// the teacher's SSHSession (client dial, signer/keyfile/agent auth
// fallback chain).
type SSHProvider struct {
	target types.Target
	logger hclog.Logger

	mu          sync.Mutex
	client      *ssh.Client
	initialized bool
	connected   bool
	osInfo      types.OsInfo
	shell       string
	variables   map[string]any
}

func NewSSHProvider(target types.Target, logger hclog.Logger) *SSHProvider {
	invariant.Precondition(target.Connection == types.ConnectionSSH, "NewSSHProvider requires an ssh target")
	return &SSHProvider{
		target:    target,
		logger:    childLogger(logger, target),
		variables: cloneAnyMap(target.Variables),
	}
}

func (p *SSHProvider) Type() types.ConnectionKind { return types.ConnectionSSH }
func (p *SSHProvider) Target() types.Target       { return p.target }
func (p *SSHProvider) Variables() map[string]any  { return p.variables }
func (p *SSHProvider) Logger() hclog.Logger        { return p.logger }

func (p *SSHProvider) Environment() map[string]string {
	return cloneStringMap(p.target.Environment)
}

// Check validates that the descriptor carries enough to authenticate:
// hostname and username, plus either a password or a private key.
func (p *SSHProvider) Check() error {
	t := p.target
	if t.Hostname == "" || t.Username == "" {
		return &errs.ConfigError{Detail: fmt.Sprintf("ssh target %q requires hostname and username", t.Name)}
	}
	if !t.Password.IsSet() && t.PrivateKey == "" {
		return &errs.ConfigError{Detail: fmt.Sprintf("ssh target %q requires password or private_key", t.Name)}
	}
	return nil
}

func (p *SSHProvider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized = true
	return nil
}

func (p *SSHProvider) Connect(ctx context.Context) error {
	t := p.target
	port := t.Port
	if port == 0 {
		port = 22
	}

	var auth []ssh.AuthMethod
	if t.PrivateKey != "" {
		if signer, err := parsePrivateKey(t.PrivateKey, t.PrivateKeyPassword.Reveal()); err == nil {
			auth = append(auth, ssh.PublicKeys(signer))
		}
	}
	if t.Password.IsSet() {
		auth = append(auth, ssh.Password(t.Password.Reveal()))
	}
	if len(auth) == 0 {
		if a := sshAgentAuth(); a != nil {
			auth = append(auth, a)
		}
	}

	config := &ssh.ClientConfig{
		User:            t.Username,
		Auth:            auth,
		HostKeyCallback: p.hostKeyCallback(),
		Timeout:         15 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", t.Hostname, port)
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &errs.ConnectionError{Host: t.Hostname, Cause: err}
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return &errs.ConnectionError{Host: t.Hostname, Cause: err}
	}
	client := ssh.NewClient(clientConn, chans, reqs)

	p.mu.Lock()
	p.client = client
	p.connected = true
	p.mu.Unlock()
	return nil
}

func (p *SSHProvider) EnsureReady(ctx context.Context) error {
	p.mu.Lock()
	initialized := p.initialized
	connected := p.connected
	p.mu.Unlock()

	if !initialized {
		if err := p.Check(); err != nil {
			return err
		}
		if err := p.Initialize(); err != nil {
			return err
		}
	}
	if !connected {
		if err := p.Connect(ctx); err != nil {
			return err
		}
		info := probeOsInfo(ctx, p.rawExec)
		shell := decideDefaultShell(info.Family, p.rawExec)
		p.mu.Lock()
		p.osInfo = info
		p.shell = shell
		p.mu.Unlock()
	}
	return nil
}

func (p *SSHProvider) GetOsInfo() types.OsInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.osInfo
}

func (p *SSHProvider) DefaultShell() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shell
}

func (p *SSHProvider) Executor(opts ExecutorOptions) Executor {
	return func(ctx context.Context, command string, perCall ExecOptions) (ExecResult, error) {
		shell := opts.Shell
		if perCall.Shell != "" {
			shell = perCall.Shell
		}
		if shell == "" {
			shell = p.DefaultShell()
		}
		cwd := opts.Cwd
		if perCall.Cwd != "" {
			cwd = perCall.Cwd
		}
		env := mergeEnv(p.Environment(), opts.Env, perCall.Env)
		prepared := shellWrap(command, cwd, shell, opts.RewriteCommand)

		handle, err := p.spawn(prepared, env)
		if err != nil {
			res := ExecResult{Command: command, Code: 1, Stderr: err.Error()}
			return res, execFailed(res)
		}
		res := runExec(ctx, command, perCall.Timeout, opts.Become, perCall.OnStdout, perCall.OnStderr, handle)
		if res.Code != 0 {
			return res, execFailed(res)
		}
		return res, nil
	}
}

// hostKeyCallback returns a verifying ssh/knownhosts.New callback when
// the target configures a known_hosts path, falling back to
// ssh.InsecureIgnoreHostKey (with a logged warning) when no path is
// configured or the file cannot be loaded. Grounded on the teacher's
// getHostKeyCallback/loadKnownHosts (ssh_session.go), generalized to
// use the x/crypto/ssh/knownhosts package instead of hand-parsing the
// file.
func (p *SSHProvider) hostKeyCallback() ssh.HostKeyCallback {
	path := p.target.KnownHostsPath
	if path == "" {
		p.logger.Warn("no known_hosts_path configured, skipping host key verification", "target", p.target.Name)
		return ssh.InsecureIgnoreHostKey()
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		p.logger.Warn("failed to load known_hosts, skipping host key verification", "target", p.target.Name, "path", path, "error", err)
		return ssh.InsecureIgnoreHostKey()
	}
	return callback
}

func (p *SSHProvider) spawn(prepared string, env map[string]string) (processHandle, error) {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return processHandle{}, fmt.Errorf("ssh client not connected")
	}

	session, err := client.NewSession()
	if err != nil {
		return processHandle{}, fmt.Errorf("failed to create ssh session: %w", err)
	}
	for k, v := range env {
		_ = session.Setenv(k, v)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return processHandle{}, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return processHandle{}, err
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		return processHandle{}, err
	}
	if err := session.Start(prepared); err != nil {
		session.Close()
		return processHandle{}, err
	}

	return processHandle{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Wait: func() (int, error) {
			defer session.Close()
			err := session.Wait()
			if err == nil {
				return 0, nil
			}
			if exitErr, ok := err.(*ssh.ExitError); ok {
				return exitErr.ExitStatus(), nil
			}
			return -1, err
		},
		Kill: func() {
			_ = session.Signal(ssh.SIGKILL)
			session.Close()
		},
	}, nil
}

func (p *SSHProvider) rawExec(ctx context.Context, shell, script string) (string, error) {
	handle, err := p.spawn(script, nil)
	if err != nil {
		return "", err
	}
	res := runExec(ctx, script, 10_000, nil, nil, nil, handle)
	return res.Stdout, nil
}

func (p *SSHProvider) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		err := p.client.Close()
		p.client = nil
		p.connected = false
		return err
	}
	return nil
}

func (p *SSHProvider) Cleanup() error {
	return nil
}

func (p *SSHProvider) SafeShutdown() {
	if err := p.Destroy(); err != nil {
		p.logger.Warn("destroy failed", "error", err)
	}
	if err := p.Cleanup(); err != nil {
		p.logger.Warn("cleanup failed", "error", err)
	}
}

func parsePrivateKey(keyOrPath, passphrase string) (ssh.Signer, error) {
	data := []byte(keyOrPath)
	if !strings.Contains(keyOrPath, "PRIVATE KEY") {
		raw, err := os.ReadFile(keyOrPath)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	}
	return ssh.ParsePrivateKey(data)
}

func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil
	}
	client := agent.NewClient(conn)
	return ssh.PublicKeysCallback(client.Signers)
}
