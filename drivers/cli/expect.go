package cli

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	expect "github.com/google/goexpect"
	"golang.org/x/crypto/ssh"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nanoncore/nano-ctlplane/types"
	"github.com/nanoncore/nano-ctlplane/vendors/common"
)

// PromptPattern matches the RouterOS console prompt: [admin@MikroTik] >
var PromptPattern = regexp.MustCompile(`\[[^\]]+@[^\]]+\] >\s*$`)

// licensePattern matches the first-login license question
var licensePattern = regexp.MustCompile(`\[Y/n\]:?\s*$`)

// loginPattern matches either the prompt or the license question
var loginPattern = regexp.MustCompile(PromptPattern.String() + `|` + licensePattern.String())

// ExpectSession drives an interactive RouterOS console over SSH
type ExpectSession struct {
	expecter *expect.GExpect
	promptRE *regexp.Regexp
	timeout  time.Duration
}

// ExpectSessionConfig holds configuration for creating an expect session
type ExpectSessionConfig struct {
	SSHClient    *ssh.Client
	Timeout      time.Duration
	CustomPrompt *regexp.Regexp
}

// NewExpectSession spawns a shell and waits for the first prompt
func NewExpectSession(cfg ExpectSessionConfig) (*ExpectSession, error) {
	if cfg.SSHClient == nil {
		return nil, fmt.Errorf("SSH client is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	promptRE := cfg.CustomPrompt
	if promptRE == nil {
		promptRE = PromptPattern
	}

	exp, _, err := expect.SpawnSSH(cfg.SSHClient, cfg.Timeout,
		expect.Verbose(false),
		expect.CheckDuration(100*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: spawn ssh shell: %v", types.ErrConnection, err)
	}

	s := &ExpectSession{expecter: exp, promptRE: promptRE, timeout: cfg.Timeout}

	out, _, err := exp.Expect(loginPattern, cfg.Timeout)
	if err != nil {
		exp.Close()
		return nil, fmt.Errorf("%w: no console prompt: %v", types.ErrConnection, err)
	}
	if licensePattern.MatchString(strings.TrimSpace(common.StripANSI(out))) {
		if err := exp.Send("n\n"); err != nil {
			exp.Close()
			return nil, fmt.Errorf("%w: answer license prompt: %v", types.ErrConnection, err)
		}
		if _, _, err := exp.Expect(promptRE, cfg.Timeout); err != nil {
			exp.Close()
			return nil, fmt.Errorf("%w: no console prompt: %v", types.ErrConnection, err)
		}
	}
	return s, nil
}

// Execute sends one console line and returns its output without the echo
// and the trailing prompt.
func (s *ExpectSession) Execute(line string) (string, error) {
	if s.expecter == nil {
		return "", fmt.Errorf("%w: expect session not initialized", types.ErrConnection)
	}
	if err := s.expecter.Send(line + "\r\n"); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	output, _, err := s.expecter.Expect(s.promptRE, s.timeout)
	if err != nil {
		if status.Code(err) == codes.DeadlineExceeded {
			return output, fmt.Errorf("%w: no prompt within %s after %q", types.ErrTimeout, s.timeout, line)
		}
		return output, fmt.Errorf("wait for prompt: %w", err)
	}
	return cleanOutput(output, line, s.promptRE), nil
}

// cleanOutput removes ANSI codes, the command echo and prompt lines
func cleanOutput(output, line string, promptRE *regexp.Regexp) string {
	lines := strings.Split(strings.ReplaceAll(common.StripANSI(output), "\r", ""), "\n")
	cleaned := make([]string, 0, len(lines))
	for i, l := range lines {
		if i == 0 && strings.Contains(l, line) {
			continue
		}
		if promptRE.MatchString(strings.TrimSpace(l)) {
			continue
		}
		cleaned = append(cleaned, l)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// Close closes the expect session
func (s *ExpectSession) Close() error {
	if s.expecter != nil {
		return s.expecter.Close()
	}
	return nil
}
