package repocache

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Fetcher is the transport that materializes and refreshes repositories.
type Fetcher interface {
	// Clone fetches id into dest, which must not exist yet.
	Clone(ctx context.Context, id ID, dest string) error
	// Pull refreshes the checkout at dir. On failure dir must keep its
	// previous content.
	Pull(ctx context.Context, dir string) error
	// Revision returns a short identifier of the checked-out content.
	Revision(ctx context.Context, dir string) (string, error)
}

type gitExecFunc func(ctx context.Context, dir string, args ...string) ([]byte, error)

// GitFetcher shells out to git. Clones are shallow.
type GitFetcher struct {
	Host        string
	Timeout     time.Duration
	SSHFallback bool
	// Remotes lists clone URLs to try in order. Defaults to HTTPS, then SSH
	// when SSHFallback is set.
	Remotes func(id ID) []string

	execGit gitExecFunc
}

func NewGitFetcher(host string, timeout time.Duration, sshFallback bool) *GitFetcher {
	if host == "" {
		host = "github.com"
	}
	return &GitFetcher{Host: host, Timeout: timeout, SSHFallback: sshFallback, execGit: defaultGitExec}
}

func defaultGitExec(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

func (g *GitFetcher) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	execGit := g.execGit
	if execGit == nil {
		execGit = defaultGitExec
	}
	return execGit(ctx, dir, args...)
}

func (g *GitFetcher) remotes(id ID) []string {
	if g.Remotes != nil {
		return g.Remotes(id)
	}
	urls := []string{fmt.Sprintf("https://%s/%s.git", g.Host, id)}
	if g.SSHFallback {
		urls = append(urls, fmt.Sprintf("git@%s:%s.git", g.Host, id))
	}
	return urls
}

func (g *GitFetcher) Clone(ctx context.Context, id ID, dest string) error {
	var errs []string
	for _, url := range g.remotes(id) {
		_, err := g.run(ctx, "", "clone", "--depth", "1", url, dest)
		if err == nil {
			return nil
		}
		errs = append(errs, err.Error())
		_ = os.RemoveAll(dest)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return fmt.Errorf("no remotes for %s", id)
	}
	return fmt.Errorf("clone %s: %s", id, strings.Join(errs, "; "))
}

// Pull fetches the remote HEAD and resets the worktree to it. A failed
// fetch leaves the worktree untouched.
func (g *GitFetcher) Pull(ctx context.Context, dir string) error {
	if _, err := g.run(ctx, dir, "fetch", "--depth", "1", "origin", "HEAD"); err != nil {
		return err
	}
	if _, err := g.run(ctx, dir, "reset", "--hard", "FETCH_HEAD"); err != nil {
		return err
	}
	return nil
}

func (g *GitFetcher) Revision(ctx context.Context, dir string) (string, error) {
	out, err := g.run(ctx, dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
