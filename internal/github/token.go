package github

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

type AuthTokenSource string

const (
	AuthTokenSourceExplicit AuthTokenSource = "explicit"
	AuthTokenSourceEnv      AuthTokenSource = "env:GITHUB_TOKEN"
	AuthTokenSourceEnvGH    AuthTokenSource = "env:GH_TOKEN"
	AuthTokenSourceGitHubCL AuthTokenSource = "gh"
)

// tokenEnvVars are consulted in order after an explicit token.
var tokenEnvVars = []struct {
	name   string
	source AuthTokenSource
}{
	{"GITHUB_TOKEN", AuthTokenSourceEnv},
	{"GH_TOKEN", AuthTokenSourceEnvGH},
}

// ResolveAuthToken picks the access token for the run.
//
// Order:
//  1. provided (from config or flag)
//  2. GITHUB_TOKEN, then GH_TOKEN
//  3. `gh auth token -h github.com`
//
// An empty token with a nil error means nothing was found. The token itself
// is never logged.
func ResolveAuthToken(ctx context.Context, provided string) (token string, source AuthTokenSource, err error) {
	if tok := strings.TrimSpace(provided); tok != "" {
		return tok, AuthTokenSourceExplicit, nil
	}

	for _, ev := range tokenEnvVars {
		if v := strings.TrimSpace(os.Getenv(ev.name)); v != "" {
			return v, ev.source, nil
		}
	}

	tok, ok, err := tokenFromGitHubCLI(ctx)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return "", "", nil
	}
	return tok, AuthTokenSourceGitHubCL, nil
}

func tokenFromGitHubCLI(ctx context.Context) (string, bool, error) {
	if _, err := exec.LookPath("gh"); err != nil {
		return "", false, nil
	}

	// A wedged credential helper must not stall the whole run.
	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, "gh", "auth", "token", "-h", "github.com")
	env := make([]string, 0, len(os.Environ())+1)
	for _, entry := range os.Environ() {
		if strings.HasPrefix(entry, "GH_PAGER=") {
			continue
		}
		env = append(env, entry)
	}
	cmd.Env = append(env, "GH_PAGER=cat")

	out, runErr := cmd.Output()
	if runErr != nil {
		if cmdCtx.Err() != nil {
			return "", false, cmdCtx.Err()
		}
		// Not logged in, or gh misconfigured. gh output is discarded.
		return "", false, nil
	}

	tok := strings.TrimSpace(string(out))
	if tok == "" {
		return "", false, nil
	}
	if strings.ContainsAny(tok, " \t\n\r") {
		return "", false, errors.New("invalid token returned by gh: contains whitespace")
	}
	return tok, true, nil
}
