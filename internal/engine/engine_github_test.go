package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gh "branchwarden/internal/github"
	"branchwarden/internal/model"
)

// fakeGitHub serves the REST and GraphQL routes a cleanup pass touches for
// acme/app. dependabot/gone no longer exists and deleting dependabot/blocked
// is refused by a repository rule.
type fakeGitHub struct {
	mu      sync.Mutex
	deletes []string
	issues  int
}

func (f *fakeGitHub) handler() http.Handler {
	mergedAt := testNow.Add(-10 * 24 * time.Hour).Format(time.RFC3339)
	node := func(n int, head, sha string) map[string]any {
		return map[string]any{
			"number":            n,
			"headRefName":       head,
			"headRefOid":        sha,
			"mergedAt":          mergedAt,
			"isCrossRepository": false,
			"author":            map[string]string{"login": "dependabot[bot]"},
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/app", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]any{
			"default_branch":         "main",
			"delete_branch_on_merge": true,
			"permissions":            map[string]bool{"push": true},
		})
	})
	mux.HandleFunc("POST /graphql", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{"repository": map[string]any{"pullRequests": map[string]any{
				"nodes": []any{
					node(1, "dependabot/gone", "sha-gone"),
					node(2, "dependabot/blocked", "sha-blocked"),
				},
				"pageInfo": map[string]any{"hasNextPage": false, "endCursor": "c1"},
			}}},
		})
	})
	mux.HandleFunc("GET /repos/acme/app/branches/{branch...}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("branch") != "dependabot/blocked" {
			writeTestJSON(w, http.StatusNotFound, map[string]string{"message": "Branch not found"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{
			"name":      "dependabot/blocked",
			"protected": false,
			"commit":    map[string]string{"sha": "sha-blocked"},
		})
	})
	mux.HandleFunc("GET /repos/acme/app/compare/{basehead...}", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]any{"status": "behind"})
	})
	mux.HandleFunc("POST /repos/acme/app/git/tags", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusCreated, map[string]string{"sha": "tag-object"})
	})
	mux.HandleFunc("POST /repos/acme/app/git/refs", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusCreated, map[string]string{"ref": "refs/tags/x"})
	})
	mux.HandleFunc("DELETE /repos/acme/app/git/refs/{ref...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deletes = append(f.deletes, r.PathValue("ref"))
		f.mu.Unlock()
		writeTestJSON(w, http.StatusForbidden, map[string]string{
			"message": "Cannot delete this branch: protected by a repository rule",
		})
	})
	mux.HandleFunc("GET /repos/acme/app/issues", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, []any{})
	})
	mux.HandleFunc("POST /repos/acme/app/issues", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.issues++
		f.mu.Unlock()
		writeTestJSON(w, http.StatusCreated, map[string]any{
			"number":   1,
			"html_url": "https://github.com/acme/app/issues/1",
		})
	})
	return mux
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestEngine_Run_AgainstGitHubClient(t *testing.T) {
	fake := &fakeGitHub{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	client, err := gh.NewClient(ctx, gh.WithBaseURL(srv.URL+"/"), gh.WithToken("test-token"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	e := newTestEngine(t, client, testConfig(t, "app"))
	if code := e.Run(ctx); code != ExitOK {
		t.Fatalf("exit code = %d, want %d (repo errors %+v)", code, ExitOK, e.Reporter().RepositoryErrors())
	}

	byBranch := map[string]model.CleanupRecord{}
	for _, rec := range e.Reporter().Records() {
		byBranch[rec.Branch] = rec
	}
	if len(byBranch) != 2 {
		t.Fatalf("expected 2 records, got %+v", byBranch)
	}
	if got := byBranch["dependabot/gone"]; got.Action != model.ActionAlreadyDeleted {
		t.Fatalf("dependabot/gone: action = %q, want already_deleted (error %q)", got.Action, got.Error)
	}
	if got := byBranch["dependabot/blocked"]; got.Action != model.ActionProtectedRuleBlocked {
		t.Fatalf("dependabot/blocked: action = %q, want protected_rule_blocked (error %q)", got.Action, got.Error)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.deletes) != 1 || fake.deletes[0] != "heads/dependabot/blocked" {
		t.Fatalf("expected one delete of the blocked branch, got %v", fake.deletes)
	}
	if fake.issues != 1 {
		t.Fatalf("expected exactly one issue, got %d", fake.issues)
	}
}
