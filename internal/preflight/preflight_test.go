package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsmith/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func instagramConfig(baseURL string) config.Instagram {
	return config.Instagram{AccessToken: "good-token", UserID: "42", BaseURL: baseURL, APIVersion: "v19.0"}
}

func TestCheckInstagram_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v19.0/42" || r.URL.Query().Get("access_token") != "good-token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42","username":"dailystoic"}`))
	}))
	defer srv.Close()

	result := CheckInstagram(context.Background(), instagramConfig(srv.URL))
	if !result.Passed || result.Detail != "account @dailystoic" {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckInstagram_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckInstagram(context.Background(), instagramConfig(srv.URL))
	if result.Passed || !strings.HasPrefix(result.Detail, "credentials rejected") {
		t.Fatalf("expected credential failure, got %+v", result)
	}
}

func TestCheckInstagram_MissingCredentials(t *testing.T) {
	cfg := instagramConfig("http://127.0.0.1:1")
	cfg.AccessToken = ""
	if result := CheckInstagram(context.Background(), cfg); result.Passed || result.Detail != "missing access token" {
		t.Fatalf("unexpected result %+v", result)
	}
	cfg = instagramConfig("http://127.0.0.1:1")
	cfg.UserID = ""
	if result := CheckInstagram(context.Background(), cfg); result.Passed || result.Detail != "missing user id" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "Content LLM", config.LLMConfig{})
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, false); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_OfflineDryRun(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.AssetsDir = base
	cfg.Paths.OutputDir = base
	cfg.Paths.WorkDir = base
	cfg.State.Path = filepath.Join(base, "state.db")
	cfg.Publish.Mode = config.PublishModeDryRun
	cfg.Fal.APIKey = "key"

	results := RunAll(context.Background(), &cfg, false)
	if len(results) != 5 {
		t.Fatalf("expected 4 directory checks and fal, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if !r.Passed {
			t.Fatalf("expected %s to pass: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_InstagramWithoutCredentials(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.AssetsDir = base
	cfg.Paths.OutputDir = base
	cfg.Paths.WorkDir = base
	cfg.State.Path = filepath.Join(base, "state.db")
	cfg.Publish.Mode = config.PublishModeInstagram
	cfg.Animation.Enabled = false
	cfg.ReferencePerson.Enabled = false

	results := RunAll(context.Background(), &cfg, false)
	failed := map[string]bool{}
	for _, r := range results {
		if !r.Passed {
			failed[r.Name] = true
		}
	}
	if !failed["Instagram"] || !failed["Public media directory"] {
		t.Fatalf("expected instagram and public dir failures, got %+v", results)
	}
	if _, ok := failed["fal.ai"]; ok {
		t.Fatal("fal check should be skipped when no variant needs it")
	}
}
