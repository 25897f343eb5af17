package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/repositories"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
	tu "github.com/Boomlive-ai/analytics.boomlive.in/internal/testing"
)

// newApp builds the root command the way main does, so flags and the config hook are exercised.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "insights",
		Flags:    rootFlags(),
		Before:   r.before,
		Commands: r.register(),
	}
}

// writeConfig saves a config pointing at a database in a temp dir and returns its path.
func writeConfig(t *testing.T, mutate func(*shared.Config)) (string, *shared.Config) {
	t.Helper()
	dir := t.TempDir()

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "insights.db")
	config.Session.Secret = "test-secret"
	if mutate != nil {
		mutate(config)
	}

	path := filepath.Join(dir, "config.toml")
	if err := shared.SaveConfig(path, config); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	return path, config
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	return newApp(r).Run(context.Background(), append([]string{"insights"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.openBrowser == nil || runner.now == nil {
				t.Error("expected browser opener and clock to be set")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("formats output", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("got %q", output.String())
			}
		})

		t.Run("writePlainln surrounds with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			runner.writePlainln("step %d", 1)
			if output.String() != "\nstep 1\n" {
				t.Errorf("got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			if err := runner.writePlain("x"); err == nil {
				t.Error("expected error from failing writer")
			}
			if err := runner.writePlainln("x"); err == nil {
				t.Error("expected error from failing writer")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"serve", "setup", "providers", "login", "sessions"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, name := range want {
			if commands[i].Name != name {
				t.Errorf("command %d: expected %s, got %s", i, name, commands[i].Name)
			}
		}
	})

	t.Run("before", func(t *testing.T) {
		t.Run("loads config file", func(t *testing.T) {
			path, _ := writeConfig(t, func(c *shared.Config) { c.Server.Port = 9123 })
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			if err := run(t, runner, "--config", path, "providers"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.Server.Port != 9123 {
				t.Errorf("expected port from config file, got %d", runner.config.Server.Port)
			}
		})

		t.Run("falls back to defaults when config is missing", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			missing := filepath.Join(t.TempDir(), "nope.toml")

			if err := run(t, runner, "--config", missing, "providers"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.Server.Port != shared.DefaultConfig().Server.Port {
				t.Errorf("expected default port, got %d", runner.config.Server.Port)
			}
		})

		t.Run("rejects malformed config", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			os.WriteFile(path, []byte("[server\nport = "), 0o600)
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			if err := run(t, runner, "--config", path, "providers"); err == nil {
				t.Fatal("expected parse error")
			}
		})

		t.Run("applies env file", func(t *testing.T) {
			path, _ := writeConfig(t, nil)
			envFile := filepath.Join(t.TempDir(), ".env")
			os.WriteFile(envFile, []byte("FRONTEND_URL=https://insights.example.com\n"), 0o600)
			t.Cleanup(func() { os.Unsetenv("FRONTEND_URL") })

			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if err := run(t, runner, "--config", path, "--env-file", envFile, "providers"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := runner.config.Server.FrontendURL; got != "https://insights.example.com" {
				t.Errorf("expected frontend url from env file, got %q", got)
			}
		})
	})
}

func TestCommands(t *testing.T) {
	t.Run("providers", func(t *testing.T) {
		t.Run("renders a table without secrets", func(t *testing.T) {
			path, _ := writeConfig(t, func(c *shared.Config) {
				c.Credentials.Google.ClientSecret = "super-secret-value"
				c.Credentials.Facebook.Enabled = false
			})
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := run(t, runner, "--config", path, "providers"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			for _, name := range []string{"Google", "Spotify", "Facebook"} {
				if !strings.Contains(result, name) {
					t.Errorf("expected %s in output:\n%s", name, result)
				}
			}
			if strings.Contains(result, "super-secret-value") {
				t.Error("client secret leaked into output")
			}
		})

		t.Run("json", func(t *testing.T) {
			path, _ := writeConfig(t, func(c *shared.Config) { c.Credentials.Spotify.Enabled = false })
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := run(t, runner, "--config", path, "providers", "--json"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			var entries []struct {
				Provider string `json:"provider"`
				Enabled  bool   `json:"enabled"`
			}
			if err := json.Unmarshal(output.Bytes(), &entries); err != nil {
				t.Fatalf("expected JSON output, got %v: %s", err, output.String())
			}
			if len(entries) != 3 || entries[1].Provider != "spotify" || entries[1].Enabled {
				t.Errorf("unexpected entries: %+v", entries)
			}
		})
	})

	t.Run("login", func(t *testing.T) {
		t.Run("opens the login route", func(t *testing.T) {
			path, _ := writeConfig(t, func(c *shared.Config) {
				c.Server.Host = "0.0.0.0"
				c.Server.Port = 8000
			})
			var opened string
			runner := NewRunner(RunnerOpts{
				Output:      &bytes.Buffer{},
				OpenBrowser: func(u string) error {
					opened = u
					return nil
				},
			})

			if err := run(t, runner, "--config", path, "login", "spotify"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if opened != "http://localhost:8000/auth/login/spotify?redirect=true" {
				t.Errorf("unexpected url %q", opened)
			}
		})

		t.Run("prints the url when the browser fails", func(t *testing.T) {
			path, _ := writeConfig(t, nil)
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{
				Output:      output,
				OpenBrowser: func(string) error { return errors.New("no display") },
			})

			if err := run(t, runner, "--config", path, "login", "google"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), "/auth/login/google?redirect=true") {
				t.Errorf("expected url in output, got %q", output.String())
			}
		})

		t.Run("print flag skips the browser", func(t *testing.T) {
			path, _ := writeConfig(t, nil)
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{
				Output:      output,
				OpenBrowser: func(string) error {
					t.Error("browser should not open")
					return nil
				},
			})

			if err := run(t, runner, "--config", path, "login", "--print", "facebook"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.HasSuffix(output.String(), "/auth/login/facebook?redirect=true\n") {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("rejects unknown and disabled providers", func(t *testing.T) {
			path, _ := writeConfig(t, func(c *shared.Config) { c.Credentials.Facebook.Enabled = false })
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, OpenBrowser: func(string) error { return nil }})

			if err := run(t, runner, "--config", path, "login", "myspace"); !errors.Is(err, shared.ErrUnknownProvider) {
				t.Errorf("expected ErrUnknownProvider, got %v", err)
			}
			if err := run(t, runner, "--config", path, "login", "facebook"); !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
			if err := run(t, runner, "--config", path, "login"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("setup", func(t *testing.T) {
		t.Run("config refuses to overwrite", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			if err := run(t, runner, "--config", path, "setup", "config"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			tu.AssertFileExists(t, path)
			if !strings.Contains(tu.MustReadFile(t, path), "[credentials.google]") {
				t.Error("expected example config contents")
			}

			if err := run(t, runner, "--config", path, "setup", "config"); err == nil {
				t.Error("expected error when config already exists")
			}
		})

		t.Run("database applies migrations", func(t *testing.T) {
			path, config := writeConfig(t, nil)
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := run(t, runner, "--config", path, "setup", "database"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			tu.AssertFileExists(t, config.Database.Path)
			if !strings.Contains(output.String(), "create_sessions") {
				t.Errorf("expected migration listing, got %q", output.String())
			}

			if err := run(t, runner, "--config", path, "setup", "rollback"); err != nil {
				t.Fatalf("expected rollback to succeed, got %v", err)
			}
		})
	})

	t.Run("sessions", func(t *testing.T) {
		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		seed := func(t *testing.T, config *shared.Config) {
			t.Helper()
			db, err := shared.OpenDatabase(config.Database)
			if err != nil {
				t.Fatalf("failed to open database: %v", err)
			}
			defer db.Close()

			repo := repositories.NewSessionRepository(db)
			active := models.RestoreSession("active", []byte(`{"google_token_info":{"access_token":"secret-token"},"token_info":{}}`),
				now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour))
			expired := models.RestoreSession("expired", []byte(`{}`),
				now.Add(-3*time.Hour), now.Add(-2*time.Hour), now.Add(-time.Hour))
			for _, s := range []*models.Session{active, expired} {
				if err := repo.Create(s); err != nil {
					t.Fatalf("failed to seed session: %v", err)
				}
			}
		}

		t.Run("list hides expired sessions", func(t *testing.T) {
			path, config := writeConfig(t, nil)
			seed(t, config)
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output, Now: func() time.Time { return now }})

			if err := run(t, runner, "--config", path, "sessions", "list", "--json"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			var got []sessionSummary
			if err := json.Unmarshal(output.Bytes(), &got); err != nil {
				t.Fatalf("expected JSON output, got %v", err)
			}
			if len(got) != 1 || got[0].ID != "active" {
				t.Fatalf("expected only the active session, got %+v", got)
			}
			if strings.Join(got[0].Providers, ",") != "google,facebook" {
				t.Errorf("unexpected providers %v", got[0].Providers)
			}
			if strings.Contains(output.String(), "secret-token") {
				t.Error("token leaked into output")
			}
		})

		t.Run("list all renders a table", func(t *testing.T) {
			path, config := writeConfig(t, nil)
			seed(t, config)
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output, Now: func() time.Time { return now }})

			if err := run(t, runner, "--config", path, "sessions", "list", "--all"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), "active") || !strings.Contains(output.String(), "expired") {
				t.Errorf("expected both sessions, got:\n%s", output.String())
			}
		})

		t.Run("prune removes expired sessions", func(t *testing.T) {
			path, config := writeConfig(t, nil)
			seed(t, config)
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output, Now: func() time.Time { return now }})

			if err := run(t, runner, "--config", path, "sessions", "prune"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), "removed 1 expired") {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("memory backend is rejected", func(t *testing.T) {
			path, _ := writeConfig(t, func(c *shared.Config) { c.Session.Backend = "memory" })
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			if err := run(t, runner, "--config", path, "sessions", "list"); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})

	t.Run("serve", func(t *testing.T) {
		t.Run("rejects invalid configuration", func(t *testing.T) {
			path, _ := writeConfig(t, func(c *shared.Config) { c.Session.Secret = "" })
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			if err := run(t, runner, "--config", path, "serve"); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})

		t.Run("builds a server with enabled providers", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			runner.config.Session.Secret = "test-secret"
			runner.config.Session.Backend = "memory"

			backend, db, err := runner.sessionBackend()
			if err != nil || db != nil {
				t.Fatalf("expected memory backend, got db=%v err=%v", db, err)
			}

			srv, sessions := runner.buildServer(backend)
			if srv == nil || sessions == nil {
				t.Fatal("expected server and session manager")
			}
		})

		t.Run("prune loop stops with context", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			runner.config.Session.Backend = "memory"
			backend, _, _ := runner.sessionBackend()
			_, sessions := runner.buildServer(backend)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- runner.pruneLoop(ctx, sessions, time.Millisecond) }()

			time.Sleep(5 * time.Millisecond)
			cancel()

			select {
			case err := <-done:
				if err != nil {
					t.Errorf("expected nil error, got %v", err)
				}
			case <-time.After(time.Second):
				t.Fatal("prune loop did not stop")
			}

			if err := runner.pruneLoop(context.Background(), sessions, 0); err != nil {
				t.Errorf("expected disabled loop to return nil, got %v", err)
			}
		})
	})
}
