// Command fairtest is the test-taker and evaluator CLI. Identities are derived
// and kept on this device; only pseudonym hashes reach the server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fairtest/fairtest-backend/internal/client"
	"github.com/fairtest/fairtest-backend/internal/identity"
	"github.com/fairtest/fairtest-backend/internal/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "fairtest",
		Short:        "Privacy-preserving exam submissions and grading",
		SilenceUsage: true,
	}

	f := root.PersistentFlags()
	f.String("server", "http://localhost:8080", "FairTest server base URL")
	f.String("store", defaultStorePath(), "Local identity store (SQLite file)")
	f.String("token", "", "Evaluator token (or set FAIRTEST_TOKEN)")
	f.Duration("timeout", 30*time.Second, "HTTP timeout")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		identityCmd(),
		submitCmd(),
		resultCmd(),
		examsCmd(),
		evaluateCmd(),
		rankCmd(),
		evaluatorCmd(),
	)
	return root
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fairtest-identity.db"
	}
	return filepath.Join(home, ".fairtest", "identity.db")
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.InheritedFlags())

	v.SetEnvPrefix("FAIRTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("fairtest")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/fairtest")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "warning: reading config file: %v\n", err)
		}
	}
	return v
}

// env is the resolved configuration of one command invocation.
type env struct {
	v   *viper.Viper
	log zerolog.Logger
}

func newEnv(cmd *cobra.Command) *env {
	v := viperForCmd(cmd)
	return &env{
		v:   v,
		log: logger.SetupWriter(os.Stderr, v.GetString("log-level"), "pretty"),
	}
}

func (e *env) client() *client.Client {
	return client.NewClient(
		e.v.GetString("server"),
		client.WithTimeout(e.v.GetDuration("timeout")),
		client.WithToken(e.v.GetString("token")),
	)
}

func (e *env) openStore() (*identity.LocalStore, error) {
	path := e.v.GetString("store")
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	store, err := identity.OpenLocalStore(path)
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	e.log.Debug().Str("path", path).Msg("Identity store opened")
	return store, nil
}

func (e *env) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), e.v.GetDuration("timeout"))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
