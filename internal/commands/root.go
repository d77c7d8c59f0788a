// Package commands is the skillswap command line: one-shot REST commands
// and the interactive live inbox.
package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"skillswap/internal/api"
	"skillswap/internal/auth"
	"skillswap/internal/config"
	"skillswap/internal/models"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Env is what the commands read from and write to.
type Env struct {
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	LoadConfig func() (*config.Config, error)

	level  slog.LevelVar
	logger *slog.Logger
}

// NewRootCommand builds the command tree. It is called once per process
// by main and once per case in tests.
func NewRootCommand(env *Env) *cobra.Command {
	if env.LoadConfig == nil {
		env.LoadConfig = config.Load
	}
	env.level.Set(slog.LevelWarn)
	env.logger = slog.New(slog.NewTextHandler(env.Err, &slog.HandlerOptions{Level: &env.level}))

	var verbose bool
	root := &cobra.Command{
		Use:   "skillswap",
		Short: "SkillSwap messaging client",
		Long: `skillswap talks to the SkillSwap chat backend: it lists conversations,
prints history and runs a live inbox with presence and typing indicators.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				env.level.Set(slog.LevelDebug)
			}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetIn(env.In)
	root.SetOut(env.Out)
	root.SetErr(env.Err)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newConversationsCmd(env),
		newHistoryCmd(env),
		newChatCmd(env),
	)
	return root
}

// session loads the configuration and the session it describes.
func (e *Env) session() (*config.Config, *models.Session, error) {
	cfg, err := e.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	session, err := auth.NewSessionBuilder().Session(auth.Config{
		Token:    cfg.Token,
		UserID:   cfg.UserID,
		UserName: cfg.UserName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign in: %w", err)
	}
	return cfg, session, nil
}

// describe turns request failures into the message a user should see and
// logs the details.
func (e *Env) describe(err error) error {
	var reqErr *api.RequestError
	if errors.As(err, &reqErr) {
		e.logger.Debug("request failed", "op", reqErr.Op, "status", reqErr.StatusCode, "error", err)
		return errors.New(reqErr.UserMessage())
	}
	return err
}
