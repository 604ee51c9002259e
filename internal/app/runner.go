package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alemendo/intent-cli/internal/adapter"
	"github.com/alemendo/intent-cli/internal/adapter/evm"
	"github.com/alemendo/intent-cli/internal/adapter/router"
	"github.com/alemendo/intent-cli/internal/config"
	"github.com/alemendo/intent-cli/internal/engine"
	"github.com/alemendo/intent-cli/internal/engine/session"
	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/httpx"
	"github.com/alemendo/intent-cli/internal/intent"
	"github.com/alemendo/intent-cli/internal/model"
	"github.com/alemendo/intent-cli/internal/out"
	"github.com/alemendo/intent-cli/internal/policy"
	"github.com/alemendo/intent-cli/internal/schema"
	"github.com/alemendo/intent-cli/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	root        *cobra.Command
	lastCommand string

	policySvc *policy.Service
	sessions  *session.SQLiteStore
	workflow  *engine.Engine
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	state.closeStores()
	if err == nil {
		return 0
	}

	state.renderError("", err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) closeStores() {
	if s.policySvc != nil {
		_ = s.policySvc.Close()
	}
	if s.sessions != nil {
		_ = s.sessions.Close()
	}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Guarded multi-phase execution workflow CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			if !shouldOpenState(path) {
				return nil
			}
			if s.policySvc == nil {
				svc, err := policy.Open(settings.PolicyPath, settings.PolicyLockPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeInternal, "open policy store", err)
				}
				s.policySvc = svc
			}
			if s.sessions == nil {
				store, err := session.OpenSQLite(settings.SessionPath, settings.SessionLockPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeInternal, "open session store", err)
				}
				s.sessions = store
			}
			if s.workflow == nil {
				s.workflow = engine.New(s.sessions, s.newAdapterRegistry(), s.policySvc)
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Adapter request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per adapter request")
	cmd.PersistentFlags().StringVar(&s.flags.Actor, "actor", "", "Actor name recorded in policy audit entries")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newAnalyzeCommand())
	cmd.AddCommand(s.newSimulateCommand())
	cmd.AddCommand(s.newExecuteCommand())
	cmd.AddCommand(s.newSessionsCommand())
	cmd.AddCommand(s.newPolicyCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// newAdapterRegistry wires the SDK-first execution paths. Transfers carry a
// direct-RPC fallback; the remaining kinds are gateway-only.
func (s *runtimeState) newAdapterRegistry() *adapter.Registry {
	httpClient := httpx.New(s.settings.Timeout, s.settings.Retries)
	gateway := router.New(httpClient, s.settings.GatewayURL, s.settings.GatewayAPIKey)

	localSigner, err := evm.NewLocalSignerFromEnv()
	var signer evm.Signer
	if err == nil && localSigner != nil {
		signer = localSigner
	}
	direct := evm.New(evm.TransferBuilder{}, signer, s.settings.RPCEndpoints)

	registry := adapter.NewRegistry()
	registry.Register(intent.KindTransfer, adapter.Pair{Primary: gateway, Fallback: direct})
	registry.Register(intent.KindSwap, adapter.Pair{Primary: gateway})
	registry.Register(intent.KindSupply, adapter.Pair{Primary: gateway})
	registry.Register(intent.KindWithdraw, adapter.Pair{Primary: gateway})
	registry.Register(intent.KindBridge, adapter.Pair{Primary: gateway})
	registry.Register(intent.KindCancel, adapter.Pair{Primary: gateway})
	return registry
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = strings.Join(args, " ")
			}
			data, err := schema.Build(s.root, path)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil)
		},
	}
	return cmd
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: uuid.NewString(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	body := &model.ErrorBody{
		Code:    clierr.ExitCode(err),
		Message: err.Error(),
	}
	if cErr, ok := clierr.As(err); ok {
		body.Message = cErr.Message
		if cErr.Cause != nil {
			body.Message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		body.Reason = string(cErr.Reason)
		body.Details = cErr.Details
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error:   body,
		Meta: model.EnvelopeMeta{
			RequestID: uuid.NewString(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// shouldOpenState keeps version/schema/help free of filesystem side effects.
func shouldOpenState(commandPath string) bool {
	switch normalizeCommandPath(commandPath) {
	case "", "version", "schema":
		return false
	default:
		return true
	}
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}
