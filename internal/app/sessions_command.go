package app

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/alemendo/intent-cli/internal/engine"
	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/intent"
)

type sessionView struct {
	SessionID    string            `json:"session_id"`
	Network      string            `json:"network"`
	Endpoint     string            `json:"endpoint,omitempty"`
	IntentType   string            `json:"intent_type"`
	Intent       map[string]string `json:"intent"`
	ConfirmToken string            `json:"confirm_token"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (s *runtimeState) newSessionsCommand() *cobra.Command {
	root := &cobra.Command{Use: "sessions", Short: "Remembered workflow sessions"}

	var sessionID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show a remembered session (latest when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, found := s.sessions.Latest()
			if sessionID != "" {
				stored, found = s.sessions.Read(sessionID)
			}
			if !found {
				return clierr.NewReason(clierr.CodeUsage, clierr.ReasonSessionNotFound,
					"no remembered session; run analyze or simulate first")
			}
			view := sessionView{
				SessionID:    stored.ID,
				Network:      stored.Network,
				Endpoint:     stored.Endpoint,
				IntentType:   string(stored.Intent.Kind()),
				Intent:       intent.Fields(stored.Intent),
				ConfirmToken: engine.DeriveToken(stored.ID, stored.Network, stored.Intent),
				CreatedAt:    stored.CreatedAt,
				UpdatedAt:    stored.UpdatedAt,
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), view, nil)
		},
	}
	show.Flags().StringVar(&sessionID, "session", "", "Session id (defaults to the latest session)")
	root.AddCommand(show)
	return root
}
