package app

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/alemendo/intent-cli/internal/policy"
)

func (s *runtimeState) newPolicyCommand() *cobra.Command {
	root := &cobra.Command{Use: "policy", Short: "Recipient policy and its audit log"}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the active policy record",
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := s.policySvc.Get()
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), record, nil)
		},
	}

	var mode, enforceOn, allow string
	set := &cobra.Command{
		Use:   "set",
		Short: "Update the policy (unset flags keep current values)",
		RunE: func(cmd *cobra.Command, args []string) error {
			update := policy.Update{Mode: mode, EnforceOn: enforceOn}
			if cmd.Flags().Changed("allow") {
				update.AllowedRecipients = splitCSV(allow)
			}
			record, err := s.policySvc.Set(update, s.settings.Actor)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), record, nil)
		},
	}
	set.Flags().StringVar(&mode, "mode", "", "Policy mode (open|allowlist)")
	set.Flags().StringVar(&enforceOn, "enforce-on", "", "Enforcement scope (mainnet_like|all)")
	set.Flags().StringVar(&allow, "allow", "", "Allowed recipient addresses (comma-separated; replaces the list)")

	template := &cobra.Command{
		Use:   "template <name>",
		Short: "Apply a canned policy template (" + strings.Join(policy.TemplateNames(), "|") + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := s.policySvc.ApplyTemplate(args[0], s.settings.Actor)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), record, nil)
		},
	}

	var limit int
	audit := &cobra.Command{
		Use:   "audit",
		Short: "List policy changes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := s.policySvc.AuditLog(limit)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), records, nil)
		},
	}
	audit.Flags().IntVar(&limit, "limit", 20, "Maximum audit entries to return")

	root.AddCommand(show)
	root.AddCommand(set)
	root.AddCommand(template)
	root.AddCommand(audit)
	return root
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return []string{}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
