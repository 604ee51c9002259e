package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/alemendo/intent-cli/internal/engine"
	"github.com/alemendo/intent-cli/internal/intent"
)

// callFlags mirrors engine.CallParams one flag per field. All intent fields
// are optional at the flag layer; the normalizer decides what is missing.
type callFlags struct {
	session     string
	network     string
	action      string
	token       string
	tokenOut    string
	recipient   string
	amount      string
	protocol    string
	toNetwork   string
	orderID     string
	slippageBps string
	text        string
	sender      string
	endpoint    string
	confirmed   bool
	confirmTok  string
	noFallback  bool
}

func (f *callFlags) register(cmd *cobra.Command, execute bool) {
	cmd.Flags().StringVar(&f.session, "session", "", "Session id (new one minted when empty)")
	cmd.Flags().StringVar(&f.network, "network", "", "Target network slug (e.g. ethereum, sepolia)")
	cmd.Flags().StringVar(&f.action, "action", "", "Action (transfer|swap|supply|withdraw|bridge|cancel)")
	cmd.Flags().StringVar(&f.token, "token", "", "Token address or symbol")
	cmd.Flags().StringVar(&f.tokenOut, "token-out", "", "Output token for swaps")
	cmd.Flags().StringVar(&f.recipient, "recipient", "", "Recipient address")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount in raw base units")
	cmd.Flags().StringVar(&f.protocol, "protocol", "", "Lending protocol name")
	cmd.Flags().StringVar(&f.toNetwork, "to-network", "", "Destination network for bridges")
	cmd.Flags().StringVar(&f.orderID, "order-id", "", "Order id for cancellations")
	cmd.Flags().StringVar(&f.slippageBps, "slippage-bps", "", "Swap slippage tolerance in basis points")
	cmd.Flags().StringVar(&f.text, "text", "", "Free-text request; explicit flags win over parsed hints")
	cmd.Flags().StringVar(&f.sender, "sender", "", "Sender address for previews and execution")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "RPC endpoint override")
	cmd.Flags().BoolVar(&f.noFallback, "no-fallback", false, "Disable the fallback execution path")
	if execute {
		cmd.Flags().BoolVar(&f.confirmed, "confirm", false, "Confirm a mainnet-like execution")
		cmd.Flags().StringVar(&f.confirmTok, "confirm-token", "", "Confirm token from a prior analysis or simulate")
	}
}

func (f *callFlags) params() engine.CallParams {
	return engine.CallParams{
		SessionID: f.session,
		Network:   f.network,
		Endpoint:  f.endpoint,
		Sender:    f.sender,
		Intent: intent.Params{
			Action:      f.action,
			Token:       f.token,
			TokenOut:    f.tokenOut,
			Recipient:   f.recipient,
			Amount:      f.amount,
			Protocol:    f.protocol,
			ToNetwork:   f.toNetwork,
			OrderID:     f.orderID,
			SlippageBps: f.slippageBps,
		},
		FreeText:     f.text,
		Confirmed:    f.confirmed,
		ConfirmToken: f.confirmTok,
		NoFallback:   f.noFallback,
	}
}

// phaseResult is the data payload of a workflow command.
type phaseResult struct {
	Summary string         `json:"summary"`
	Details engine.Details `json:"details"`
}

type phaseFn func(ctx context.Context, params engine.CallParams) (engine.CallResult, error)

func (s *runtimeState) runPhase(cmd *cobra.Command, flags *callFlags, phase phaseFn) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
	defer cancel()

	result, err := phase(ctx, flags.params())
	if err != nil {
		return err
	}
	data := phaseResult{Summary: result.SummaryText, Details: result.Details}
	return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, result.Warnings)
}

func (s *runtimeState) newAnalyzeCommand() *cobra.Command {
	flags := &callFlags{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Normalize an intent and describe what would run (no chain access)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runPhase(cmd, flags, s.workflow.Analyze)
		},
	}
	flags.register(cmd, false)
	return cmd
}

func (s *runtimeState) newSimulateCommand() *cobra.Command {
	flags := &callFlags{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Analyze plus a read-only dry run through the execution adapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runPhase(cmd, flags, s.workflow.Simulate)
		},
	}
	flags.register(cmd, false)
	return cmd
}

func (s *runtimeState) newExecuteCommand() *cobra.Command {
	flags := &callFlags{}
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Run the intent on chain after the safety gate allows it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runPhase(cmd, flags, s.workflow.Execute)
		},
	}
	flags.register(cmd, true)
	return cmd
}
