// Package adapter implements the SDK-first-with-fallback execution policy:
// every effect has a preferred (protocol SDK) implementation and a verified
// direct-RPC fallback, and the fact that a fallback ran is never dropped.
package adapter

import (
	"context"
	"fmt"

	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/intent"
)

// Request is the validated input handed to an effecter. The adapter never
// inspects chain semantics; it only routes and records.
type Request struct {
	Network   string
	Endpoint  string
	Sender    string
	Intent    intent.Intent
	SessionID string
}

// Outcome is whatever a path produced: a quote for previews, a submission
// receipt for mutations. Fields are flat strings so they render directly into
// phase artifacts.
type Outcome struct {
	Summary string
	Fields  map[string]string
}

// Effecter is one concrete implementation of an effect. Preview must not
// change chain state; Mutate may.
type Effecter interface {
	Name() string
	Preview(ctx context.Context, req Request) (Outcome, error)
	Mutate(ctx context.Context, req Request) (Outcome, error)
}

type Path string

const (
	PathPrimary  Path = "primary"
	PathFallback Path = "fallback"
)

// Result reports which path ran and why. UsedFallback=true always comes with
// a warning naming the preferred-path failure.
type Result struct {
	Path         Path
	UsedFallback bool
	Warnings     []string
	Outcome      Outcome
}

// Run attempts the preferred path first. On failure, if fallback is allowed
// and available, it retries exactly once via the fallback and surfaces the
// switch; if the fallback also fails, the fallback's error wins, because once
// the fallback runs it is the source of truth for the user-facing outcome.
// With fallback disallowed, the preferred error propagates unchanged.
func Run(ctx context.Context, req Request, primary, fallback Effecter, fallbackAllowed, mutating bool) (Result, error) {
	if primary == nil && fallback == nil {
		return Result{}, clierr.New(clierr.CodeUnsupported, "no execution path available for this intent")
	}
	if primary == nil {
		primary, fallback = fallback, nil
	}

	outcome, err := invoke(ctx, primary, req, mutating)
	if err == nil {
		return Result{Path: PathPrimary, Outcome: outcome}, nil
	}
	if !fallbackAllowed || fallback == nil {
		return Result{}, err
	}

	warning := fmt.Sprintf("%s path failed (%v); fell back to %s", primary.Name(), err, fallback.Name())
	outcome, fbErr := invoke(ctx, fallback, req, mutating)
	if fbErr != nil {
		return Result{}, fbErr
	}
	return Result{
		Path:         PathFallback,
		UsedFallback: true,
		Warnings:     []string{warning},
		Outcome:      outcome,
	}, nil
}

func invoke(ctx context.Context, effecter Effecter, req Request, mutating bool) (Outcome, error) {
	if mutating {
		return effecter.Mutate(ctx, req)
	}
	return effecter.Preview(ctx, req)
}
