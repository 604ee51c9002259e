// Package policy is the transfer/recipient allowlist oracle: a small,
// audited record consulted by the safety gate before any mutating call.
package policy

import (
	"fmt"
	"strings"
	"time"

	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/id"
	"github.com/alemendo/intent-cli/internal/intent"
)

type Mode string

const (
	ModeOpen      Mode = "open"
	ModeAllowlist Mode = "allowlist"
)

type EnforceOn string

const (
	EnforceMainnetLike EnforceOn = "mainnet_like"
	EnforceAll         EnforceOn = "all"
)

// Record is the active policy. It is only ever mutated through Service.Set or
// Service.ApplyTemplate, both of which append to the audit log and bump the
// version.
type Record struct {
	Mode              Mode      `json:"mode"`
	EnforceOn         EnforceOn `json:"enforce_on"`
	AllowedRecipients []string  `json:"allowed_recipients"`
	Version           int64     `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
	UpdatedBy         string    `json:"updated_by"`
}

// AuditRecord is one append-only entry describing a policy change.
type AuditRecord struct {
	ID     string    `json:"id"`
	Action string    `json:"action"`
	Before *Record   `json:"before,omitempty"`
	After  Record    `json:"after"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
}

// Update is a partial policy change; empty fields keep the current value.
type Update struct {
	Mode              string
	EnforceOn         string
	AllowedRecipients []string
}

func defaultRecord() Record {
	return Record{
		Mode:              ModeOpen,
		EnforceOn:         EnforceMainnetLike,
		AllowedRecipients: []string{},
		Version:           1,
		UpdatedBy:         "bootstrap",
	}
}

// check decides whether an intent is allowed under the record. Only intents
// that name an external recipient are subject to the allowlist; everything
// else passes.
func (r Record) check(network string, in intent.Intent) error {
	if r.Mode != ModeAllowlist {
		return nil
	}
	if r.EnforceOn == EnforceMainnetLike && !id.MainnetLike(network) {
		return nil
	}
	recipient := recipientOf(in)
	if recipient == "" {
		return nil
	}
	for _, allowed := range r.AllowedRecipients {
		if strings.EqualFold(allowed, recipient) {
			return nil
		}
	}
	return clierr.NewReason(clierr.CodeBlocked, clierr.ReasonPolicyRejected,
		fmt.Sprintf("recipient %s is not on the policy allowlist", recipient)).
		WithDetail("recipient", recipient).
		WithDetail("policy_version", r.Version)
}

// recipientOf extracts the external destination of an intent, if any.
func recipientOf(in intent.Intent) string {
	switch typed := in.(type) {
	case intent.Transfer:
		return typed.Recipient
	case intent.Bridge:
		return typed.Recipient
	default:
		return ""
	}
}

func normalizeUpdate(current Record, update Update) (Record, error) {
	next := current

	if mode := strings.ToLower(strings.TrimSpace(update.Mode)); mode != "" {
		switch Mode(mode) {
		case ModeOpen, ModeAllowlist:
			next.Mode = Mode(mode)
		default:
			return Record{}, clierr.NewReason(clierr.CodeUsage, clierr.ReasonInvalidFormat,
				fmt.Sprintf("unknown policy mode: %s", update.Mode))
		}
	}

	if enforce := strings.ToLower(strings.TrimSpace(update.EnforceOn)); enforce != "" {
		switch EnforceOn(enforce) {
		case EnforceMainnetLike, EnforceAll:
			next.EnforceOn = EnforceOn(enforce)
		default:
			return Record{}, clierr.NewReason(clierr.CodeUsage, clierr.ReasonInvalidFormat,
				fmt.Sprintf("unknown enforce_on value: %s", update.EnforceOn))
		}
	}

	if update.AllowedRecipients != nil {
		cleaned := make([]string, 0, len(update.AllowedRecipients))
		for _, recipient := range update.AllowedRecipients {
			trimmed := strings.TrimSpace(recipient)
			if trimmed == "" {
				continue
			}
			if !id.ValidAddress(trimmed) {
				return Record{}, clierr.NewReason(clierr.CodeUsage, clierr.ReasonInvalidFormat,
					fmt.Sprintf("allowlist entry is not a valid address: %s", trimmed))
			}
			cleaned = append(cleaned, id.NormalizeAddress(trimmed))
		}
		next.AllowedRecipients = cleaned
	}

	return next, nil
}

// Templates are canned configurations applied by name.
var templates = map[string]Update{
	"open": {
		Mode:              string(ModeOpen),
		EnforceOn:         string(EnforceMainnetLike),
		AllowedRecipients: []string{},
	},
	"locked-down": {
		Mode:              string(ModeAllowlist),
		EnforceOn:         string(EnforceAll),
		AllowedRecipients: []string{},
	},
	"mainnet-allowlist": {
		Mode:      string(ModeAllowlist),
		EnforceOn: string(EnforceMainnetLike),
	},
}

// TemplateNames lists the available policy templates.
func TemplateNames() []string {
	return []string{"locked-down", "mainnet-allowlist", "open"}
}
