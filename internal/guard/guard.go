// Package guard evaluates the privileged actions a running node attempts before they execute.
//
// Shell commands are tested against a priority-ordered deny-list. A match is recorded as a security strike before
// the action is denied, and the action is denied even if the strike cannot be recorded. Commands that do not match
// cause no writes at all.
package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cyverse/ngs/internal/apperr"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logging.ForPackage("guard")

// MaxSnippetLength is the maximum number of characters of an offending command stored with a strike.
const MaxSnippetLength = 200

// Store is the persistence needed by the guard.
type Store interface {
	GetNode(ctx context.Context, nodeID string) (*model.Node, error)
	CreateStrike(ctx context.Context, strike *model.SecurityStrike) error
}

// EvaluateRequest describes an action a node is about to perform.
type EvaluateRequest struct {
	NodeID     string          `json:"node_id"`
	ActionKind string          `json:"action_kind"`
	ActionArgs json.RawMessage `json:"action_args,omitempty"`
}

// Decision is the guard's verdict on an action.
type Decision struct {
	Allowed        bool   `json:"allowed"`
	Reason         string `json:"reason,omitempty"`
	Category       string `json:"category,omitempty"`
	Pattern        string `json:"pattern,omitempty"`
	Severity       string `json:"severity,omitempty"`
	StrikeID       string `json:"strike_id,omitempty"`
	StrikeRecorded bool   `json:"strike_recorded"`
}

// Err returns a policy violation error for a denied action and nil for an allowed one.
func (d *Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.PolicyViolation("action denied: %s", d.Reason)
}

// Guard evaluates actions against a policy.
type Guard struct {
	store  Store
	policy *Policy
	now    func() time.Time
}

// New creates a guard.
func New(store Store, policy *Policy) *Guard {
	return &Guard{store: store, policy: policy, now: time.Now}
}

// NormalizeArgs converts the arguments of a shell command to the command text. An object with a "command" field
// yields that field, a JSON string yields the string, an argument vector (either bare or in an "argv" field) is
// joined with spaces and anything else is used as raw JSON text.
func NormalizeArgs(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var argv []string
	if err := json.Unmarshal(raw, &argv); err == nil {
		return strings.Join(argv, " ")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		for _, key := range []string{"command", "cmd", "argv", "args"} {
			if value, ok := fields[key]; ok {
				if normalized := NormalizeArgs(value); normalized != "" {
					return normalized
				}
			}
		}
	}

	return trimmed
}

// snippet returns at most MaxSnippetLength characters of the command.
func snippet(command string) string {
	command = strings.Join(strings.Fields(command), " ")
	runes := []rune(command)
	if len(runes) <= MaxSnippetLength {
		return command
	}
	return string(runes[:MaxSnippetLength])
}

// Evaluate decides whether an action may proceed. The returned decision is never nil; any failure while
// recording a strike is logged and the action is denied regardless.
func (g *Guard) Evaluate(ctx context.Context, req *EvaluateRequest) *Decision {
	log := log.WithFields(logrus.Fields{"context": "evaluate", "node": req.NodeID, "kind": req.ActionKind})

	switch g.policy.Treatment(req.ActionKind) {
	case Allow:
		return &Decision{Allowed: true}
	case Undeclared:
		if g.policy.DefaultDeny() {
			log.Warn("denying an undeclared action kind")
			return &Decision{Allowed: false, Reason: fmt.Sprintf("undeclared action kind: %s", req.ActionKind)}
		}
		return &Decision{Allowed: true}
	}

	command := NormalizeArgs(req.ActionArgs)
	match := FindMatch(command)
	if match == nil {
		return &Decision{Allowed: true}
	}

	decision := &Decision{
		Allowed:  false,
		Reason:   fmt.Sprintf("%s: matched %q", match.Category.Name, match.Pattern),
		Category: match.Category.Name,
		Pattern:  match.Pattern,
		Severity: match.Category.Severity,
	}
	log = log.WithFields(logrus.Fields{"pattern": match.Pattern, "severity": match.Category.Severity})

	strike, err := g.recordStrike(ctx, req.NodeID, match, command)
	if err != nil {
		log.WithError(err).Error("unable to record the security strike; denying the action anyway")
		return decision
	}

	decision.StrikeID = strike.ID
	decision.StrikeRecorded = true
	log.WithField("strike", strike.ID).Warn("action denied")
	return decision
}

// recordStrike writes a strike for a denied command.
func (g *Guard) recordStrike(ctx context.Context, nodeID string, match *Match, command string) (*model.SecurityStrike, error) {
	node, err := g.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, apperr.Storage(err, "unable to look up node %s", nodeID)
	}
	if node == nil {
		return nil, apperr.NotFound("node %s not found", nodeID)
	}

	strike := &model.SecurityStrike{
		ID:            uuid.NewString(),
		OwnerID:       node.OwnerID,
		NodeID:        node.ID,
		ViolationType: model.ViolationIllegalEgress,
		Details:       fmt.Sprintf("pattern %q (%s): %s", match.Pattern, match.Category.Name, snippet(command)),
		Timestamp:     g.now().UTC(),
		Severity:      match.Category.Severity,
	}
	if err = g.store.CreateStrike(ctx, strike); err != nil {
		return nil, apperr.Storage(err, "unable to record a strike for node %s", nodeID)
	}
	return strike, nil
}
