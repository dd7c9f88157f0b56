package guard

import (
	"strings"

	"github.com/cyverse/ngs/internal/model"
)

// ActionShellExec is the action kind for shell command execution, the only kind whose arguments are inspected.
const ActionShellExec = "shell_exec"

// Treatment is what the guard does with an action kind.
type Treatment int

const (
	// Undeclared kinds fall back to the policy's default.
	Undeclared Treatment = iota

	// Inspect tests the action's arguments against the deny-list.
	Inspect

	// Allow lets the action through without inspection.
	Allow
)

// Category is a group of deny-list patterns sharing a severity.
type Category struct {
	Name     string
	Severity string
	Patterns []string
}

// DenyList is checked in order; the first matching pattern wins.
var DenyList = []Category{
	{
		Name:     "destructive filesystem operation",
		Severity: model.SeverityCritical,
		Patterns: []string{
			"rm -rf",
			"rm -fr",
			"rm -r -f",
			"rm --recursive --force",
			"rm --no-preserve-root",
			"mkfs",
			"dd if=",
			"shred ",
			"wipefs",
			"> /dev/sd",
		},
	},
	{
		Name:     "network reconnaissance",
		Severity: model.SeverityHigh,
		Patterns: []string{
			"nmap",
			"masscan",
			"zmap",
			"nikto",
			"arp-scan",
			"netdiscover",
			"tcpdump",
		},
	},
	{
		Name:     "outbound data transfer",
		Severity: model.SeverityHigh,
		Patterns: []string{
			"curl ",
			"wget ",
			"netcat",
			"ncat ",
			" nc ",
			"socat ",
			"scp ",
			"sftp ",
			"rsync ",
			" ftp ",
			"/dev/tcp/",
			"/dev/udp/",
		},
	},
}

// Match is a deny-list hit.
type Match struct {
	Category *Category
	Pattern  string
}

// shellSeparators are replaced by spaces before matching so that a tool name following a pipe, a semicolon or a
// command substitution is matched the same way as one at the start of the command.
var shellSeparators = strings.NewReplacer(
	";", " ",
	"|", " ",
	"&", " ",
	"`", " ",
	"$(", " ",
	"(", " ",
	")", " ",
)

// matchForm converts a normalized command to the form the deny-list patterns are matched against.
func matchForm(command string) string {
	return " " + strings.Join(strings.Fields(shellSeparators.Replace(command)), " ") + " "
}

// FindMatch returns the first deny-list entry contained in the command, or nil if there is none. Matching is
// case-insensitive.
func FindMatch(command string) *Match {
	command = matchForm(strings.ToLower(command))
	for i := range DenyList {
		category := &DenyList[i]
		for _, pattern := range category.Patterns {
			if strings.Contains(command, pattern) {
				return &Match{Category: category, Pattern: pattern}
			}
		}
	}
	return nil
}

// Policy declares how each action kind is treated.
type Policy struct {
	kinds       map[string]Treatment
	defaultDeny bool
}

// NewPolicy declares shell execution as inspected and the given kinds as allowed. Any other kind is denied when
// defaultDeny is set and allowed otherwise.
func NewPolicy(allowedKinds []string, defaultDeny bool) *Policy {
	kinds := map[string]Treatment{ActionShellExec: Inspect}
	for _, kind := range allowedKinds {
		kind = strings.ToLower(strings.TrimSpace(kind))
		if kind == "" || kind == ActionShellExec {
			continue
		}
		kinds[kind] = Allow
	}
	return &Policy{kinds: kinds, defaultDeny: defaultDeny}
}

// Treatment returns the treatment for an action kind.
func (p *Policy) Treatment(kind string) Treatment {
	return p.kinds[strings.ToLower(strings.TrimSpace(kind))]
}

// DefaultDeny returns true if undeclared action kinds are denied.
func (p *Policy) DefaultDeny() bool {
	return p.defaultDeny
}
