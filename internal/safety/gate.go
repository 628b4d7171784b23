// Package safety classifies shell-level operations with a three-tier risk
// model and executes the ones that pass the gate. Classification is
// first-match in fixed precedence: blocked, then dangerous, then whitelisted,
// then the default tier. A command matching both a blocked and a dangerous
// pattern is always blocked.
//
// The package is a dependency-free leaf: any component that shells out on
// behalf of the reasoning service routes the command through Executor, which
// consults the Gate before anything reaches the shell.
package safety

import (
	"regexp"
	"strings"
)

// Tier is the risk classification of a command.
type Tier string

const (
	// TierBlocked commands are never executed, regardless of confirmation.
	TierBlocked Tier = "blocked"

	// TierDangerous commands run only after a confirmation callback
	// resolves true.
	TierDangerous Tier = "dangerous"

	// TierWhitelisted commands are known read-only inspections and run
	// without confirmation.
	TierWhitelisted Tier = "whitelisted"

	// TierDefault covers everything else. Fail-open by default; the
	// FailClosed option moves this tier to requires-confirmation.
	TierDefault Tier = "default"
)

// Verdict is the outcome of classifying one command.
type Verdict struct {
	Tier                 Tier   `json:"tier"`
	Allowed              bool   `json:"allowed"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Reason               string `json:"reason"`
}

// pattern pairs a compiled matcher with the reason reported on match.
type pattern struct {
	re     *regexp.Regexp
	reason string
}

// blockedPatterns are rejected unconditionally.
var blockedPatterns = []pattern{
	{regexp.MustCompile(`(?i)\bmkfs(\.\w+)?\b`), "Filesystem format operation"},
	{regexp.MustCompile(`(?i)\bdd\b.*\bof=/dev/(sd|hd|nvme|vd|xvd)`), "Raw write to block device"},
	{regexp.MustCompile(`>\s*/dev/(sd|hd|nvme|vd|xvd)`), "Raw write to block device"},
	{regexp.MustCompile(`(?i)\b(shutdown|reboot|halt|poweroff)\b`), "System shutdown or reboot"},
	{regexp.MustCompile(`(?i)\binit\s+0\b`), "System shutdown or reboot"},
	{regexp.MustCompile(`:\(\)\s*\{.*\|.*&.*\}\s*;?\s*:`), "Fork bomb"},
	{regexp.MustCompile(`(?i)\brm\s+(-[a-z]*[rf][a-z]*\s+)+/\s*$`), "Recursive delete of filesystem root"},
}

// dangerousPatterns require confirmation before execution.
var dangerousPatterns = []pattern{
	{regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*f[a-z]*|-[a-z]*f[a-z]*r[a-z]*)\b`), "Recursive forced delete"},
	{regexp.MustCompile(`(?i)\brm\s+(-[a-z]+\s+)*[^\s]*\*`), "Wildcard delete"},
	{regexp.MustCompile(`(?i)\bgit\s+push\s+.*(--force|\s-f\b)`), "Forced remote push"},
	{regexp.MustCompile(`(?i)\b(systemctl|service)\s+.*(stop|restart|disable)\b`), "Service stop, restart or disable"},
	{regexp.MustCompile(`(?i)\b(drop\s+(table|database)|truncate\s+table?|delete\s+from)\b`), "Destructive SQL statement"},
	{regexp.MustCompile(`(?i)\bchmod\s+(-[a-z]+\s+)*777\b`), "World-writable permission change"},
	{regexp.MustCompile(`(?i)\bchown\s+(-[a-z]+\s+)*-?R\b`), "Recursive ownership change"},
	{regexp.MustCompile(`(?i)\bdd\b.*\bof=`), "Raw device or file overwrite"},
	{regexp.MustCompile(`(?i)\b(curl|wget)\b.*\|\s*(ba|z|da)?sh\b`), "Remote script piped into a shell"},
}

// whitelistPrefixes are read-only inspection commands that always run
// without confirmation. Matched against the trimmed command start.
var whitelistPrefixes = []string{
	"ls", "cat ", "head ", "tail ", "grep ", "find ", "ps", "df", "du ",
	"free", "uptime", "whoami", "pwd", "date", "echo ", "which ", "uname",
	"wc ", "stat ", "file ", "env", "hostname",
	"git status", "git log", "git diff", "git branch", "git show",
}

// Gate classifies commands. The zero value is a usable fail-open gate.
type Gate struct {
	// FailClosed moves the default tier from allowed-without-confirmation
	// to requires-confirmation. Blocked, dangerous and whitelisted tiers
	// are unaffected.
	FailClosed bool
}

// NewGate creates a gate with the given default-tier posture.
func NewGate(failClosed bool) *Gate {
	return &Gate{FailClosed: failClosed}
}

// ValidateCommand classifies a command without executing it.
func (g *Gate) ValidateCommand(command string) Verdict {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return Verdict{Tier: TierBlocked, Reason: "Empty command"}
	}

	for _, p := range blockedPatterns {
		if p.re.MatchString(trimmed) {
			return Verdict{Tier: TierBlocked, Reason: p.reason}
		}
	}

	for _, p := range dangerousPatterns {
		if p.re.MatchString(trimmed) {
			return Verdict{
				Tier:                 TierDangerous,
				Allowed:              true,
				RequiresConfirmation: true,
				Reason:               p.reason,
			}
		}
	}

	for _, prefix := range whitelistPrefixes {
		if trimmed == strings.TrimSpace(prefix) || strings.HasPrefix(trimmed, prefix) {
			return Verdict{Tier: TierWhitelisted, Allowed: true, Reason: "Read-only inspection command"}
		}
	}

	if g.FailClosed {
		return Verdict{
			Tier:                 TierDefault,
			Allowed:              true,
			RequiresConfirmation: true,
			Reason:               "Unrecognized command (fail-closed posture)",
		}
	}
	return Verdict{Tier: TierDefault, Allowed: true, Reason: "No risk pattern matched"}
}
