package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/scrypster/volition/internal/llm"
)

// Role is a specialized sub-agent perspective.
type Role string

const (
	RoleResearch       Role = "research"
	RoleImplementation Role = "implementation"
	RoleRefactor       Role = "refactor"
	RoleAudit          Role = "audit"
)

// AllRoles is the fixed dispatch set, invoked concurrently.
var AllRoles = []Role{RoleResearch, RoleImplementation, RoleRefactor, RoleAudit}

// roleInstructions are the per-role instruction templates prepended to the
// shared context excerpt.
var roleInstructions = map[Role]string{
	RoleResearch: "You are a research specialist. Identify unknowns, missing " +
		"information, and questions worth investigating in the situation below.",
	RoleImplementation: "You are an implementation specialist. Propose concrete " +
		"next steps and actionable work items for the situation below.",
	RoleRefactor: "You are a refactoring specialist. Identify redundant, stale, " +
		"or poorly structured goals and actions in the situation below and " +
		"suggest how to restructure them.",
	RoleAudit: "You are an audit specialist. Review the situation below for " +
		"risks, inconsistencies, and items that look stuck or abandoned.",
}

// RoleResult is one role's outcome.
type RoleResult struct {
	Role     Role
	Response string
	Err      error
}

// DispatchRoles invokes every role concurrently against a shared context
// excerpt truncated to maxContext characters. Each role gets exactly one
// attempt. The returned map contains an entry per role; callers use only
// the successes.
func DispatchRoles(ctx context.Context, gen llm.TextGenerator, contextText string, maxContext int) map[Role]RoleResult {
	if maxContext > 0 && len(contextText) > maxContext {
		contextText = contextText[:maxContext]
	}

	results := make(map[Role]RoleResult, len(AllRoles))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, role := range AllRoles {
		wg.Add(1)
		go func(role Role) {
			defer wg.Done()
			prompt := fmt.Sprintf("%s\n\n%s", roleInstructions[role], contextText)
			response, err := gen.Complete(ctx, prompt)
			mu.Lock()
			results[role] = RoleResult{Role: role, Response: response, Err: err}
			mu.Unlock()
		}(role)
	}
	wg.Wait()
	return results
}

// MergeRoleReports joins the successful role responses into one report
// keyed by role, in AllRoles order. Failed roles are omitted.
func MergeRoleReports(results map[Role]RoleResult) string {
	report := ""
	for _, role := range AllRoles {
		r, ok := results[role]
		if !ok || r.Err != nil || r.Response == "" {
			continue
		}
		report += fmt.Sprintf("## %s\n%s\n\n", role, r.Response)
	}
	return report
}
