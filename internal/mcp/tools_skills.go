package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerSkillTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_skills",
		Description: "List the agent skills defined in the vault.",
	}, s.handleListSkills)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_skill",
		Description: "Return the full instructions of one skill.",
	}, s.handleGetSkill)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_global_rules",
		Description: "Return the vault's global agent rules note.",
	}, s.handleGetGlobalRules)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "refresh_skill_cache",
		Description: "Drop the cached skill list so the next call re-reads from disk.",
	}, s.handleRefreshSkillCache)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "generate_skill",
		Description: "Scaffold a new skill directory with its definition file. Existing skills are never overwritten.",
	}, s.handleGenerateSkill)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "sync_skills",
		Description: "Check every skill directory for a missing or mismatched definition. With apply, missing definitions are scaffolded.",
	}, s.handleSyncSkills)
}

func (s *Server) handleListSkills(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	all, err := s.skills.List()
	if err != nil {
		return errText(err), nil, nil
	}
	if len(all) == 0 {
		return textResult("No skills defined."), nil, nil
	}
	var b strings.Builder
	for _, sk := range all {
		fmt.Fprintf(&b, "- %s: %s\n", sk.Name, sk.Description)
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil, nil
}

type getSkillInput struct {
	Name string `json:"name" jsonschema:"Skill name"`
}

func (s *Server) handleGetSkill(ctx context.Context, req *mcp.CallToolRequest, input getSkillInput) (*mcp.CallToolResult, any, error) {
	sk, err := s.skills.Get(input.Name)
	if err != nil {
		return errText(err), nil, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", sk.Name, sk.Description)
	if len(sk.Tools) > 0 {
		b.WriteString("\nTools: " + strings.Join(sk.Tools, ", ") + "\n")
	}
	b.WriteString("\n" + sk.Body)
	return textResult(b.String()), nil, nil
}

func (s *Server) handleGetGlobalRules(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	rules, err := s.skills.GlobalRules()
	if err != nil {
		return errText(err), nil, nil
	}
	if rules == "" {
		return textResult("No global rules defined."), nil, nil
	}
	return textResult(rules), nil, nil
}

func (s *Server) handleRefreshSkillCache(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	s.skills.Refresh()
	return textResult("Skill cache refreshed."), nil, nil
}

type generateSkillInput struct {
	Name         string   `json:"name" jsonschema:"Skill name, lowercase words separated by hyphens"`
	Description  string   `json:"description" jsonschema:"One-line description"`
	Instructions string   `json:"instructions" jsonschema:"Step-by-step instructions"`
	Tools        []string `json:"tools,omitempty" jsonschema:"MCP tools the skill relies on"`
}

func (s *Server) handleGenerateSkill(ctx context.Context, req *mcp.CallToolRequest, input generateSkillInput) (*mcp.CallToolResult, any, error) {
	rel, err := s.skills.Generate(input.Name, input.Description, input.Instructions, input.Tools)
	if err != nil {
		return errText(err), nil, nil
	}
	return textResult("Skill created at " + rel), nil, nil
}

type syncSkillsInput struct {
	Apply bool `json:"apply" jsonschema:"Scaffold missing definitions instead of only reporting"`
}

func (s *Server) handleSyncSkills(ctx context.Context, req *mcp.CallToolRequest, input syncSkillsInput) (*mcp.CallToolResult, any, error) {
	report, err := s.skills.Sync(input.Apply)
	if err != nil {
		return errText(err), nil, nil
	}
	if len(report.Missing) == 0 && len(report.Mismatched) == 0 {
		return textResult("Skills are in sync."), nil, nil
	}
	return jsonResult(report), nil, nil
}
