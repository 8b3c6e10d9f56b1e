package mcp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/molino-labs/obsidianrag/internal/result"
)

func (s *Server) registerNavTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_notes",
		Description: "List the markdown notes of the vault, optionally under one folder. Returns vault-relative paths.",
	}, s.handleListNotes)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "read_note",
		Description: "Read the full content of a note by name, stem or vault-relative path.",
	}, s.handleReadNote)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_text",
		Description: "Literal, case-insensitive text search across notes. Use titles_only to match note names instead of content.",
	}, s.handleSearchText)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_by_date",
		Description: "Find notes created inside a date range (YYYY-MM-DD). The creation date comes from front-matter, falling back to file modification time.",
	}, s.handleSearchByDate)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "move_note",
		Description: "Move or rename a note to a new vault-relative path. Restricted folders refuse both endpoints.",
	}, s.handleMoveNote)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "random_concept",
		Description: "Return a random indexable note, optionally restricted to one folder. Useful for spaced review.",
	}, s.handleRandomConcept)
}

type listNotesInput struct {
	Folder  string `json:"folder,omitempty" jsonschema:"Vault-relative folder, empty for the whole vault"`
	Recurse bool   `json:"recurse" jsonschema:"Include notes in subfolders"`
}

func (s *Server) handleListNotes(ctx context.Context, req *mcp.CallToolRequest, input listNotesInput) (*mcp.CallToolResult, any, error) {
	paths, err := s.vault.ListNotes(input.Folder, input.Recurse)
	if err != nil {
		return errText(err), nil, nil
	}
	visible := paths[:0]
	for _, rel := range paths {
		if forbidden, _ := s.policy.IsForbidden(rel); !forbidden {
			visible = append(visible, rel)
		}
	}
	if len(visible) == 0 {
		return textResult("No notes found."), nil, nil
	}
	return textResult(strings.Join(visible, "\n")), nil, nil
}

type readNoteInput struct {
	Name string `json:"name" jsonschema:"Note name, stem or vault-relative path"`
}

func (s *Server) handleReadNote(ctx context.Context, req *mcp.CallToolRequest, input readNoteInput) (*mcp.CallToolResult, any, error) {
	abs, err := s.vault.FindNote(input.Name)
	if err != nil {
		return errText(err), nil, nil
	}
	checked, err := s.policy.CheckAccess(abs, "read")
	if err != nil {
		return errText(err), nil, nil
	}
	content, err := os.ReadFile(checked)
	if err != nil {
		return errText(result.Wrap(result.KindInternal, err, "read %s", input.Name)), nil, nil
	}
	return textResult(string(content)), nil, nil
}

type searchTextInput struct {
	Text       string `json:"text" jsonschema:"Literal text to find"`
	Folder     string `json:"folder,omitempty" jsonschema:"Restrict to one vault-relative folder"`
	TitlesOnly bool   `json:"titles_only" jsonschema:"Match note names instead of content"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Max results (default 50)"`
}

func (s *Server) handleSearchText(ctx context.Context, req *mcp.CallToolRequest, input searchTextInput) (*mcp.CallToolResult, any, error) {
	hits, err := s.vault.SearchText(input.Text, input.Folder, input.TitlesOnly, input.Limit)
	if err != nil {
		return errText(err), nil, nil
	}
	var visible []string
	for _, h := range hits {
		if forbidden, _ := s.policy.IsForbidden(h.Path); forbidden {
			continue
		}
		line := h.Path
		if h.Snippet != "" {
			line = fmt.Sprintf("%s:%d: %s", h.Path, h.Line, s.sanitizeSnippet(h.Snippet))
		}
		visible = append(visible, line)
	}
	if len(visible) == 0 {
		return textResult("No matches."), nil, nil
	}
	return textResult(strings.Join(visible, "\n")), nil, nil
}

type searchByDateInput struct {
	From string `json:"from" jsonschema:"Range start, YYYY-MM-DD"`
	To   string `json:"to,omitempty" jsonschema:"Range end, YYYY-MM-DD (default today)"`
}

func (s *Server) handleSearchByDate(ctx context.Context, req *mcp.CallToolRequest, input searchByDateInput) (*mcp.CallToolResult, any, error) {
	from, err := time.Parse("2006-01-02", input.From)
	if err != nil {
		return errText(result.Validationf("invalid from date %q, want YYYY-MM-DD", input.From)), nil, nil
	}
	var to time.Time
	if input.To != "" {
		to, err = time.Parse("2006-01-02", input.To)
		if err != nil {
			return errText(result.Validationf("invalid to date %q, want YYYY-MM-DD", input.To)), nil, nil
		}
	}
	paths, err := s.vault.SearchByDate(from, to)
	if err != nil {
		return errText(err), nil, nil
	}
	var visible []string
	for _, rel := range paths {
		if forbidden, _ := s.policy.IsForbidden(rel); !forbidden {
			visible = append(visible, rel)
		}
	}
	if len(visible) == 0 {
		return textResult("No notes in that range."), nil, nil
	}
	return textResult(strings.Join(visible, "\n")), nil, nil
}

type moveNoteInput struct {
	Src           string `json:"src" jsonschema:"Note to move (name or path)"`
	Dst           string `json:"dst" jsonschema:"Destination vault-relative path"`
	CreateParents bool   `json:"create_parents" jsonschema:"Create missing destination folders"`
}

func (s *Server) handleMoveNote(ctx context.Context, req *mcp.CallToolRequest, input moveNoteInput) (*mcp.CallToolResult, any, error) {
	rel, err := s.writer.Move(input.Src, input.Dst, input.CreateParents)
	if err != nil {
		return errText(err), nil, nil
	}
	return textResult("Moved to " + rel), nil, nil
}

type randomConceptInput struct {
	Folder string `json:"folder,omitempty" jsonschema:"Restrict to one vault-relative folder"`
}

func (s *Server) handleRandomConcept(ctx context.Context, req *mcp.CallToolRequest, input randomConceptInput) (*mcp.CallToolResult, any, error) {
	rel, err := s.vault.RandomConcept(input.Folder)
	if err != nil {
		return errText(err), nil, nil
	}
	if forbidden, _ := s.policy.IsForbidden(rel); forbidden {
		return textResult("No notes available."), nil, nil
	}
	raw, err := os.ReadFile(s.vault.Abs(rel))
	if err != nil {
		return errText(result.Wrap(result.KindInternal, err, "read %s", rel)), nil, nil
	}
	return textResult(rel + "\n\n" + s.sanitizeSnippet(string(raw))), nil, nil
}
