package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/molino-labs/obsidianrag/internal/writer"
)

func (s *Server) registerWriteTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_note",
		Description: "Create a new note. Refuses to overwrite an existing one. An optional template from the vault's template folder is expanded with title, date and tag values.",
	}, s.handleCreateNote)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "append_to_note",
		Description: "Append content to the end of an existing note.",
	}, s.handleAppendToNote)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "append_to_section",
		Description: "Insert content at the end of a named heading section. With create_if_missing the section is added at the bottom.",
	}, s.handleAppendToSection)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "edit_note",
		Description: "Replace the body of an existing note. The original creation date is preserved and the updated date is refreshed.",
	}, s.handleEditNote)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_note",
		Description: "Soft-delete a note into the vault's .trash folder. Requires confirm=true.",
	}, s.handleDeleteNote)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_and_replace",
		Description: "Replace a literal string across notes. Defaults to a preview; set preview=false to apply. Hard cap of 100 replacements per call.",
	}, s.handleSearchAndReplace)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "quick_capture",
		Description: "Append a timestamped line to the vault inbox note.",
	}, s.handleQuickCapture)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_templates",
		Description: "List the note templates available in the vault's template folder.",
	}, s.handleListTemplates)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "suggest_folder",
		Description: "Suggest destination folders for new content by voting over its most similar indexed notes.",
	}, s.handleSuggestFolder)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_frontmatter",
		Description: "Read a note's front-matter as a key/value map.",
	}, s.handleGetFrontmatter)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_frontmatter",
		Description: "Merge updates into a note's front-matter. A null value deletes the key. The created date is immutable.",
	}, s.handleUpdateFrontmatter)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "manage_tags",
		Description: "Add and remove front-matter tags on a note. Returns the resulting tag list.",
	}, s.handleManageTags)
}

type createNoteInput struct {
	Title       string   `json:"title" jsonschema:"Note title, becomes the file name"`
	Content     string   `json:"content,omitempty" jsonschema:"Note body in markdown"`
	Folder      string   `json:"folder,omitempty" jsonschema:"Destination vault-relative folder"`
	Tags        []string `json:"tags,omitempty" jsonschema:"Front-matter tags"`
	Template    string   `json:"template,omitempty" jsonschema:"Template name from the template folder"`
	Agent       string   `json:"agent,omitempty" jsonschema:"Agent identifier recorded in front-matter"`
	Description string   `json:"description,omitempty" jsonschema:"Short description, available to templates"`
}

func (s *Server) handleCreateNote(ctx context.Context, req *mcp.CallToolRequest, input createNoteInput) (*mcp.CallToolResult, any, error) {
	rel, err := s.writer.Create(input.Title, input.Content, writer.CreateOptions{
		Folder:      input.Folder,
		Tags:        input.Tags,
		Template:    input.Template,
		Agent:       input.Agent,
		Description: input.Description,
	})
	if err != nil {
		return errText(err), nil, nil
	}
	return textResult("Created " + rel), nil, nil
}

type appendToNoteInput struct {
	Name    string `json:"name" jsonschema:"Note name, stem or vault-relative path"`
	Content string `json:"content" jsonschema:"Markdown to append"`
}

func (s *Server) handleAppendToNote(ctx context.Context, req *mcp.CallToolRequest, input appendToNoteInput) (*mcp.CallToolResult, any, error) {
	if err := s.writer.Append(input.Name, input.Content); err != nil {
		return errText(err), nil, nil
	}
	return textResult("Appended to " + input.Name), nil, nil
}

type appendToSectionInput struct {
	Name            string `json:"name" jsonschema:"Note name, stem or vault-relative path"`
	Section         string `json:"section" jsonschema:"Heading text to append under"`
	Content         string `json:"content" jsonschema:"Markdown to insert"`
	CreateIfMissing bool   `json:"create_if_missing" jsonschema:"Create the section when absent"`
}

func (s *Server) handleAppendToSection(ctx context.Context, req *mcp.CallToolRequest, input appendToSectionInput) (*mcp.CallToolResult, any, error) {
	if err := s.writer.AppendToSection(input.Name, input.Section, input.Content, input.CreateIfMissing); err != nil {
		return errText(err), nil, nil
	}
	return textResult(fmt.Sprintf("Appended to %s under %q", input.Name, input.Section)), nil, nil
}

type editNoteInput struct {
	Name    string `json:"name" jsonschema:"Note name, stem or vault-relative path"`
	Content string `json:"content" jsonschema:"Full replacement body"`
}

func (s *Server) handleEditNote(ctx context.Context, req *mcp.CallToolRequest, input editNoteInput) (*mcp.CallToolResult, any, error) {
	if err := s.writer.Edit(input.Name, input.Content); err != nil {
		return errText(err), nil, nil
	}
	return textResult("Edited " + input.Name), nil, nil
}

type deleteNoteInput struct {
	Name    string `json:"name" jsonschema:"Note name, stem or vault-relative path"`
	Confirm bool   `json:"confirm" jsonschema:"Must be true to delete"`
}

func (s *Server) handleDeleteNote(ctx context.Context, req *mcp.CallToolRequest, input deleteNoteInput) (*mcp.CallToolResult, any, error) {
	if err := s.writer.Delete(input.Name, input.Confirm); err != nil {
		return errText(err), nil, nil
	}
	return textResult("Moved " + input.Name + " to .trash"), nil, nil
}

type searchReplaceInput struct {
	Find    string `json:"find" jsonschema:"Literal text to find"`
	Replace string `json:"replace" jsonschema:"Replacement text"`
	Folder  string `json:"folder,omitempty" jsonschema:"Restrict to one vault-relative folder"`
	Preview bool   `json:"preview" jsonschema:"Report matches without writing (recommended first)"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Max replacements, capped at 100"`
}

func (s *Server) handleSearchAndReplace(ctx context.Context, req *mcp.CallToolRequest, input searchReplaceInput) (*mcp.CallToolResult, any, error) {
	report, err := s.writer.SearchAndReplace(input.Find, input.Replace, input.Folder, input.Preview, input.Limit)
	if err != nil {
		return errText(err), nil, nil
	}
	return jsonResult(report), nil, nil
}

type quickCaptureInput struct {
	Content string   `json:"content" jsonschema:"Text to capture"`
	Tags    []string `json:"tags,omitempty" jsonschema:"Tags appended to the captured line"`
}

func (s *Server) handleQuickCapture(ctx context.Context, req *mcp.CallToolRequest, input quickCaptureInput) (*mcp.CallToolResult, any, error) {
	rel, err := s.writer.QuickCapture(input.Content, input.Tags)
	if err != nil {
		return errText(err), nil, nil
	}
	return textResult("Captured in " + rel), nil, nil
}

func (s *Server) handleListTemplates(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	names, err := s.vault.ListTemplates(s.writer.TemplatesFolder())
	if err != nil {
		return errText(err), nil, nil
	}
	if len(names) == 0 {
		return textResult("No templates found."), nil, nil
	}
	return textResult(strings.Join(names, "\n")), nil, nil
}

type suggestFolderInput struct {
	Title   string   `json:"title" jsonschema:"Title of the note being placed"`
	Content string   `json:"content,omitempty" jsonschema:"Note body, improves the suggestion"`
	Tags    []string `json:"tags,omitempty" jsonschema:"Planned tags"`
}

func (s *Server) handleSuggestFolder(ctx context.Context, req *mcp.CallToolRequest, input suggestFolderInput) (*mcp.CallToolResult, any, error) {
	text := input.Title
	if input.Content != "" {
		text += "\n" + input.Content
	}
	if len(input.Tags) > 0 {
		text += "\n" + strings.Join(input.Tags, " ")
	}
	candidates, err := s.suggester.SuggestFolder(ctx, text, 3)
	if err != nil {
		return errText(err), nil, nil
	}
	return jsonResult(candidates), nil, nil
}

type noteNameInput struct {
	Name string `json:"name" jsonschema:"Note name, stem or vault-relative path"`
}

func (s *Server) handleGetFrontmatter(ctx context.Context, req *mcp.CallToolRequest, input noteNameInput) (*mcp.CallToolResult, any, error) {
	meta, err := s.writer.GetFrontmatter(input.Name)
	if err != nil {
		return errText(err), nil, nil
	}
	if meta.Len() == 0 {
		return textResult("No front-matter."), nil, nil
	}
	return jsonResult(meta.Flatten()), nil, nil
}

type updateFrontmatterInput struct {
	Name    string         `json:"name" jsonschema:"Note name, stem or vault-relative path"`
	Updates map[string]any `json:"updates" jsonschema:"Keys to set; null deletes a key"`
}

func (s *Server) handleUpdateFrontmatter(ctx context.Context, req *mcp.CallToolRequest, input updateFrontmatterInput) (*mcp.CallToolResult, any, error) {
	if err := s.writer.UpdateFrontmatter(input.Name, input.Updates); err != nil {
		return errText(err), nil, nil
	}
	return textResult("Front-matter updated on " + input.Name), nil, nil
}

type manageTagsInput struct {
	Name   string   `json:"name" jsonschema:"Note name, stem or vault-relative path"`
	Add    []string `json:"add,omitempty" jsonschema:"Tags to add"`
	Remove []string `json:"remove,omitempty" jsonschema:"Tags to remove"`
}

func (s *Server) handleManageTags(ctx context.Context, req *mcp.CallToolRequest, input manageTagsInput) (*mcp.CallToolResult, any, error) {
	tags, err := s.writer.ManageTags(input.Name, input.Add, input.Remove)
	if err != nil {
		return errText(err), nil, nil
	}
	if len(tags) == 0 {
		return textResult("No tags."), nil, nil
	}
	return textResult("Tags: " + strings.Join(tags, ", ")), nil, nil
}
