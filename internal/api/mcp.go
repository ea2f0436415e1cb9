package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/careerpath/internal/coach"
	"github.com/kalambet/careerpath/internal/profile"
	"github.com/kalambet/careerpath/internal/progress"
	"github.com/kalambet/careerpath/internal/roadmap"
)

// exampleStepID is the step id quoted in the toggle_step description.
const exampleStepID = "core-framework"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service *coach.Service
	Profile *profile.Manager
}

var (
	roleOption     = mcp.WithString("role", mcp.Description("Career role"), mcp.Required(), mcp.Enum("frontend", "backend", "fullstack", "data-ai"))
	levelOption    = mcp.WithString("level", mcp.Description("Experience level"), mcp.Required(), mcp.Enum("beginner", "intermediate", "advanced"))
	timelineOption = mcp.WithString("timeline", mcp.Description("Plan duration: 3-month, 6-month or 12-month"), mcp.Required())
)

// NewMCPServer creates an MCP server with all careerpath tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"careerpath",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("careerpath generates career roadmaps and tracks which skills the user has completed."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_roadmap",
			mcp.WithDescription("Generate the phased learning roadmap for a role, level and timeline."),
			roleOption, levelOption, timelineOption,
		),
		mcpGenerateRoadmap(deps),
	)

	s.AddTool(
		mcp.NewTool("get_progress",
			mcp.WithDescription("Return completed skills and progress of a roadmap."),
			roleOption, levelOption, timelineOption,
		),
		mcpGetProgress(deps),
	)

	s.AddTool(
		mcp.NewTool("toggle_skill",
			mcp.WithDescription("Mark a roadmap skill done, or undone if it already is."),
			roleOption, levelOption, timelineOption,
			mcp.WithString("phase", mcp.Description("Phase id: fundamentals, core, projects or interview"), mcp.Required()),
			mcp.WithString("skill", mcp.Description("Exact skill label as shown in the roadmap"), mcp.Required()),
		),
		mcpToggleSkill(deps),
	)

	s.AddTool(
		mcp.NewTool("reset_progress",
			mcp.WithDescription("Clear all completed skills of a roadmap."),
			roleOption, levelOption, timelineOption,
		),
		mcpResetProgress(deps),
	)

	s.AddTool(
		mcp.NewTool("recommend",
			mcp.WithDescription("Suggest the next skill, the weakest phase and a project for a roadmap."),
			roleOption, levelOption, timelineOption,
		),
		mcpRecommend(deps),
	)

	s.AddTool(
		mcp.NewTool("get_track",
			mcp.WithDescription("Return the step checklist of a role and level with its progress."),
			roleOption, levelOption,
		),
		mcpGetTrack(deps),
	)

	s.AddTool(
		mcp.NewTool("toggle_step",
			mcp.WithDescription("Mark a checklist step done, or undone if it already is."),
			roleOption, levelOption,
			mcp.WithString("step", mcp.Description("Step id, e.g. "+exampleStepID), mcp.Required()),
		),
		mcpToggleStep(deps),
	)

	s.AddTool(
		mcp.NewTool("add_gap_skill",
			mcp.WithDescription("Record a skill the user is missing in their profile."),
			mcp.WithString("skill", mcp.Description("Skill label"), mcp.Required()),
		),
		mcpAddGapSkill(deps),
	)

	s.AddTool(
		mcp.NewTool("scan_resume",
			mcp.WithDescription("Record every fundamentals and core skill the resume text does not mention as a skill gap."),
			roleOption, levelOption, timelineOption,
			mcp.WithString("text", mcp.Description("Plain resume text"), mcp.Required()),
		),
		mcpScanResume(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://roadmap",
			"Roadmap Profile",
			mcp.WithResourceDescription("Roadmap summary and recent activity as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://overview",
			"Roadmap Overview",
			mcp.WithResourceDescription("Progress of every roadmap the user has started"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceOverview(deps),
	)

	return s
}

func mcpGenerateRoadmap(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sel, err := selectionArgs(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(deps.Service.Roadmap(sel)), nil
	}
}

func mcpGetProgress(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sel, err := selectionArgs(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		st := deps.Service.Progress(ctx, sel)
		return mcpJSON(struct {
			Done     []roadmap.SkillKey `json:"done"`
			Progress progress.Progress  `json:"progress"`
		}{st.Done, st.Progress}), nil
	}
}

func mcpToggleSkill(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sel, err := selectionArgs(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		phase, err := req.RequireString("phase")
		if err != nil {
			return mcpError("phase is required"), nil
		}
		skill, err := req.RequireString("skill")
		if err != nil {
			return mcpError("skill is required"), nil
		}

		st, err := deps.Service.Toggle(ctx, sel, phase, skill)
		if err != nil {
			return mcpError(fmt.Sprintf("toggle failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Progress %d%% (%d/%d skills)", st.Progress.Percentage, st.Progress.Completed, st.Progress.Total)), nil
	}
}

func mcpResetProgress(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sel, err := selectionArgs(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		st := deps.Service.Reset(ctx, sel)
		return mcpText(fmt.Sprintf("Reset %s", st.Key)), nil
	}
}

func mcpRecommend(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sel, err := selectionArgs(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(deps.Service.Recommend(ctx, sel)), nil
	}
}

func mcpGetTrack(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		role, level, err := trackArgs(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(deps.Service.Track(ctx, role, level)), nil
	}
}

func mcpToggleStep(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		role, level, err := trackArgs(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		step, err := req.RequireString("step")
		if err != nil {
			return mcpError("step is required"), nil
		}

		st, err := deps.Service.ToggleStep(ctx, role, level, step)
		if err != nil {
			return mcpError(fmt.Sprintf("toggle failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Progress %d%% (%d/%d steps)", st.Progress.Percentage, st.Progress.Completed, st.Progress.Total)), nil
	}
}

func mcpAddGapSkill(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		skill, err := req.RequireString("skill")
		if err != nil {
			return mcpError("skill is required"), nil
		}

		err = deps.Service.AddGapSkill(skill)
		if errors.Is(err, profile.ErrEmptySkill) {
			return mcpError("skill is required"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add gap skill: %v", err)), nil
		}
		state, err := deps.Profile.GetState()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read profile: %v", err)), nil
		}
		return mcpJSON(state.Roadmap), nil
	}
}

func mcpScanResume(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sel, err := selectionArgs(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		added, err := deps.Service.ScanResume(sel, text)
		if err != nil {
			return mcpError(fmt.Sprintf("scan failed: %v", err)), nil
		}
		if added == nil {
			added = []string{}
		}
		return mcpJSON(added), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		state, err := deps.Profile.GetState()
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		return jsonResource(req.Params.URI, state)
	}
}

func mcpResourceOverview(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries, err := deps.Service.Overview(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to compute overview: %w", err)
		}
		return jsonResource(req.Params.URI, entries)
	}
}

func selectionArgs(req mcp.CallToolRequest) (roadmap.Selection, error) {
	return roadmap.ParseSelection(
		req.GetString("role", ""),
		req.GetString("level", ""),
		req.GetString("timeline", ""),
	)
}

func trackArgs(req mcp.CallToolRequest) (roadmap.Role, roadmap.Level, error) {
	role, err := roadmap.ParseRole(req.GetString("role", ""))
	if err != nil {
		return "", "", err
	}
	level, err := roadmap.ParseLevel(req.GetString("level", ""))
	if err != nil {
		return "", "", err
	}
	return role, level, nil
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
