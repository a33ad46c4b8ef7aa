package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tunnelforge/tunnelforge/src/session"
)

// SessionsListInput is the input for sessionsList (empty).
type SessionsListInput struct{}

// SessionsListOutput is the output for sessionsList.
type SessionsListOutput struct {
	Sessions []session.Snapshot `json:"sessions"`
}

// SessionCreateInput is the input for sessionCreate.
type SessionCreateInput struct {
	Command    []string `json:"command" jsonschema:"The argv to spawn"`
	WorkingDir string   `json:"workingDir,omitempty" jsonschema:"Working directory; empty inherits the server process's working directory"`
	Name       string   `json:"name,omitempty" jsonschema:"Optional display name"`
	Cols       int      `json:"cols,omitempty" jsonschema:"Terminal width in columns"`
	Rows       int      `json:"rows,omitempty" jsonschema:"Terminal height in rows"`
}

// SessionCreateOutput is the output for sessionCreate.
type SessionCreateOutput struct {
	Session session.Snapshot `json:"session"`
}

// SessionIdentifierInput is the input for tools keyed by session id.
type SessionIdentifierInput struct {
	ID string `json:"id" jsonschema:"Session id"`
}

// SessionResizeInput is the input for sessionResize.
type SessionResizeInput struct {
	ID   string `json:"id" jsonschema:"Session id"`
	Cols int    `json:"cols" jsonschema:"Terminal width in columns"`
	Rows int    `json:"rows" jsonschema:"Terminal height in rows"`
}

// SessionInputInput is the input for sessionInput.
type SessionInputInput struct {
	ID   string `json:"id" jsonschema:"Session id"`
	Text string `json:"text" jsonschema:"Literal text to write to the session's stdin"`
}

func (s *Server) registerSessionTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "sessionsList",
		Description: "List every live terminal session",
	}, LogToolCall("sessionsList", func(ctx context.Context, req *mcp.CallToolRequest, input SessionsListInput) (*mcp.CallToolResult, SessionsListOutput, error) {
		return nil, SessionsListOutput{Sessions: s.manager.List()}, nil
	}))

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "sessionCreate",
		Description: "Spawn a new terminal session running the given command",
	}, LogToolCall("sessionCreate", func(ctx context.Context, req *mcp.CallToolRequest, input SessionCreateInput) (*mcp.CallToolResult, SessionCreateOutput, error) {
		sess, err := s.manager.Create(session.CreateOptions{
			Command:    input.Command,
			WorkingDir: input.WorkingDir,
			Name:       input.Name,
			Cols:       uint16(input.Cols),
			Rows:       uint16(input.Rows),
		})
		if err != nil {
			return nil, SessionCreateOutput{}, err
		}
		return nil, SessionCreateOutput{Session: sess.Record.Snapshot()}, nil
	}))

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "sessionGet",
		Description: "Fetch one session's current state",
	}, LogToolCall("sessionGet", func(ctx context.Context, req *mcp.CallToolRequest, input SessionIdentifierInput) (*mcp.CallToolResult, SessionCreateOutput, error) {
		sess, err := s.manager.Get(input.ID)
		if err != nil {
			return nil, SessionCreateOutput{}, err
		}
		return nil, SessionCreateOutput{Session: sess.Record.Snapshot()}, nil
	}))

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "sessionDelete",
		Description: "Terminate a session's process",
	}, LogToolCall("sessionDelete", func(ctx context.Context, req *mcp.CallToolRequest, input SessionIdentifierInput) (*mcp.CallToolResult, struct{}, error) {
		return nil, struct{}{}, s.manager.Delete(input.ID)
	}))

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "sessionResize",
		Description: "Resize a session's terminal dimensions",
	}, LogToolCall("sessionResize", func(ctx context.Context, req *mcp.CallToolRequest, input SessionResizeInput) (*mcp.CallToolResult, struct{}, error) {
		sess, err := s.manager.Get(input.ID)
		if err != nil {
			return nil, struct{}{}, err
		}
		if input.Cols <= 0 || input.Rows <= 0 {
			return nil, struct{}{}, fmt.Errorf("cols and rows must be >= 1")
		}
		_, err = sess.Resize(uint16(input.Cols), uint16(input.Rows), session.ResizeSourceAPI)
		return nil, struct{}{}, err
	}))

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "sessionInput",
		Description: "Write literal text to a session's stdin",
	}, LogToolCall("sessionInput", func(ctx context.Context, req *mcp.CallToolRequest, input SessionInputInput) (*mcp.CallToolResult, struct{}, error) {
		sess, err := s.manager.Get(input.ID)
		if err != nil {
			return nil, struct{}{}, err
		}
		_, err = sess.Write([]byte(input.Text))
		return nil, struct{}{}, err
	}))
}
