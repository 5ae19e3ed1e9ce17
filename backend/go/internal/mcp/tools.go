// Package mcp 把归档的检索能力以 MCP 工具的形式暴露给外部 agent。
package mcp

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/archive_service/service"
	"AskArchive/backend/go/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version 是 MCP 服务的版本号
var Version = "0.1.0"

// Archive 是工具调用用到的服务方法。
type Archive interface {
	ListSources(ctx context.Context, userID string) ([]*models.IngestionSource, error)
	Search(ctx context.Context, userID, question string, topK int, sourceID string) ([]schema.RetrievedChunk, error)
	Query(ctx context.Context, userID, sessionID, question string, topK int, sourceID string) (*service.QueryResult, error)
}

// Tools 以固定用户的身份调用归档服务。
type Tools struct {
	archive Archive
	userID  string
}

// NewTools 创建工具集合，userID 不能为空。
func NewTools(archive Archive, userID string) (*Tools, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("mcp: a user id is required")
	}
	return &Tools{archive: archive, userID: userID}, nil
}

// NewServer 创建注册了全部归档工具的 MCP 服务。
func NewServer(t *Tools) *server.MCPServer {
	s := server.NewMCPServer(
		"ask-archive",
		Version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcpgo.NewTool("list_sources",
		mcpgo.WithDescription("List every video and document in the archive."),
	), t.HandleListSources)

	s.AddTool(mcpgo.NewTool("search_archive",
		mcpgo.WithDescription("Return the archived passages most similar to a question, without generating an answer."),
		mcpgo.WithString("question", mcpgo.Required(), mcpgo.Description("Natural language question.")),
		mcpgo.WithNumber("top_k", mcpgo.Description("Maximum number of passages to return.")),
		mcpgo.WithString("source_id", mcpgo.Description("Restrict the search to one video ID or document name.")),
	), t.HandleSearch)

	s.AddTool(mcpgo.NewTool("ask_archive",
		mcpgo.WithDescription("Answer a question using only the archived passages."),
		mcpgo.WithString("question", mcpgo.Required(), mcpgo.Description("Natural language question.")),
		mcpgo.WithNumber("top_k", mcpgo.Description("Maximum number of passages used as context.")),
		mcpgo.WithString("source_id", mcpgo.Description("Restrict the answer to one video ID or document name.")),
	), t.HandleAsk)

	return s
}

// HandleListSources 返回来源列表。
func (t *Tools) HandleListSources(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	sources, err := t.archive.ListSources(ctx, t.userID)
	if err != nil {
		return toolError(err), nil
	}
	if len(sources) == 0 {
		return mcpgo.NewToolResultText("The archive is empty."), nil
	}
	var b strings.Builder
	for _, s := range sources {
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", s.SourceType, s.DisplayName, s.SourceID)
	}
	return mcpgo.NewToolResultText(b.String()), nil
}

// HandleSearch 返回 JSON 格式的检索结果。
func (t *Tools) HandleSearch(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	chunks, err := t.archive.Search(ctx, t.userID, question, req.GetInt("top_k", 0), req.GetString("source_id", ""))
	if err != nil {
		return toolError(err), nil
	}
	if chunks == nil {
		chunks = []schema.RetrievedChunk{}
	}
	data, err := json.Marshal(chunks)
	if err != nil {
		return nil, err
	}
	return mcpgo.NewToolResultText(string(data)), nil
}

// HandleAsk 生成回答，并在末尾列出引用的来源。
func (t *Tools) HandleAsk(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	res, err := t.archive.Query(ctx, t.userID, "", question, req.GetInt("top_k", 0), req.GetString("source_id", ""))
	if err != nil {
		return toolError(err), nil
	}

	var b strings.Builder
	b.WriteString(res.Answer)
	seen := make(map[string]bool)
	for _, c := range res.Sources {
		src, _ := c.Metadata[schema.MetaSource].(string)
		if src == "" || seen[src] {
			continue
		}
		if len(seen) == 0 {
			b.WriteString("\n\nSources:")
		}
		seen[src] = true
		b.WriteString("\n- " + src)
	}
	return mcpgo.NewToolResultText(b.String()), nil
}

// toolError 把服务错误转换为工具错误结果，调用方 agent 可以读到错误类别。
func toolError(err error) *mcpgo.CallToolResult {
	return mcpgo.NewToolResultError(fmt.Sprintf("%s: %v", schema.KindOf(err), err))
}
