package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pantheonai/enginuity/internal/answer"
	"github.com/pantheonai/enginuity/internal/retrieval"
	"github.com/pantheonai/enginuity/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store       *storage.Store
	Retriever   QueryRetriever
	Synthesizer *answer.Synthesizer
	TopK        int
	Metric      retrieval.Metric
}

// NewMCPServer creates an MCP server exposing the knowledge base as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"enginuity",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("enginuity — document knowledge base for semantic search and grounded question answering."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search",
			mcp.WithDescription("Semantically search the ingested documents and return relevant chunks with distances."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearch(deps),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a question grounded in the ingested documents."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("list_documents",
			mcp.WithDescription("List ingested documents."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of documents (default 20)")),
		),
		mcpListDocuments(deps),
	)

	return s
}

func mcpSearch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", deps.TopK)
		if limit <= 0 {
			limit = deps.TopK
		}
		if limit > 50 {
			limit = 50
		}

		chunks, err := deps.Retriever.Retrieve(ctx, query, limit, deps.Metric)
		if errors.Is(err, retrieval.ErrNoContext) {
			return mcpText("[]"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		type chunkResult struct {
			ID       string  `json:"id"`
			DocID    string  `json:"doc_id"`
			Text     string  `json:"text"`
			Distance float64 `json:"distance"`
		}
		results := make([]chunkResult, len(chunks))
		for i, c := range chunks {
			results[i] = chunkResult{
				ID:       c.ID,
				DocID:    c.DocID,
				Text:     c.Text,
				Distance: c.Distance,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		chunks, retrievalErr := deps.Retriever.Retrieve(ctx, question, deps.TopK, deps.Metric)
		result, err := deps.Synthesizer.Answer(ctx, question, chunks, retrievalErr)
		if err != nil {
			return mcpError(fmt.Sprintf("answering failed: %v", err)), nil
		}
		return mcpText(result.Answer), nil
	}
}

func mcpListDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}

		docs, err := deps.Store.ListDocuments(limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list documents: %v", err)), nil
		}

		type docSummary struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Filename  string `json:"filename"`
			CreatedAt string `json:"created_at"`
		}
		summaries := make([]docSummary, len(docs))
		for i, d := range docs {
			summaries[i] = docSummary{
				ID:        d.ID,
				Title:     d.Title,
				Filename:  d.Filename,
				CreatedAt: d.CreatedAt.Format("2006-01-02 15:04"),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal documents: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
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
