package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/scorelink/pkg/client"
	"github.com/rmax-ai/scorelink/pkg/protocol"
)

const promptName = "scorelink-aware"

// Server adapts the scoring engine to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	client    *client.Client
}

// NewServer creates a new MCP server instance backed by c.
func NewServer(c *client.Client) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"scorelink",
			client.Version,
		),
		client: c,
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"scorelink://nodes",
		"Graph Nodes",
		mcp.WithResourceDescription("Every node id in the aggregate graph"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadNodes)

	s.mcpServer.AddResource(mcp.NewResource(
		"scorelink://edges",
		"Graph Edges",
		mcp.WithResourceDescription("Every edge of the aggregate graph with summed weights"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadEdges)
}

// --- Tools ---

func contextArg() mcp.ToolOption {
	return mcp.WithString("context", mcp.Description("Context name. Omit for the aggregate (reads) or the default bucket (writes)"))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"ping",
		mcp.WithDescription("Report the scoring engine version."),
	), s.handlePing)

	s.mcpServer.AddTool(mcp.NewTool(
		"node_score",
		mcp.WithDescription("Score that one node assigns another."),
		mcp.WithString("src", mcp.Required(), mcp.Description("Ego node")),
		mcp.WithString("dst", mcp.Required(), mcp.Description("Target node")),
		contextArg(),
	), s.handleNodeScore)

	s.mcpServer.AddTool(mcp.NewTool(
		"scores",
		mcp.WithDescription("Ranked scores assigned by a node, with optional bounds and paging."),
		mcp.WithString("src", mcp.Required(), mcp.Description("Ego node")),
		contextArg(),
		mcp.WithString("prefix", mcp.Description("Keep only targets starting with this prefix")),
		mcp.WithBoolean("hide_personal", mcp.Description("Hide the ego's personal nodes")),
		mcp.WithNumber("lt", mcp.Description("Score strictly below")),
		mcp.WithNumber("lte", mcp.Description("Score at most")),
		mcp.WithNumber("gt", mcp.Description("Score strictly above")),
		mcp.WithNumber("gte", mcp.Description("Score at least")),
		mcp.WithNumber("index", mcp.Description("Rows to skip")),
		mcp.WithNumber("count", mcp.Description("Maximum rows")),
	), s.handleScores)

	s.mcpServer.AddTool(mcp.NewTool(
		"graph",
		mcp.WithDescription("Scored edges of the neighborhood linking src and focus."),
		mcp.WithString("src", mcp.Required(), mcp.Description("Ego node")),
		mcp.WithString("focus", mcp.Required(), mcp.Description("Focus node")),
		contextArg(),
		mcp.WithBoolean("positive_only", mcp.Description("Drop non-positive scores")),
		mcp.WithNumber("index", mcp.Description("Rows to skip")),
		mcp.WithNumber("count", mcp.Description("Maximum rows")),
	), s.handleGraph)

	s.mcpServer.AddTool(mcp.NewTool(
		"connected",
		mcp.WithDescription("Outgoing connections of a node."),
		mcp.WithString("src", mcp.Required(), mcp.Description("Node")),
		contextArg(),
	), s.handleConnected)

	s.mcpServer.AddTool(mcp.NewTool(
		"mutual_scores",
		mcp.WithDescription("Scores exchanged in both directions between a node and its peers."),
		mcp.WithString("src", mcp.Required(), mcp.Description("Node")),
		contextArg(),
	), s.handleMutualScores)

	s.mcpServer.AddTool(mcp.NewTool(
		"put_edge",
		mcp.WithDescription("Create or overwrite a weighted edge."),
		mcp.WithString("src", mcp.Required(), mcp.Description("Source node")),
		mcp.WithString("dst", mcp.Required(), mcp.Description("Target node")),
		mcp.WithNumber("weight", mcp.Required(), mcp.Description("Edge weight")),
		contextArg(),
	), s.handlePutEdge)

	s.mcpServer.AddTool(mcp.NewTool(
		"delete_edge",
		mcp.WithDescription("Remove an edge from one context."),
		mcp.WithString("src", mcp.Required(), mcp.Description("Source node")),
		mcp.WithString("dst", mcp.Required(), mcp.Description("Target node")),
		contextArg(),
	), s.handleDeleteEdge)

	s.mcpServer.AddTool(mcp.NewTool(
		"delete_node",
		mcp.WithDescription("Remove a node and its edges from one context."),
		mcp.WithString("src", mcp.Required(), mcp.Description("Node")),
		contextArg(),
	), s.handleDeleteNode)

	s.mcpServer.AddTool(mcp.NewTool(
		"synchronize",
		mcp.WithDescription("Wait until the engine has applied every queued write."),
		mcp.WithNumber("timeout_ms", mcp.Description("Maximum wait in milliseconds")),
	), s.handleSynchronize)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		promptName,
		mcp.WithPromptDescription("Explains scoring concepts (nodes, edges, contexts, aggregate)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadNodes(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	nodes, err := s.client.NodeList(ctx, protocol.Aggregate())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nodes: %w", err)
	}
	return jsonResource(request.Params.URI, nodes)
}

func (s *Server) handleReadEdges(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	edges, err := s.client.EdgeList(ctx, protocol.Aggregate())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch edges: %w", err)
	}
	return jsonResource(request.Params.URI, edges)
}

// toolJSON renders a successful result, or the engine failure as a tool
// error the agent can read.
func toolJSON(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("engine error: %v", err)), nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolAck(err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("engine error: %v", err)), nil
	}
	return mcp.NewToolResultText("Ok"), nil
}

func readTarget(request mcp.CallToolRequest) protocol.ReadTarget {
	if name := mcp.ParseString(request, "context", ""); name != "" {
		return protocol.ReadFrom(name)
	}
	return protocol.Aggregate()
}

func writeTarget(request mcp.CallToolRequest) protocol.WriteTarget {
	if name := mcp.ParseString(request, "context", ""); name != "" {
		return protocol.WriteTo(name)
	}
	return protocol.DefaultBucket()
}

func optFloat(request mcp.CallToolRequest, key string) *float64 {
	if _, ok := request.GetArguments()[key]; !ok {
		return nil
	}
	return protocol.Float(mcp.ParseFloat64(request, key, 0))
}

func optUint(request mcp.CallToolRequest, key string) *uint32 {
	if _, ok := request.GetArguments()[key]; !ok {
		return nil
	}
	return protocol.Uint(mcp.ParseUInt32(request, key, 0))
}

func (s *Server) handlePing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := s.client.Ping(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("engine error: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Engine: %s\nConnector: %s\nURL: %s", v, s.client.ConnectorVersion(), s.client.ServiceURL())), nil
}

func (s *Server) handleNodeScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src := mcp.ParseString(request, "src", "")
	dst := mcp.ParseString(request, "dst", "")
	return toolJSON(s.client.NodeScore(ctx, src, dst, readTarget(request)))
}

func (s *Server) handleScores(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := client.ScoresOptions{
		Context:      readTarget(request),
		Prefix:       mcp.ParseString(request, "prefix", ""),
		HidePersonal: mcp.ParseBoolean(request, "hide_personal", false),
		Lt:           optFloat(request, "lt"),
		Lte:          optFloat(request, "lte"),
		Gt:           optFloat(request, "gt"),
		Gte:          optFloat(request, "gte"),
		Index:        optUint(request, "index"),
		Count:        optUint(request, "count"),
	}
	return toolJSON(s.client.Scores(ctx, mcp.ParseString(request, "src", ""), opts))
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := client.GraphOptions{
		Context:      readTarget(request),
		PositiveOnly: mcp.ParseBoolean(request, "positive_only", false),
		Index:        optUint(request, "index"),
		Count:        optUint(request, "count"),
	}
	src := mcp.ParseString(request, "src", "")
	focus := mcp.ParseString(request, "focus", "")
	return toolJSON(s.client.Graph(ctx, src, focus, opts))
}

func (s *Server) handleConnected(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolJSON(s.client.Connected(ctx, mcp.ParseString(request, "src", ""), readTarget(request)))
}

func (s *Server) handleMutualScores(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolJSON(s.client.MutualScores(ctx, mcp.ParseString(request, "src", ""), readTarget(request)))
}

func (s *Server) handlePutEdge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src := mcp.ParseString(request, "src", "")
	dst := mcp.ParseString(request, "dst", "")
	weight := mcp.ParseFloat64(request, "weight", 0)
	return toolJSON(s.client.PutEdge(ctx, src, dst, weight, writeTarget(request)))
}

func (s *Server) handleDeleteEdge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src := mcp.ParseString(request, "src", "")
	dst := mcp.ParseString(request, "dst", "")
	return toolAck(s.client.DeleteEdge(ctx, src, dst, writeTarget(request)))
}

func (s *Server) handleDeleteNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolAck(s.client.DeleteNode(ctx, mcp.ParseString(request, "src", ""), writeTarget(request)))
}

func (s *Server) handleSynchronize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var timeout time.Duration
	if ms := optUint(request, "timeout_ms"); ms != nil {
		timeout = time.Duration(*ms) * time.Millisecond
	}
	return toolAck(s.client.Synchronize(ctx, timeout))
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != promptName {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with a graph-scoring engine.

Concepts:
- Node: an identifier such as a user or a document (e.g., 'U1').
- Edge: a weighted, directed link between two nodes.
- Context: a named layer of edges (e.g., 'imported', 'manual'). Writes without a context go to the default bucket.
- Aggregate: a read without a context sums the default bucket and every named context.
- Score: how much one node trusts another, derived from the edge weights.

Use 'scores' to rank the nodes a user trusts and 'node_score' for one pair.
After writing edges, call 'synchronize' before relying on aggregate reads.
`

	return mcp.NewGetPromptResult(
		promptName,
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
