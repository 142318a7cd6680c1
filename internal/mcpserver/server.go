// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes ofmock tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ofmock/internal/mockservice"
)

const (
	rulesURI          = "ofmock://generation-rules"
	contractURIPrefix = "ofmock://contracts/"
)

// Server wraps the MCP server with ofmock tools.
type Server struct {
	mcp *server.MCPServer
	svc *mockservice.Service
}

// New creates a new MCP server with all ofmock tools registered.
func New(svc *mockservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"ofmock",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_contracts",
		mcp.WithDescription("List the loaded API contracts with their category and store key."),
		mcp.WithString("category", mcp.Description("Optional category filter (e.g. consents, accounts)")),
	), s.listContracts)

	s.mcp.AddTool(mcp.NewTool("get_contract_details",
		mcp.WithDescription("Return the schemas, fields, constraints and endpoints of one contract."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Contract title or category")),
	), s.getContractDetails)

	s.mcp.AddTool(mcp.NewTool("generate_mock_data",
		mcp.WithDescription("Generate records that satisfy a schema's constraints. "+
			"Read ofmock://generation-rules for how values are chosen."),
		mcp.WithString("contract", mcp.Required(), mcp.Description("Contract title or category")),
		mcp.WithString("schema", mcp.Required(), mcp.Description("Schema name inside the contract")),
		mcp.WithNumber("count", mcp.Description("Number of records (default 1)")),
		mcp.WithBoolean("register", mcp.Description("Store the records so they can be correlated")),
	), s.generateMockData)

	s.mcp.AddTool(mcp.NewTool("get_correlated_data",
		mcp.WithDescription("Find a registered record by field value and the records linked to it."),
		mcp.WithString("contract", mcp.Required(), mcp.Description("Contract of the record")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Field to match (dotted paths allowed)")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Value to match")),
		mcp.WithNumber("depth", mcp.Description("Correlation hops to follow (default 1)")),
	), s.getCorrelatedData)

	s.mcp.AddTool(mcp.NewTool("get_correlation_graph",
		mcp.WithDescription("Return the correlation rules between contracts."),
		mcp.WithString("contract", mcp.Description("Only rules touching this contract")),
	), s.getCorrelationGraph)

	s.mcp.AddTool(mcp.NewTool("build_correlated_tree",
		mcp.WithDescription("Generate and register a tree of linked records starting from one key value. "+
			"The same key always produces the same tree."),
		mcp.WithString("contract", mcp.Required(), mcp.Description("Contract of the root record")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Key field of the root record")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Key value forced into the root record")),
		mcp.WithString("schema", mcp.Description("Root schema (default: first schema declaring field)")),
		mcp.WithNumber("depth", mcp.Description("Levels below the root (default 2)")),
		mcp.WithNumber("fan_out", mcp.Description("Children per one-to-many rule")),
	), s.buildCorrelatedTree)

	s.mcp.AddTool(mcp.NewTool("search_schemas",
		mcp.WithDescription("Search schemas and fields by name or description."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.searchSchemas)

	s.mcp.AddTool(mcp.NewTool("upload_contract",
		mcp.WithDescription("Add an OpenAPI or Swagger document to the contracts directory."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path ending in .yaml, .yml or .json")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Document content")),
	), s.uploadContract)

	s.mcp.AddResource(
		mcp.NewResource(rulesURI, "Generation Rules",
			mcp.WithResourceDescription("How field values are generated and which regex constructs are supported."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRulesResource,
	)

	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(contractURIPrefix+"{name}", "Contract",
			mcp.WithTemplateDescription("Full description of a loaded contract."),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listContracts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListContracts(ctx, req.GetString("category", "")))
}

func (s *Server) getContractDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Contract(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(d)
}

func (s *Server) generateMockData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contract, err := req.RequireString("contract")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	schemaName, err := req.RequireString("schema")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.GenerateRecords(ctx, contract, schemaName, req.GetInt("count", 0), req.GetBool("register", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) getCorrelatedData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contract, err := req.RequireString("contract")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	field, err := req.RequireString("field")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, ok := req.GetArguments()["value"]
	if !ok {
		return mcp.NewToolResultError(`required argument "value" not found`), nil
	}
	res, err := s.svc.FindCorrelated(ctx, contract, field, value, req.GetInt("depth", 1))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) getCorrelationGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if contract := req.GetString("contract", ""); contract != "" {
		return jsonResult(map[string]any{"rules": s.svc.RulesFor(ctx, contract)})
	}
	return jsonResult(s.svc.CorrelationGraph(ctx))
}

func (s *Server) buildCorrelatedTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contract, err := req.RequireString("contract")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	field, err := req.RequireString("field")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, ok := req.GetArguments()["value"]
	if !ok {
		return mcp.NewToolResultError(`required argument "value" not found`), nil
	}
	tree, err := s.svc.BuildTree(ctx, mockservice.TreeRequest{
		Contract: contract,
		Schema:   req.GetString("schema", ""),
		Field:    field,
		Value:    value,
		Depth:    req.GetInt("depth", 0),
		FanOut:   req.GetInt("fan_out", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tree)
}

func (s *Server) searchSchemas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matching schemas or fields"), nil
	}
	return jsonResult(results)
}

func (s *Server) uploadContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sum, err := s.svc.UploadContract(ctx, path, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("uploaded: %s (%s, category %s)", path, sum.Name, sum.Category)), nil
}

func (s *Server) readRulesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rulesURI,
			MIMEType: "text/markdown",
			Text:     GenerationRules,
		},
	}, nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	name, err := url.PathUnescape(strings.TrimPrefix(uri, contractURIPrefix))
	if err != nil || name == "" || !strings.HasPrefix(uri, contractURIPrefix) {
		return nil, fmt.Errorf("invalid contract uri: %s", uri)
	}
	d, err := s.svc.Contract(ctx, name)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
