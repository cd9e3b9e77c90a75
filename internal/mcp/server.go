// Package mcp serves the call graph index over the Model Context Protocol
// (JSON-RPC 2.0, one message per line on stdin/stdout).
package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/zheng/callmap/internal/display"
	"github.com/zheng/callmap/internal/storage"
)

const (
	protocolVersion = "2024-11-05"
	defaultLimit    = 50
	defaultDepth    = 3
)

// Index is the part of the call graph index the tools query
type Index interface {
	FindFuncsByPattern(pattern string) ([]*storage.Func, error)
	GetUpstreamCallTree(name string, maxDepth int) ([]*storage.CallTreeNode, error)
	GetDownstreamCallTree(name string, maxDepth int) ([]*storage.CallTreeNode, error)
	ListFiles() ([]string, error)
	GetStats() (*storage.Stats, error)
}

// Server implements the MCP protocol for callmap
type Server struct {
	index   Index
	version string
	input   io.Reader
	output  io.Writer
}

// NewServer creates a new MCP server reading requests from in and writing
// responses to out
func NewServer(index Index, version string, in io.Reader, out io.Writer) *Server {
	return &Server{
		index:   index,
		version: version,
		input:   in,
		output:  out,
	}
}

// JSON-RPC types
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCP specific types
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Capabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ToolCallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Run serves requests until the input is exhausted
func (s *Server) Run() error {
	scanner := bufio.NewScanner(s.input)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.sendError(nil, -32700, "Parse error")
			continue
		}

		s.handleRequest(&req)
	}

	return scanner.Err()
}

func (s *Server) handleRequest(req *Request) {
	switch req.Method {
	case "initialize":
		s.sendResult(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "callmap", Version: s.version},
			Capabilities:    Capabilities{Tools: &ToolsCapability{}},
		})
	case "initialized", "notifications/initialized":
		// Notification, no response needed
	case "tools/list":
		s.sendResult(req.ID, map[string]any{"tools": tools()})
	case "tools/call":
		s.handleToolsCall(req)
	default:
		s.sendError(req.ID, -32601, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func tools() []Tool {
	function := Property{Type: "string", Description: "函数名称（支持模糊匹配）"}
	depth := Property{Type: "number", Description: "递归深度，0表示无限", Default: defaultDepth}
	limit := Property{Type: "number", Description: "最多返回的条目数量，默认 50", Default: defaultLimit}

	return []Tool{
		{
			Name:        "callers",
			Description: "查询调用指定函数的上游函数，以调用树的形式返回",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"function": function, "depth": depth},
				Required:   []string{"function"},
			},
		},
		{
			Name:        "callees",
			Description: "查询指定函数调用的下游函数，以调用树的形式返回",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"function": function, "depth": depth},
				Required:   []string{"function"},
			},
		},
		{
			Name:        "search",
			Description: "搜索函数，支持模糊匹配",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"pattern": {Type: "string", Description: "搜索模式（函数名的一部分）"},
					"limit":   limit,
				},
				Required: []string{"pattern"},
			},
		},
		{
			Name:        "files",
			Description: "列出已生成调用图的源文件",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"limit": limit},
			},
		},
		{
			Name:        "stats",
			Description: "返回索引中的文件、节点和边的数量",
			InputSchema: InputSchema{Type: "object"},
		},
	}
}

func (s *Server) handleToolsCall(req *Request) {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, -32602, "Invalid params")
		return
	}

	var result string
	var isError bool

	switch params.Name {
	case "callers":
		result, isError = s.toolTree(params.Arguments, "调用者", s.index.GetUpstreamCallTree)
	case "callees":
		result, isError = s.toolTree(params.Arguments, "被调用", s.index.GetDownstreamCallTree)
	case "search":
		result, isError = s.toolSearch(params.Arguments)
	case "files":
		result, isError = s.toolFiles(params.Arguments)
	case "stats":
		result, isError = s.toolStats()
	default:
		result = fmt.Sprintf("Unknown tool: %s", params.Name)
		isError = true
	}

	s.sendResult(req.ID, ToolCallResult{
		Content: []ContentItem{{Type: "text", Text: result}},
		IsError: isError,
	})
}

func (s *Server) toolTree(args map[string]any, title string, tree func(string, int) ([]*storage.CallTreeNode, error)) (string, bool) {
	funcName, ok := args["function"].(string)
	if !ok || funcName == "" {
		return "错误：需要提供函数名称", true
	}
	depth := intArg(args, "depth", defaultDepth)
	if depth <= 0 {
		depth = 1 << 20
	}

	funcs, err := s.index.FindFuncsByPattern(funcName)
	if err != nil {
		return fmt.Sprintf("错误：%v", err), true
	}
	if len(funcs) == 0 {
		return fmt.Sprintf("未找到函数：%s\n\n💡 提示：如果这是新添加的函数，请运行 `callmap map` 更新索引", funcName), true
	}

	target := funcs[0]
	callTree, err := tree(target.Name, depth)
	if err != nil {
		return fmt.Sprintf("错误：%v", err), true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s 的%s\n\n", target.Name, title)
	fmt.Fprintf(&sb, "%s:%d\n\n", target.File, target.Line)
	if len(callTree) == 0 {
		sb.WriteString("(无)\n")
		return sb.String(), false
	}

	maxWidth := len(display.ShortFuncName(target.Name))
	maxDepth := 0
	display.CalcTreeMaxWidth(callTree, &maxWidth, 0, &maxDepth)
	sb.WriteString("```\n")
	sb.WriteString(display.FormatCallTree(callTree, "", maxWidth, maxDepth, 0))
	sb.WriteString("```\n")

	if len(funcs) > 1 && funcs[0].Name != funcName {
		fmt.Fprintf(&sb, "\n_（另有 %d 个匹配的函数，请使用更精确的名称）_\n", len(funcs)-1)
	}
	return sb.String(), false
}

func (s *Server) toolSearch(args map[string]any) (string, bool) {
	pattern, ok := args["pattern"].(string)
	if !ok || pattern == "" {
		return "错误：需要提供搜索模式", true
	}
	limit := intArg(args, "limit", defaultLimit)

	funcs, err := s.index.FindFuncsByPattern(pattern)
	if err != nil {
		return fmt.Sprintf("错误：%v", err), true
	}
	if len(funcs) == 0 {
		return fmt.Sprintf("未找到匹配 '%s' 的函数", pattern), false
	}

	total := len(funcs)
	if limit > 0 && len(funcs) > limit {
		funcs = funcs[:limit]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## 搜索结果：%s\n\n找到 %d 个匹配", pattern, total)
	if total > len(funcs) {
		fmt.Fprintf(&sb, "（显示前 %d 个）", len(funcs))
	}
	sb.WriteString("\n\n| 函数 | 文件 | 行号 |\n|------|------|------|\n")
	for _, f := range funcs {
		fmt.Fprintf(&sb, "| %s | %s | %d |\n", f.Name, f.File, f.Line)
	}
	return sb.String(), false
}

func (s *Server) toolFiles(args map[string]any) (string, bool) {
	limit := intArg(args, "limit", defaultLimit)

	files, err := s.index.ListFiles()
	if err != nil {
		return fmt.Sprintf("错误：%v", err), true
	}
	if len(files) == 0 {
		return "索引中没有文件", false
	}

	total := len(files)
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## 文件列表\n\n共 %d 个文件\n\n", total)
	for _, f := range files {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	if total > len(files) {
		fmt.Fprintf(&sb, "\n_（共 %d 个，仅显示前 %d 个）_\n", total, len(files))
	}
	return sb.String(), false
}

func (s *Server) toolStats() (string, bool) {
	stats, err := s.index.GetStats()
	if err != nil {
		return fmt.Sprintf("错误：%v", err), true
	}
	return fmt.Sprintf("文件: %d\n节点: %d\n边: %d\n", stats.Files, stats.Nodes, stats.Edges), false
}

// intArg reads a JSON number argument, falling back to def
func intArg(args map[string]any, name string, def int) int {
	if v, ok := args[name].(float64); ok {
		return int(v)
	}
	return def
}

func (s *Server) sendResult(id any, result any) {
	s.send(Response{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) sendError(id any, code int, message string) {
	s.send(Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}})
}

func (s *Server) send(resp Response) {
	data, _ := json.Marshal(resp)
	fmt.Fprintln(s.output, string(data))
}
