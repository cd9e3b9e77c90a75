package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/callmap/internal/decl/decltest"
	"github.com/zheng/callmap/internal/graph"
	"github.com/zheng/callmap/internal/storage"
)

func openIndex(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "callmap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	g := graph.New("a.c")
	main := g.GetOrInsertNode(decltest.Fn("main"))
	run := g.GetOrInsertNode(decltest.Fn("run"))
	step := g.GetOrInsertNode(decltest.Fn("step"))
	g.AddEdge(main, run)
	g.AddEdge(run, step)
	require.NoError(t, db.SaveGraph("a.c", "c", g))
	return db
}

type rawResponse struct {
	ID     any             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// serve runs the server over the given request lines and decodes every
// response line
func serve(t *testing.T, index Index, lines ...string) []rawResponse {
	t.Helper()
	var out bytes.Buffer
	s := NewServer(index, "test", strings.NewReader(strings.Join(lines, "\n")), &out)
	require.NoError(t, s.Run())

	var resps []rawResponse
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var r rawResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		resps = append(resps, r)
	}
	return resps
}

func toolText(t *testing.T, r rawResponse) (string, bool) {
	t.Helper()
	require.Nil(t, r.Error)
	var res ToolCallResult
	require.NoError(t, json.Unmarshal(r.Result, &res))
	require.Len(t, res.Content, 1)
	return res.Content[0].Text, res.IsError
}

func TestProtocol(t *testing.T) {
	resps := serve(t, openIndex(t),
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
		`not json`,
	)
	require.Len(t, resps, 4)

	var init InitializeResult
	require.NoError(t, json.Unmarshal(resps[0].Result, &init))
	assert.Equal(t, "callmap", init.ServerInfo.Name)
	assert.Equal(t, "test", init.ServerInfo.Version)
	assert.NotNil(t, init.Capabilities.Tools)

	var list struct {
		Tools []Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resps[1].Result, &list))
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"callers", "callees", "search", "files", "stats"}, names)

	require.NotNil(t, resps[2].Error)
	assert.Equal(t, -32601, resps[2].Error.Code)
	require.NotNil(t, resps[3].Error)
	assert.Equal(t, -32700, resps[3].Error.Code)
}

func TestTools(t *testing.T) {
	tests := []struct {
		name    string
		call    string
		want    []string
		isError bool
	}{
		{
			name: "callers",
			call: `{"name":"callers","arguments":{"function":"step"}}`,
			want: []string{"## step 的调用者", "run", "main"},
		},
		{
			name: "callees with depth",
			call: `{"name":"callees","arguments":{"function":"main","depth":1}}`,
			want: []string{"## main 的被调用", "└── run"},
		},
		{
			name: "callees of a leaf",
			call: `{"name":"callees","arguments":{"function":"step"}}`,
			want: []string{"(无)"},
		},
		{
			name:    "unknown function",
			call:    `{"name":"callers","arguments":{"function":"nope"}}`,
			want:    []string{"未找到函数：nope"},
			isError: true,
		},
		{
			name:    "missing function",
			call:    `{"name":"callers","arguments":{}}`,
			want:    []string{"需要提供函数名称"},
			isError: true,
		},
		{
			name: "search",
			call: `{"name":"search","arguments":{"pattern":"ru"}}`,
			want: []string{"找到 1 个匹配", "| run |"},
		},
		{
			name: "files",
			call: `{"name":"files","arguments":{}}`,
			want: []string{"共 1 个文件", "- a.c"},
		},
		{
			name: "stats",
			call: `{"name":"stats","arguments":{}}`,
			want: []string{"文件: 1", "节点: 3", "边: 2"},
		},
		{
			name:    "unknown tool",
			call:    `{"name":"mermaid","arguments":{}}`,
			want:    []string{"Unknown tool: mermaid"},
			isError: true,
		},
	}

	index := openIndex(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resps := serve(t, index, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":`+tt.call+`}`)
			require.Len(t, resps, 1)
			text, isError := toolText(t, resps[0])
			assert.Equal(t, tt.isError, isError)
			for _, w := range tt.want {
				assert.Contains(t, text, w)
			}
		})
	}
}

func TestCalleesDepthLimit(t *testing.T) {
	resps := serve(t, openIndex(t),
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"callees","arguments":{"function":"main","depth":1}}}`,
	)
	text, _ := toolText(t, resps[0])
	assert.NotContains(t, text, "step")
}
