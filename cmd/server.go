package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/callmap/internal/mcp"
)

// Version is reported to MCP clients; set with -ldflags at build time.
var Version = "dev"

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "启动 MCP (Model Context Protocol) 服务器",
		Long: `启动 MCP 服务器，允许 AI 助手直接查询调用图索引。

MCP 工具包括：
  - callers: 查询调用者
  - callees: 查询被调用的函数
  - search: 搜索函数
  - files: 列出已处理的文件
  - stats: 索引统计`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			server := mcp.NewServer(db, Version, os.Stdin, os.Stdout)
			return server.Run()
		},
	}

	return cmd
}
