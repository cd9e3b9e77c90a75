package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zheng/callmap/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "callmap",
		Short: "callmap - 单文件调用图生成工具",
		Long: `callmap 为每个源文件 (Go / C / C++) 构建函数调用图，
输出 Graphviz DOT 文件并渲染为 PNG，同时把调用关系写入索引数据库，
便于查询函数的调用者和被调用者。`,
		SilenceUsage: true,
	}

	cmd.RegisterCommands(rootCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
