package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// RegisterCommands adds the global flags, logger setup and all subcommands
// to the root command
func RegisterCommands(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringP("db", "d", ".callmap.db", "索引数据库文件路径")
	rootCmd.PersistentFlags().String("config", "", "配置文件路径 (默认 ./.callmap.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "输出调试日志")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := log.InfoLevel
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = log.DebugLevel
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(withLogger(ctx, newLogger(os.Stderr, level)))
		return nil
	}

	rootCmd.AddCommand(mapCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(callersCmd())
	rootCmd.AddCommand(calleesCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(filesCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(mcpCmd())
}
