package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/callmap/internal/display"
	"github.com/zheng/callmap/internal/storage"
)

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openDB opens the index named by --db, .callmap.yaml or CALLMAP_DB
func openDB(cmd *cobra.Command) (*storage.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.DB); err != nil {
		return nil, fmt.Errorf("索引数据库不存在: %s (请先运行 callmap map)", cfg.DB)
	}
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	return db, nil
}

// printCallTree prints the call tree to stdout
func printCallTree(tree []*storage.CallTreeNode, maxWidth int, maxDepth int) {
	fmt.Print(display.FormatCallTree(tree, "", maxWidth, maxDepth, 0))
}
