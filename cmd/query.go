package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zheng/callmap/internal/display"
	"github.com/zheng/callmap/internal/storage"
)

// unlimitedDepth stands in for --depth 0
const unlimitedDepth = 1 << 20

func callersCmd() *cobra.Command {
	return treeCmd(treeQuery{
		use:    "callers <function-name>",
		short:  "查询函数的调用者",
		header: "⬆️ 调用者",
		tree:   (*storage.DB).GetUpstreamCallTree,
	})
}

func calleesCmd() *cobra.Command {
	return treeCmd(treeQuery{
		use:    "callees <function-name>",
		short:  "查询函数调用的函数",
		header: "⬇️ 被调用",
		tree:   (*storage.DB).GetDownstreamCallTree,
	})
}

// treeQuery describes one direction of the call tree
type treeQuery struct {
	use    string
	short  string
	header string
	tree   func(db *storage.DB, name string, maxDepth int) ([]*storage.CallTreeNode, error)
}

func treeCmd(q treeQuery) *cobra.Command {
	var depth int
	var format string
	var selectN int

	cmd := &cobra.Command{
		Use:   q.use,
		Short: q.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			target, err := resolveFunc(db, args[0], selectN)
			if err != nil {
				return err
			}

			maxDepth := depth
			if maxDepth <= 0 {
				maxDepth = unlimitedDepth
			}
			callTree, err := q.tree(db, target.Name, maxDepth)
			if err != nil {
				return fmt.Errorf("获取调用树失败: %w", err)
			}

			if format == "json" {
				return outputJSON(struct {
					Target *storage.Func           `json:"target"`
					Tree   []*storage.CallTreeNode `json:"tree"`
				}{target, callTree})
			}

			maxWidth := len(display.ShortFuncName(target.Name))
			treeDepth := 0
			display.CalcTreeMaxWidth(callTree, &maxWidth, 0, &treeDepth)

			fmt.Println("📍 当前函数")
			targetPadding := maxWidth + treeDepth*4
			fmt.Printf("%-*s  %s:%d\n\n", targetPadding, display.ShortFuncName(target.Name), target.File, target.Line)

			if len(callTree) > 0 {
				if depth > 0 {
					fmt.Printf("%s (深度 %d)\n", q.header, depth)
				} else {
					fmt.Println(q.header)
				}
				printCallTree(callTree, maxWidth, treeDepth)
			} else {
				fmt.Println(q.header)
				fmt.Println("└── (无)")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 7, "递归深度 (0=无限)")
	cmd.Flags().StringVar(&format, "format", "text", "输出格式 (text/json)")
	cmd.Flags().IntVar(&selectN, "select", 0, "当匹配到多个函数时，直接选择第N个（跳过交互提示）")

	return cmd
}

// resolveFunc finds the function a query is about. An exact name match
// wins; otherwise a single pattern match is used, and several matches are
// resolved by --select or an interactive prompt.
func resolveFunc(db *storage.DB, name string, selectN int) (*storage.Func, error) {
	funcs, err := db.FindFuncsByPattern(name)
	if err != nil {
		return nil, fmt.Errorf("查询失败: %w", err)
	}
	if len(funcs) == 0 {
		return nil, fmt.Errorf("未找到函数: %s", name)
	}
	if funcs[0].Name == name || len(funcs) == 1 {
		return funcs[0], nil
	}

	if selectN >= 1 && selectN <= len(funcs) {
		return funcs[selectN-1], nil
	}

	fmt.Println("找到多个匹配的函数，请选择:")
	for i, f := range funcs {
		fmt.Printf("  [%d] %s\n      %s:%d\n", i+1, display.ShortFuncName(f.Name), f.File, f.Line)
	}
	fmt.Print("\n请输入序号 [1-" + fmt.Sprint(len(funcs)) + "]: ")

	var choice int
	if _, err := fmt.Scanf("%d", &choice); err != nil || choice < 1 || choice > len(funcs) {
		return nil, fmt.Errorf("无效的选择")
	}
	return funcs[choice-1], nil
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "搜索函数",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			funcs, err := db.FindFuncsByPattern(args[0])
			if err != nil {
				return fmt.Errorf("搜索失败: %w", err)
			}

			if len(funcs) == 0 {
				fmt.Println("未找到匹配的函数")
				return nil
			}

			fmt.Printf("找到 %d 个匹配:\n\n", len(funcs))
			for _, f := range funcs {
				fmt.Printf("  %s\n    %s:%d\n", f.Name, f.File, f.Line)
			}
			return nil
		},
	}

	return cmd
}

func filesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "files",
		Short: "列出已处理的文件",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			files, err := db.ListFiles()
			if err != nil {
				return fmt.Errorf("查询失败: %w", err)
			}

			fmt.Printf("共 %d 个文件:\n\n", len(files))
			for i, f := range files {
				if limit > 0 && i >= limit {
					fmt.Printf("... 还有 %d 个文件\n", len(files)-limit)
					break
				}
				fmt.Printf("  %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "限制显示数量 (0=全部)")

	return cmd
}

func statsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "显示索引数据库统计",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := db.GetStats()
			if err != nil {
				return fmt.Errorf("查询失败: %w", err)
			}

			if format == "json" {
				return outputJSON(stats)
			}
			fmt.Printf("文件: %d\n节点: %d\n边:   %d\n", stats.Files, stats.Nodes, stats.Edges)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "输出格式 (text/json)")

	return cmd
}
