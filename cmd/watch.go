package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zheng/callmap/internal/discover"
	"github.com/zheng/callmap/internal/mapper"
	"github.com/zheng/callmap/internal/watcher"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "监控文件变更并自动更新调用图",
		Long: `启动 watch 模式，先为目录下的所有源文件生成调用图，
之后每当文件变更时，只重新处理变更的文件。

特性：
  - 自动递归监控所有目录，新建的目录也会加入监控
  - 防抖处理，避免频繁触发
  - 忽略隐藏目录、vendor、node_modules、testdata
  - 删除的文件会从索引数据库中移除

示例：
  callmap watch .                   # 监控当前目录
  callmap watch src --dot-graph     # 同时保留 DOT 文件和图片
  callmap watch . --debounce 1s     # 设置 1 秒防抖延迟`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			frontends := newFrontends(cfg, logger)
			res, err := discover.Collect([]string{dir}, discover.Options{
				Extensions:   extensionsOf(frontends),
				IgnoreHeader: cfg.IgnoreHeader,
			})
			if err != nil && !errors.Is(err, discover.ErrNoFiles) {
				return fmt.Errorf("扫描文件失败: %w", err)
			}
			if len(res.Missing) > 0 {
				return fmt.Errorf("目录不存在: %s", dir)
			}

			m, _, cleanup, err := buildMapper(ctx, cfg, res.BaseDir, logger, frontends)
			if err != nil {
				return err
			}
			defer cleanup()

			// First map every file once
			fmt.Println("执行初始处理...")
			sum, err := m.Run(ctx, res.Files)
			if err != nil {
				return err
			}
			fmt.Printf("初始处理完成: %d 个文件, %d 节点, %d 边\n", sum.Files, sum.Stats.Nodes, sum.Stats.Edges)

			fmt.Printf("\n开始监控目录: %s\n", res.BaseDir)
			if cfg.Store {
				fmt.Printf("数据库路径: %s\n", cfg.DB)
			}
			fmt.Printf("防抖延迟: %v\n", cfg.Watch.Debounce)
			fmt.Println("\n按 Ctrl+C 停止...")
			fmt.Println()

			w, err := watcher.New(
				res.BaseDir,
				m,
				watcher.WithDebounceDelay(cfg.Watch.Debounce),
				watcher.WithOnMapStart(func(files []string) {
					fmt.Printf("[%s] 检测到 %d 个文件变更，开始处理...\n", time.Now().Format("15:04:05"), len(files))
				}),
				watcher.WithOnMapDone(func(sum mapper.Summary, duration time.Duration) {
					fmt.Printf("[%s] 处理完成: %d 个文件, %d 节点, %d 边 (耗时 %v)\n",
						time.Now().Format("15:04:05"), sum.Files, sum.Stats.Nodes, sum.Stats.Edges, duration.Round(time.Millisecond))
				}),
				watcher.WithOnError(func(err error) {
					fmt.Fprintf(os.Stderr, "[%s] 错误: %v\n", time.Now().Format("15:04:05"), err)
				}),
			)
			if err != nil {
				return fmt.Errorf("创建监控器失败: %w", err)
			}

			w.Start(ctx)
			defer w.Stop()

			<-ctx.Done()
			fmt.Println("\n停止监控...")
			return nil
		},
	}

	addMapFlags(cmd)
	cmd.Flags().Duration("debounce", 500*time.Millisecond, "防抖延迟")

	return cmd
}
