package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/callmap/internal/discover"
	"github.com/zheng/callmap/internal/mapper"
)

func mapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map [paths...]",
		Short: "为源文件生成调用图",
		Long: `为每个源文件 (Go / C / C++) 生成独立的调用图，输出 DOT 文件并渲染为 PNG。

目录会被递归扫描，最后一个目录参数作为输出路径的基准目录；
单个文件的解析或渲染失败不会中断其他文件的处理。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			frontends := newFrontends(cfg, logger)
			res, err := discover.Collect(args, discover.Options{
				Extensions:   extensionsOf(frontends),
				IgnoreHeader: cfg.IgnoreHeader,
			})
			if err != nil && !errors.Is(err, discover.ErrNoFiles) {
				return fmt.Errorf("扫描文件失败: %w", err)
			}
			for _, missing := range res.Missing {
				logger.Warn("路径不存在", "path", missing)
			}
			if err != nil {
				return fmt.Errorf("未找到可处理的源文件: %w", err)
			}

			files := res.Files
			if cfg.Git.Changed {
				changes, err := discover.GetGitChanges(ctx, res.BaseDir, cfg.Git.Base)
				if err != nil {
					logger.Warn("无法获取 git 变更，将处理全部文件", "err", err)
				} else {
					files = discover.Filter(files, changes.Files)
					if len(files) == 0 {
						logger.Info("没有检测到文件变更，跳过处理", "base", changes.Base)
						return nil
					}
					logger.Info("检测到文件变更", "files", len(files), "base", changes.Base)
				}
			}

			m, metrics, cleanup, err := buildMapper(ctx, cfg, res.BaseDir, logger, frontends)
			if err != nil {
				return err
			}
			defer cleanup()

			p := newProgress(logger)
			sum, err := m.Run(ctx, files)
			if err != nil {
				return err
			}
			p.done(fmt.Sprintf("处理完成: %d 个文件, %d 个失败", sum.Files, sum.Failed))
			reportSummary(sum)

			if metrics != nil {
				if err := metrics.WriteFile(cfg.MetricsFile); err != nil {
					logger.Error("写入指标文件失败", "file", cfg.MetricsFile, "err", err)
				}
			}
			return nil
		},
	}

	addMapFlags(cmd)
	cmd.Flags().Bool("git-changed", false, "只处理 git 变更的文件")
	cmd.Flags().String("git-base", "HEAD", "git 变更的对比基准 (如 origin/main)")

	return cmd
}

// reportSummary prints the totals of a run to stderr
func reportSummary(sum *mapper.Summary) {
	fmt.Fprintf(os.Stderr, "根节点: %d, 节点: %d, 边: %d (占位节点 %d, 闭包调用 %d, 动态派发 %d)\n",
		sum.Stats.Roots, sum.Stats.Nodes, sum.Stats.Edges,
		sum.Stats.Placeholders, sum.Stats.ClosureCallEdges, sum.Stats.DispatchEdges)
	if sum.RenderFailures > 0 {
		fmt.Fprintf(os.Stderr, "渲染失败: %d 个文件 (已保留 DOT 文件)\n", sum.RenderFailures)
	}
}
