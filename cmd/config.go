package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/zheng/callmap/internal/config"
	"github.com/zheng/callmap/internal/export"
	"github.com/zheng/callmap/internal/frontend/cfamily"
	"github.com/zheng/callmap/internal/frontend/golang"
	"github.com/zheng/callmap/internal/mapper"
	"github.com/zheng/callmap/internal/storage"
)

// flagKeys maps config keys to the flag names that override them
var flagKeys = map[string]string{
	"db":             "db",
	"verbose":        "verbose",
	"ignore_header":  "ignore-header",
	"output_dir":     "output-dir",
	"renderer":       "renderer",
	"render_timeout": "render-timeout",
	"jobs":           "jobs",
	"store":          "store",
	"quiet":          "quiet",
	"metrics_file":   "metrics-file",
	"include_dirs":   "include-dir",
	"neo4j.uri":      "neo4j-uri",
	"neo4j.user":     "neo4j-user",
	"neo4j.password": "neo4j-password",
	"git.changed":    "git-changed",
	"git.base":       "git-base",
	"watch.debounce": "debounce",
}

// addMapFlags declares the flags shared by map and watch
func addMapFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("dot-only", false, "只生成 DOT 文件，不渲染图片")
	f.Bool("graph-only", false, "只保留图片，渲染成功后删除 DOT 文件 (默认)")
	f.Bool("dot-graph", false, "同时保留 DOT 文件和图片")
	cmd.MarkFlagsMutuallyExclusive("dot-only", "graph-only", "dot-graph")

	f.Bool("ignore-header", false, "跳过头文件 (.h/.hh/.hpp/.hxx)")
	f.StringP("output-dir", "o", "", "输出根目录，按源文件相对基准目录的路径存放 (默认当前目录)")
	f.String("renderer", "exec", "渲染器 (exec=调用 dot 命令, builtin=内置 graphviz)")
	f.Duration("render-timeout", export.DefaultRenderTimeout, "单个文件的渲染超时")
	f.IntP("jobs", "j", 0, "并发处理的文件数 (默认 CPU 核数)")
	f.Bool("store", true, "将调用图写入索引数据库")
	f.BoolP("quiet", "q", false, "不打印扫描进度和调用图")
	f.String("metrics-file", "", "将 Prometheus 指标写入该文件")
	f.StringSliceP("include-dir", "I", nil, "C/C++ 头文件搜索目录")
	f.String("neo4j-uri", "", "Neo4j 地址，设置后同时写入 Neo4j")
	f.String("neo4j-user", "", "Neo4j 用户名")
	f.String("neo4j-password", "", "Neo4j 密码")
}

// loadConfig merges defaults, .callmap.yaml, CALLMAP_ variables and the
// flags set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	v := config.New(file)

	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("绑定参数 %s 失败: %w", name, err)
			}
		}
	}
	for _, mode := range []export.Mode{export.ModeImageOnly, export.ModeDotOnly, export.ModeDotAndImage} {
		if on, _ := cmd.Flags().GetBool(mode.String()); on {
			v.Set("mode", mode.String())
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	return cfg, nil
}

// newFrontends returns the Go and C-family front ends
func newFrontends(cfg *config.Config, logger *log.Logger) []mapper.Frontend {
	return []mapper.Frontend{
		golang.New(logger),
		cfamily.New(logger, cfamily.WithIncludeDirs(cfg.IncludeDirs...)),
	}
}

// extensionsOf lists the file extensions handled by frontends
func extensionsOf(frontends []mapper.Frontend) []string {
	var exts []string
	for _, fe := range frontends {
		exts = append(exts, fe.Extensions()...)
	}
	return exts
}

// buildMapper wires the exporter and sinks described by cfg around
// frontends. The returned cleanup closes every opened sink.
func buildMapper(ctx context.Context, cfg *config.Config, baseDir string, logger *log.Logger, frontends []mapper.Frontend) (*mapper.Mapper, *mapper.Metrics, func(), error) {
	renderer, err := export.NewRenderer(cfg.Renderer, cfg.RenderTimeout)
	if err != nil {
		return nil, nil, nil, err
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var sinks []mapper.Sink
	if cfg.Store {
		db, err := storage.Open(cfg.DB)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("打开数据库失败: %w", err)
		}
		closers = append(closers, func() { db.Close() })
		sinks = append(sinks, db)
	}
	if cfg.Neo4j.Enabled() {
		loader, err := storage.NewNeo4jLoader(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("连接 Neo4j 失败: %w", err)
		}
		closers = append(closers, func() { loader.Close(context.Background()) })
		if err := loader.CreateIndexes(ctx); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("创建 Neo4j 索引失败: %w", err)
		}
		sinks = append(sinks, loader)
	}

	var metrics *mapper.Metrics
	if cfg.MetricsFile != "" {
		metrics = mapper.NewMetrics()
	}

	m := mapper.New(mapper.Options{
		Jobs:  cfg.Jobs,
		Quiet: cfg.Quiet,
		Out:   os.Stdout,
		Exporter: &export.Exporter{
			BaseDir:  baseDir,
			OutRoot:  cfg.OutputDir,
			Mode:     cfg.ExportMode(),
			Renderer: renderer,
			Logger:   logger,
		},
		Sinks:   sinks,
		Metrics: metrics,
		Logger:  logger,
	}, frontends...)
	return m, metrics, cleanup, nil
}
