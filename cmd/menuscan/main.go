package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"menu-analyzer-app/internal/config"
	"menu-analyzer-app/internal/modules/menu/domain"
	"menu-analyzer-app/internal/modules/menu/usecase"
	"menu-analyzer-app/internal/presentation/di"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// run 引数の画像を解析し、結果のJSONを stdout に書く
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("menuscan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	provider := fs.String("provider", "", "model provider (openai | anthropic)")
	initConfig := fs.Bool("init", false, "write a default config file to -config and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: menuscan [-config path] [-provider p] FILE|URL...")
		fmt.Fprintln(stderr, "       menuscan -init [-config path]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *initConfig {
		if err := writeDefaultConfig(*configPath); err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailure
		}
		fmt.Fprintf(stdout, "config written to %s\n", *configPath)
		return exitOK
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitFailure
	}
	if *provider != "" {
		cfg.Provider = *provider
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(stderr, "invalid config: %v\n", err)
			return exitUsage
		}
	}

	container, err := di.NewContainer(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize: %v\n", err)
		return exitFailure
	}
	defer func() { _ = container.Close() }()

	collector := usecase.NewImageCollector(container.ImageNormalizer())
	for _, arg := range fs.Args() {
		if err := collect(collector, arg); err != nil {
			if domain.IsValidation(err) {
				fmt.Fprintln(stderr, domain.InputErrorMessage(err))
			} else {
				fmt.Fprintln(stderr, err)
			}
			return exitFailure
		}
	}
	for _, name := range collector.Skipped() {
		fmt.Fprintf(stderr, "skipped: %s\n", name)
	}

	analyzer := container.MenuAnalyzer()
	images := collector.Inputs()
	if err := analyzer.ValidateSubmission(images); err != nil {
		fmt.Fprintln(stderr, domain.InputErrorMessage(err))
		return exitFailure
	}

	result := analyzer.Analyze(ctx, images)
	if result.Failed() {
		fmt.Fprintln(stderr, result.Error)
		return exitFailure
	}

	out, err := domain.RenderItemsJSON(result.Items)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	fmt.Fprintln(stdout, out)
	return exitOK
}

// collect URLはそのまま、それ以外はファイルとして読み込む
func collect(collector *usecase.ImageCollector, arg string) error {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return collector.AddURL(arg)
	}

	f, err := os.Open(arg)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", arg, err)
	}
	defer func() { _ = f.Close() }()

	return collector.AddFile(filepath.Base(arg), "", f)
}

// writeDefaultConfig 既存ファイルを上書きせずにデフォルト設定を書き出す
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return config.DefaultTemplate().Save(path)
}

func defaultConfigPath() string {
	if p := os.Getenv("MENU_ANALYZER_CONFIG"); p != "" {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".menu-analyzer", "config.yaml")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
