package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"menu-analyzer-app/internal/config"
	"menu-analyzer-app/internal/presentation/di"
	"menu-analyzer-app/internal/presentation/http/router"
)

// AppConfig アプリケーション設定
type AppConfig struct {
	ConfigPath string
	Port       string
}

// ServerInterface サーバーインターフェース（Seam化）
type ServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App アプリケーション構造体（Seamパターン）
type App struct {
	config     *AppConfig
	container  *di.Container
	server     *http.Server
	serverSeam ServerInterface // テスト用のSeam
}

// NewApp 新しいAppを作成
func NewApp(appCfg *AppConfig) (*App, error) {
	if appCfg.Port == "" {
		appCfg.Port = "8080"
	}

	cfg, err := config.Load(appCfg.ConfigPath)
	if err != nil {
		log.Printf("Failed to load config: %v. Using defaults.", err)
		cfg = config.DefaultConfig()
	}

	container, err := di.NewContainer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DI container: %w", err)
	}

	handler := router.NewRouter(container)

	// 解析はモデルの応答待ちがあるため書き込みタイムアウトを長めに取る
	server := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ActiveModel().Timeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	app := &App{
		config:    appCfg,
		container: container,
		server:    server,
	}
	app.serverSeam = server

	return app, nil
}

// Start サーバーを起動
func (a *App) Start() error {
	a.printStartupMessage()
	return a.serverSeam.ListenAndServe()
}

// printStartupMessage 起動メッセージを出力
func (a *App) printStartupMessage() {
	fmt.Println("=== Menu Analyzer Server ===")
	fmt.Printf("AI Provider: %s\n", a.container.MenuAnalyzer().GetProviderName())
	fmt.Printf("Server listening on http://0.0.0.0:%s\n", a.config.Port)
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Println("  GET    /health               - Health check")
	fmt.Println("  POST   /api/v1/menu/analyze  - メニュー画像の解析")
	fmt.Println("  GET    /api/v1/menu/runs     - 直近の解析記録")
	fmt.Println("  GET    /api/v1/credential    - APIキーの設定状況")
	fmt.Println("  PUT    /api/v1/credential    - APIキーの設定")
	fmt.Println("  DELETE /api/v1/credential    - APIキーの削除")
	fmt.Println()
}

// Shutdown サーバーをシャットダウン
func (a *App) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	if err := a.serverSeam.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if err := a.container.Close(); err != nil {
		return fmt.Errorf("container close failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Run アプリケーションを実行（グレースフルシャットダウン付き）
func (a *App) Run() error {
	serverErr := make(chan error, 1)
	go func() {
		if err := a.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return a.Shutdown(ctx)
	}
}

// defaultConfigPath 設定ファイルのパス（MENU_ANALYZER_CONFIG が優先）
func defaultConfigPath() string {
	if p := os.Getenv("MENU_ANALYZER_CONFIG"); p != "" {
		return p
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Failed to get home directory: %v. Using current directory.", err)
		homeDir = "."
	}
	return filepath.Join(homeDir, ".menu-analyzer", "config.yaml")
}

// realMain 実際のmain処理（テスト可能にするため分離）
func realMain() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	app, err := NewApp(&AppConfig{
		ConfigPath: defaultConfigPath(),
		Port:       port,
	})
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	return app.Run()
}

func main() {
	if err := realMain(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
