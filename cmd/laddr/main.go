package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"laddr/internal/app"
	"laddr/internal/config"
	"laddr/internal/logger"
	"laddr/internal/replay"
)

func main() {
	cfgFlag := flag.String("config", "", "config file path (defaults to $LADDR_CONFIG or configs/config.yaml)")
	replayFlag := flag.String("replay", "", "replay scenario file; runs the scenario and exits")
	flag.Parse()

	if *replayFlag != "" {
		runReplay(*replayFlag)
		return
	}

	cfgPath := *cfgFlag
	if cfgPath == "" {
		cfgPath = os.Getenv("LADDR_CONFIG")
	}
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("initializing log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded (env=%s, symbols=%s)", cfg.App.Env, strings.Join(cfg.Strategy.NormalizedSymbols(), ","))

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("initializing app failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("run failed: %v", err)
	}
	logger.Infof("shutdown complete")
}

func runReplay(path string) {
	sc, err := replay.LoadScenario(path)
	if err != nil {
		log.Fatalf("loading scenario failed: %v", err)
	}
	res, err := replay.Run(sc)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	fmt.Println(res.String())
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
