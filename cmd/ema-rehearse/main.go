package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-rehearse/core"
	"github.com/koscakluka/ema-rehearse/internal/config"
)

func main() {
	configPath := flag.String("config", "ema-rehearse.yaml", "path to the YAML config file")
	scenario := flag.String("scenario", "", "scenario to select at startup")
	printSchema := flag.Bool("print-schema", false, "print the config JSON schema and exit")
	flag.Parse()

	if *printSchema {
		schema, err := config.Schema()
		if err != nil {
			log.Fatalf("Failed to build schema: %v", err)
		}
		fmt.Println(string(schema))
		return
	}

	if err := run(*configPath, *scenario); err != nil {
		fmt.Fprintf(os.Stderr, "ema-rehearse: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, scenario string) error {
	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if scenario != "" {
		cfg.Scenario = scenario
	}

	logFile, err := tea.LogToFile("ema-rehearse.log", "")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, nil)))
	for _, warning := range warnings {
		slog.Warn(warning)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	notices := &noticeBoard{}
	sessions, err := newSessionFactory(ctx, cfg, notices)
	if err != nil {
		return err
	}
	defer sessions.Close()

	opts := []orchestration.SessionControllerOption{orchestration.WithScenarios(cfg.Scenarios)}
	if cfg.Scenario != "" {
		opts = append(opts, orchestration.WithInitialScenario(cfg.Scenario))
	}
	controller := orchestration.NewSessionController(sessions.New, opts...)
	defer controller.Stop()

	if cfg.ScenariosFile != "" {
		done := make(chan struct{})
		defer close(done)
		go func() {
			err := config.WatchScenarios(cfg.ScenariosFile, func(scenarios []orchestration.Scenario) {
				if err := controller.SetScenarios(scenarios); err != nil {
					notices.report(fmt.Errorf("scenario reload: %w", err))
					return
				}
				slog.Info("scenarios reloaded", "count", len(scenarios))
			}, func(err error) {
				notices.report(fmt.Errorf("scenario reload: %w", err))
			}, done)
			if err != nil {
				slog.Error("scenario watcher stopped", "error", err)
			}
		}()
	}

	program := tea.NewProgram(newModel(ctx, controller, notices, warnings), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
