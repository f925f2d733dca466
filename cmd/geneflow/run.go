package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jhphan/geneflow/internal/config"
	"github.com/jhphan/geneflow/internal/definition"
	"github.com/jhphan/geneflow/internal/engine"
	"github.com/jhphan/geneflow/internal/logger"
	"github.com/jhphan/geneflow/internal/status"
)

func runCmd() *cobra.Command {
	var (
		jobFile      string
		workflowFile string
		appFiles     []string
		cfgFile      string
		logLevel     string
		logFile      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a job against its workflow to completion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			runID, err := generateRunID()
			if err != nil {
				return fmt.Errorf("generate run id: %w", err)
			}

			log, closeLog, err := buildLogger(logLevel, logFile)
			if err != nil {
				return fmt.Errorf("set up logging: %w", err)
			}
			defer closeLog()
			log = log.With("run_id", runID)

			ctx := logger.WithLogger(context.Background(), log)
			ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			store := definition.NewStore()
			for _, f := range appFiles {
				if err := store.LoadFile(f); err != nil {
					return fmt.Errorf("load app file %q: %w", f, err)
				}
			}
			if err := store.LoadFile(workflowFile); err != nil {
				return fmt.Errorf("load workflow file %q: %w", workflowFile, err)
			}
			if err := store.LoadFile(jobFile); err != nil {
				return fmt.Errorf("load job file %q: %w", jobFile, err)
			}

			wf, err := soleWorkflow(store)
			if err != nil {
				return err
			}
			job, err := soleJob(store)
			if err != nil {
				return err
			}

			registry, err := config.Build(cfg)
			if err != nil {
				return fmt.Errorf("build engine registry: %w", err)
			}

			eng := engine.New(engine.Config{
				Registry:     registry,
				RetryLimit:   cfg.RetryLimit,
				Clean:        cfg.Clean,
				PollInterval: cfg.PollInterval,
			})

			sink := status.SinkFunc(func(e status.Event) {
				logger.Info(ctx, "step status", "job", e.JobID, "step", e.StepName, "status", e.Status.String(), "message", e.Message)
			})

			if err := eng.Run(ctx, store, wf, job, sink); err != nil {
				logger.Error(ctx, "run failed", "error", err)
				return err
			}
			logger.Info(ctx, "run finished", "job", job.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobFile, "job", "", "path to the job definition file (required)")
	cmd.Flags().StringVar(&workflowFile, "workflow", "", "path to the workflow definition file (required)")
	cmd.Flags().StringArrayVar(&appFiles, "app", nil, "path to an app definition file (repeatable)")
	cmd.Flags().StringVar(&cfgFile, "config", "", "path to the process config file (default: geneflow.yaml in . or $HOME/.config/geneflow; built-in defaults if none)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug enables debug output; any other value logs at info")
	cmd.Flags().StringVar(&logFile, "log-file", "", "additional log destination (default: stderr only)")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("workflow")

	return cmd
}

func soleWorkflow(store *definition.Store) (*definition.Workflow, error) {
	workflows := store.Workflows()
	if len(workflows) != 1 {
		return nil, fmt.Errorf("expected exactly one workflow document, found %d", len(workflows))
	}
	for _, wf := range workflows {
		return wf, nil
	}
	panic("unreachable")
}

func soleJob(store *definition.Store) (*definition.Job, error) {
	jobs := store.Jobs()
	if len(jobs) != 1 {
		return nil, fmt.Errorf("expected exactly one job document, found %d", len(jobs))
	}
	for _, job := range jobs {
		return job, nil
	}
	panic("unreachable")
}

// generateRunID tags one invocation of "geneflow run" for log correlation,
// distinct from the job's own (human-assigned, possibly reused) name.
func generateRunID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func buildLogger(level, file string) (logger.Logger, func(), error) {
	opts := []logger.Option{logger.WithFormat("text")}
	if level == "debug" {
		opts = append(opts, logger.WithDebug())
	}

	closeFn := func() {}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %q: %w", file, err)
		}
		opts = append(opts, logger.WithWriter(f))
		closeFn = func() { _ = f.Close() }
	}

	return logger.NewLogger(opts...), closeFn, nil
}
