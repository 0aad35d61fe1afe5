package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"page-feedback/internal/feedback/api"
	"page-feedback/internal/feedback/ingress"
	"page-feedback/internal/feedback/processor"
	"page-feedback/internal/feedback/scheduler"
)

const (
	kindProblem = "problem"
	kindTopTask = "toptask"
)

func newServeCmd() *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingress and the scheduled commit processors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(ctx, stop, a, runOnStart)
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run both commit processors once at startup")
	return cmd
}

func serve(ctx context.Context, stop context.CancelFunc, a *app, runOnStart bool) error {
	log := a.log
	maxIter := a.cfg.Scheduler.MaxIterations

	problemJob, err := scheduler.NewJob(a.cfg.Scheduler.ProblemCommit,
		processor.NewProblemCommitter(log, a.handle, a.problemQueue, maxIter))
	if err != nil {
		return err
	}
	topTaskJob, err := scheduler.NewJob(a.cfg.Scheduler.TopTaskCommit,
		processor.NewTopTaskCommitter(log, a.handle, a.topTaskQueue, maxIter))
	if err != nil {
		return err
	}
	worker := scheduler.NewWorker(log, runOnStart, problemJob, topTaskJob)

	srv := &api.Server{
		Log:      log,
		Problems: ingress.NewProblemNormalizer(log, a.problemQueue),
		TopTasks: ingress.NewTopTaskNormalizer(log, a.topTaskQueue),
		Reader:   a.handle,
	}
	r := srv.Router()
	_ = r.SetTrustedProxies(nil)
	httpSrv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown", zap.Error(err))
		}
	}()

	log.Info("Page feedback service is running", zap.String("address", a.cfg.HTTP.Addr))
	err = httpSrv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("HTTP server failed", zap.Error(err))
		stop()
	} else {
		err = nil
	}
	wg.Wait()
	log.Info("Page feedback service stopped")
	return err
}

func newCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "commit <problem|toptask>",
		Short:     "Drain one queue into MongoDB once and print the batch result",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{kindProblem, kindTopTask},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			a.warnIfProcessLocal("commit")

			var c processor.Committer
			switch args[0] {
			case kindProblem:
				c = processor.NewProblemCommitter(a.log, a.handle, a.problemQueue, a.cfg.Scheduler.MaxIterations)
			default:
				c = processor.NewTopTaskCommitter(a.log, a.handle, a.topTaskQueue, a.cfg.Scheduler.MaxIterations)
			}
			res, err := c.Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newEnqueueCmd() *cobra.Command {
	var (
		emailPath string
		rawPath   string
	)
	cmd := &cobra.Command{
		Use:       "enqueue <problem|toptask>",
		Short:     "Run an e-mail (or raw text) file through ingress and enqueue it",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{kindProblem, kindTopTask},
		RunE: func(cmd *cobra.Command, args []string) error {
			if (emailPath == "") == (rawPath == "") {
				return errors.New("exactly one of --email or --raw is required")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			a.warnIfProcessLocal("enqueue")

			sub, err := enqueueFile(ctx, a, args[0], emailPath, rawPath)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sub)
		},
	}
	cmd.Flags().StringVar(&emailPath, "email", "", "MIME message or SES/SNS notification file")
	cmd.Flags().StringVar(&rawPath, "raw", "", "already delimited payload file")
	return cmd
}

func enqueueFile(ctx context.Context, a *app, kind, emailPath, rawPath string) (ingress.Submission, error) {
	problems := ingress.NewProblemNormalizer(a.log, a.problemQueue)
	topTasks := ingress.NewTopTaskNormalizer(a.log, a.topTaskQueue)

	if rawPath != "" {
		data, err := os.ReadFile(rawPath)
		if err != nil {
			return ingress.Submission{}, err
		}
		if kind == kindProblem {
			return problems.SubmitRaw(ctx, string(data))
		}
		return topTasks.SubmitText(ctx, string(data))
	}

	data, err := os.ReadFile(emailPath)
	if err != nil {
		return ingress.Submission{}, err
	}
	raw, ok := ingress.UnwrapEmail(data)
	if !ok {
		a.log.Warn("No content to queue", zap.String("file", emailPath))
		return ingress.Submission{}, nil
	}
	if kind == kindProblem {
		return problems.SubmitEmail(ctx, raw)
	}
	return topTasks.SubmitEmail(ctx, raw)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("print result: %w", err)
	}
	return nil
}
