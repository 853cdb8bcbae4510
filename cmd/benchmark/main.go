// Benchmark tool for scoring HeartCare against the heart failure prediction dataset.
//
// Usage:
//
//	go run ./cmd/benchmark remote --csv heart.csv --url http://localhost:8080
//	go run ./cmd/benchmark local --csv heart.csv --threshold moderate
//
// Each row is scored, either by a running server (POST /score) or in-process,
// and the predicted risk level is compared with the HeartDisease label.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/heartcare-ai/heartcare/internal/scoring"
	"github.com/spf13/cobra"
)

// scoreFunc scores one record.
type scoreFunc func(ctx context.Context, p domain.HealthParameters) (domain.RiskResult, error)

type options struct {
	csvPath   string
	limit     int
	workers   int
	threshold string
	verbose   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "benchmark",
		Short:        "Measure HeartCare risk levels against labelled heart disease data",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.csvPath, "csv", "", "Path to the heart failure prediction CSV")
	root.PersistentFlags().IntVar(&opts.limit, "limit", 0, "Maximum rows to process (0 = all)")
	root.PersistentFlags().IntVar(&opts.workers, "workers", 10, "Number of concurrent workers")
	root.PersistentFlags().StringVar(&opts.threshold, "threshold", "high", "Lowest level counted as a positive prediction: high or moderate")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Print each row result")
	_ = root.MarkPersistentFlagRequired("csv")

	root.AddCommand(newRemoteCmd(opts), newLocalCmd(opts))
	return root
}

func newRemoteCmd(opts *options) *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Score rows through a running server's POST /score endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newScoreClient(baseURL)
			if err := client.checkHealth(cmd.Context()); err != nil {
				return fmt.Errorf("heartcare not reachable at %s: %w", baseURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server:   %s (healthy)\n", baseURL)
			return run(cmd, opts, client.score)
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "HeartCare base URL")
	return cmd
}

func newLocalCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "local",
		Short: "Score rows in-process with the risk scorer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(_ context.Context, p domain.HealthParameters) (domain.RiskResult, error) {
				return scoring.Score(p), nil
			})
		},
	}
}

func parseThreshold(s string) (domain.RiskLevel, error) {
	switch strings.ToLower(s) {
	case "high", "":
		return domain.RiskHigh, nil
	case "moderate":
		return domain.RiskModerate, nil
	}
	return "", fmt.Errorf("threshold must be high or moderate, got %q", s)
}

func run(cmd *cobra.Command, opts *options, score scoreFunc) error {
	out := cmd.OutOrStdout()

	threshold, err := parseThreshold(opts.threshold)
	if err != nil {
		return err
	}

	records, skipped, err := readDatasetFile(opts.csvPath, opts.limit)
	if err != nil {
		return fmt.Errorf("failed to read CSV: %w", err)
	}
	fmt.Fprintf(out, "Dataset:  %s (%d rows, %d skipped)\n", opts.csvPath, len(records), skipped)

	start := time.Now()
	result := evaluate(cmd.Context(), records, score, threshold, opts.workers, func(rec Record, res domain.RiskResult, err error) {
		if !opts.verbose {
			return
		}
		if err != nil {
			fmt.Fprintf(out, "ERROR line %d: %v\n", rec.Line, err)
			return
		}
		fmt.Fprintf(out, "line %-5d | disease: %-5v | score: %3d | level: %s\n",
			rec.Line, rec.HeartDisease, res.RiskScore, res.RiskLevel)
	})

	printResults(out, result, threshold, time.Since(start))
	return nil
}

// evaluate scores every record with a pool of workers.
// onResult is called for each row under the result lock.
func evaluate(ctx context.Context, records []Record, score scoreFunc, threshold domain.RiskLevel, workers int, onResult func(Record, domain.RiskResult, error)) *Confusion {
	if workers < 1 {
		workers = 1
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = &Confusion{}
		work   = make(chan Record, 100)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range work {
				start := time.Now()
				res, err := score(ctx, rec.Params)
				elapsed := time.Since(start).Milliseconds()

				mu.Lock()
				result.Processed++
				result.LatencyMs += elapsed
				if err != nil {
					result.Errors++
				} else {
					result.add(predicts(res.RiskLevel, threshold), rec.HeartDisease)
				}
				if onResult != nil {
					onResult(rec, res, err)
				}
				mu.Unlock()
			}
		}()
	}

	for _, rec := range records {
		work <- rec
	}
	close(work)
	wg.Wait()

	return result
}
