// Command genforgectl is the operator CLI: inspect and cancel batch
// jobs, adjust a user's credit ledger, and estimate pipeline cost
// without touching the database. Structured as a cobra command tree the
// way azcopy's cmd/root.go wires jobsShow/jobsResume/jobsRemove as
// subcommands of a single rootCmd, but kept in its own binary since
// genforge's operator surface has nothing else in common with the data
// plane genforged runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yallapapi/genforge/internal/config"
	"github.com/yallapapi/genforge/internal/db"
	"github.com/yallapapi/genforge/pkg/ledger"
	"github.com/yallapapi/genforge/pkg/pricing"
)

func main() {
	root := &cobra.Command{
		Use:   "genforgectl",
		Short: "operator CLI for the genforge media-generation service",
	}

	root.AddCommand(newJobCmd(), newLedgerCmd(), newCostCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func connect(ctx context.Context) (*db.JobRepo, *ledger.Ledger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	sqlxDB, err := db.Open(ctx, db.Config{
		Host: cfg.DBHost, Port: cfg.DBPort, User: cfg.DBUser,
		Password: cfg.DBPassword, Database: cfg.DBName, SSLMode: cfg.DBSSLMode,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return db.NewJobRepo(sqlxDB), ledger.New(sqlxDB), func() { sqlxDB.Close() }, nil
}

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "job", Short: "inspect batch jobs"}

	var jobID string
	show := &cobra.Command{
		Use:   "show",
		Short: "print a batch job and its items as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, _, closeFn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			job, err := jobs.GetJob(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			items, err := jobs.ListItems(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			return printJSON(struct {
				Job   db.BatchJob       `json:"job"`
				Items []db.BatchJobItem `json:"items"`
			}{job, items})
		},
	}
	show.Flags().StringVar(&jobID, "id", "", "job id")
	show.MarkFlagRequired("id")

	cancel := &cobra.Command{
		Use:   "cancel",
		Short: "mark a batch job cancelling; the in-process coordinator finishes in-flight items and refunds the rest",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, _, closeFn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return jobs.SetCancelling(cmd.Context(), jobID)
		},
	}
	cancel.Flags().StringVar(&jobID, "id", "", "job id")
	cancel.MarkFlagRequired("id")

	cmd.AddCommand(show, cancel)
	return cmd
}

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "ledger", Short: "inspect and adjust the credit ledger"}

	var userID, source string
	var amount int
	var limit, offset int

	add := &cobra.Command{
		Use:   "add",
		Short: "add credits to a user's balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, led, closeFn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			txn, err := led.AddCredits(cmd.Context(), userID, amount, "manual_adjustment", "genforgectl ledger add", "")
			if err != nil {
				return err
			}
			return printJSON(txn)
		},
	}
	add.Flags().StringVar(&userID, "user", "", "user id")
	add.Flags().IntVar(&amount, "amount", 0, "credits to add")
	add.MarkFlagRequired("user")
	add.MarkFlagRequired("amount")

	history := &cobra.Command{
		Use:   "history",
		Short: "list a user's credit transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, led, closeFn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			txns, err := led.History(cmd.Context(), userID, limit, offset, source)
			if err != nil {
				return err
			}
			return printJSON(txns)
		},
	}
	history.Flags().StringVar(&userID, "user", "", "user id")
	history.Flags().StringVar(&source, "source", "", "filter by transaction source")
	history.Flags().IntVar(&limit, "limit", 50, "max rows")
	history.Flags().IntVar(&offset, "offset", 0, "row offset")
	history.MarkFlagRequired("user")

	cmd.AddCommand(add, history)
	return cmd
}

func newCostCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cost", Short: "price estimation helpers"}

	var outputType, quality string
	var nsfw bool
	var quantity, durationSec, slides int

	estimate := &cobra.Command{
		Use:   "estimate",
		Short: "print the flat credit cost for a job, or a per-step breakdown for a pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputType == "pipeline" {
				steps, err := parsePipelineArg(args)
				if err != nil {
					return err
				}
				est := pricing.EstimatePipeline(steps)
				fmt.Print(pricing.FormatTree(est))
				return nil
			}
			cost := pricing.CalculateJobCost(quantity, pricing.Options{
				OutputType: outputType, Quality: quality, NSFW: nsfw || quality == "nsfw", DurationSec: durationSec, Slides: slides,
			})
			fmt.Printf("%d credits\n", cost)
			return nil
		},
	}
	estimate.Flags().StringVar(&outputType, "type", "i2i", "output type: i2i, i2v, pipeline, carousel, voice_clone, face_swap")
	estimate.Flags().StringVar(&quality, "quality", "standard", "i2i quality: standard, high")
	estimate.Flags().BoolVar(&nsfw, "nsfw", false, "mark the job nsfw, taking precedence over --quality")
	estimate.Flags().IntVar(&quantity, "quantity", 1, "number of items")
	estimate.Flags().IntVar(&durationSec, "duration", 5, "i2v duration in seconds")
	estimate.Flags().IntVar(&slides, "slides", 5, "carousel slide count")

	cmd.AddCommand(estimate)
	return cmd
}

// parsePipelineArg reads "name:model:quality:durationSec" tokens from the
// trailing positional args, letting an operator sketch a pipeline's
// steps ad hoc without a config file.
func parsePipelineArg(args []string) ([]pricing.Step, error) {
	steps := make([]pricing.Step, 0, len(args))
	for _, a := range args {
		parts := strings.Split(a, ":")
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid step %q: expected name:model[:quality[:durationSec]]", a)
		}
		step := pricing.Step{Name: parts[0], Model: parts[1]}
		if len(parts) > 2 {
			step.Quality = parts[2]
		}
		if len(parts) > 3 {
			d, err := strconv.Atoi(parts[3])
			if err != nil {
				return nil, fmt.Errorf("invalid duration in step %q: %w", a, err)
			}
			step.DurationSec = d
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
