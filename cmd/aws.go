package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/eliran89c/tag-janitor/pkg/cloudresource/provider/aws"
	"github.com/eliran89c/tag-janitor/pkg/janitor"
	"github.com/eliran89c/tag-janitor/pkg/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errNoPolicy = errors.New("a policy file is required (--policy or JANITOR_POLICY)")

var (
	awsCmd = &cobra.Command{
		Use:   "aws",
		Short: "Evaluate AWS resources",
		Long:  "Discover AWS resources with EC2 and Resource Explorer and report which ones are flagged for cleanup.",
		RunE: func(cmd *cobra.Command, args []string) error {
			policyPath := viper.GetString("policy")
			if policyPath == "" {
				return errNoPolicy
			}

			ctx := context.Background()
			logger := newLogger()

			finder, err := newFinder(ctx)
			if err != nil {
				return fmt.Errorf("error creating AWS provider: %w", err)
			}

			j := janitor.New(finder, &janitor.Options{
				StopOnError:       viper.GetBool("stop-on-error"),
				ConcurrentWorkers: viper.GetInt("workers"),
			})
			j.Logger = logger
			j.Recorder = metrics.NewRecorder()

			results, runErr := j.RunFromFile(ctx, policyPath)
			if runErr == nil || len(results) > 0 {
				printResults(cmd.OutOrStdout(), j, results)
			}

			// written on failed runs too so the error counters are exported
			if metricsFile := viper.GetString("metrics-file"); metricsFile != "" {
				if err := j.Recorder.WriteTextfile(metricsFile); err != nil {
					return errors.Join(runErr, fmt.Errorf("error writing metrics file: %w", err))
				}
			}

			if runErr != nil {
				return fmt.Errorf("error executing janitor: %w", runErr)
			}
			return nil
		},
	}
)

// newFinder builds the resource finder from the aws command settings
var newFinder = func(ctx context.Context) (janitor.Finder, error) {
	var opts []aws.Option
	if profile := viper.GetString("profile"); profile != "" {
		opts = append(opts, aws.WithProfile(profile))
	}
	if region := viper.GetString("region"); region != "" {
		opts = append(opts, aws.WithRegion(region))
	}
	if viewARN := viper.GetString("view-arn"); viewARN != "" {
		opts = append(opts, aws.WithViewARN(viewARN))
	}
	provider, err := aws.NewProvider(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func printResults(w io.Writer, j *janitor.Janitor, results []janitor.Result) {
	fmt.Fprintln(w, j.Summary(results))

	for _, result := range results {
		if result.Error != nil {
			fmt.Fprintf(w, "Error processing %s.%s: %v\n",
				result.Definition.Service,
				result.Definition.ResourceType,
				result.Error)
			continue
		}

		if result.InvalidCount == 0 {
			continue
		}

		fmt.Fprintf(w, "\nResource: %s.%s - Valid: %d, Flagged: %d (cleanup tag: %s)\n",
			result.Definition.Service,
			result.Definition.ResourceType,
			result.ValidCount,
			result.InvalidCount,
			result.Definition.CleanupTag)

		for _, flagged := range result.Flagged {
			fmt.Fprintf(w, "  Flagged resource: %s (%s)\n", flagged.Resource.ID(), flagged.Resource.Region())
			fmt.Fprintf(w, "    Reason: %s\n", flagged.Reason)
		}
	}
}

func init() {
	awsCmd.PersistentFlags().String("view-arn", "", "The ARN of the Resource Explorer view to use.")
	awsCmd.PersistentFlags().String("profile", "", "The AWS profile to use.")
	awsCmd.PersistentFlags().String("region", "", "The AWS region to use.")
	awsCmd.PersistentFlags().Int("workers", 10, "Number of resource types evaluated concurrently.")
	awsCmd.PersistentFlags().Bool("stop-on-error", true, "Stop at the first discovery or evaluation error.")
	awsCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this file (textfile collector format).")

	for _, name := range []string{"view-arn", "profile", "region", "workers", "stop-on-error", "metrics-file"} {
		_ = viper.BindPFlag(name, awsCmd.PersistentFlags().Lookup(name))
	}
}
