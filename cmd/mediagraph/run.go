package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thesyncim/mediagraph"
	"github.com/thesyncim/mediagraph/project"
)

var (
	runConsumer string
	runRealtime bool
	runTimeout  time.Duration
	runSet      []string
)

var runCmd = &cobra.Command{
	Use:   "run [project.yaml]",
	Short: "Run a project until end of stream or interrupt",
	Long: `Run builds the graph described by a project file and runs its consumer
until the output reaches end of stream, the timeout expires or the process
is interrupted. Without a project file ten seconds of colour bars are played.

Examples:
  mediagraph run project.yaml
  mediagraph run --consumer dump:bars.mgd
  mediagraph run project.yaml --realtime --set consumer.terminate_on_error=1`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proj := project.DefaultProject()
		if len(args) == 1 {
			var err error
			if proj, err = project.Load(args[0]); err != nil {
				return err
			}
		}
		factory, err := newFactory()
		if err != nil {
			return err
		}
		defer factory.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return RunProject(ctx, factory, proj, RunOptions{
			Consumer: runConsumer,
			Realtime: runRealtime,
			Timeout:  runTimeout,
			Set:      runSet,
		}, DefaultOutput)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runConsumer, "consumer", "", "override the project consumer (id or id:arg)")
	runCmd.Flags().BoolVar(&runRealtime, "realtime", false, "pace frames at the profile frame rate")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "stop after this long (0 = no limit)")
	runCmd.Flags().StringArrayVar(&runSet, "set", nil, "set a consumer property (consumer.name=value)")
}

// RunOptions adjust a project before it runs.
type RunOptions struct {
	Consumer string
	Realtime bool
	Timeout  time.Duration
	Set      []string
}

// RunProject builds proj, runs it to completion and prints the consumer
// statistics to out.
func RunProject(ctx context.Context, factory *mediagraph.Factory, proj *project.Project, opts RunOptions, out io.Writer) error {
	if opts.Consumer != "" {
		proj.Consumer.Service, proj.Consumer.Arg = opts.Consumer, ""
	}
	graph, err := proj.Build(factory)
	if err != nil {
		return err
	}
	defer graph.Close()

	consumer := graph.Consumer
	if opts.Realtime {
		consumer.Properties().SetInt("realtime", 1)
	}
	for _, assignment := range opts.Set {
		name, ok := strings.CutPrefix(assignment, "consumer.")
		if !ok {
			return fmt.Errorf("--set %q: only consumer properties can be set", assignment)
		}
		if err := consumer.Properties().Parse(name); err != nil {
			return fmt.Errorf("--set %q: %w", assignment, err)
		}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- consumer.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		consumer.Stop()
		err = <-done
	}

	stats := consumer.Stats()
	fmt.Fprintf(out, "%s: %d frames, %d bytes in %s (%d write errors)\n",
		proj.Consumer.Service, stats.FramesDelivered, stats.BytesDelivered,
		time.Since(start).Round(time.Millisecond), stats.Errors)
	return err
}
