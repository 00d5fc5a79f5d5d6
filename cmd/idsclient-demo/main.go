// Command idsclient-demo exercises the idsclient package end to end: it
// builds a Recorder/Worker pair, records a handful of events, reads a
// feature flag, and shuts down cleanly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetsignal/idsclient"
	"github.com/fleetsignal/idsclient/internal/logging"
	"github.com/fleetsignal/idsclient/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "idsclient-demo",
		Short: "Record a sample telemetry session and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("endpoint", "", "transport endpoint: http(s) URL, file path, or empty for SRV discovery")
	flags.String("checkin-file", "", "secondary file the file transport reads check-in documents from")
	flags.String("distinct-id", "", "identify as this distinct id immediately on startup")
	flags.Duration("wait-for-checkin", 2*time.Second, "how long to wait for the first check-in before recording events")
	flags.Bool("verbose", false, "enable debug-level logging")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("IDSCLIENT_DEMO")
	v.AutomaticEnv()

	return cmd
}

func runDemo(parent context.Context, v *viper.Viper) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log, err := newLogger(v.GetBool("verbose"))
	if err != nil {
		return fmt.Errorf("idsclient-demo: build logger: %w", err)
	}

	builder := idsclient.NewBuilder().
		SetEndpoint(v.GetString("endpoint")).
		SetCheckinFile(v.GetString("checkin-file")).
		SetLogger(log).
		AddFact("invocation_source", "idsclient-demo")

	rec, worker, err := builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("idsclient-demo: build client: %w", err)
	}

	if distinctID := v.GetString("distinct-id"); distinctID != "" {
		if err := rec.Identify(ctx, model.DistinctId(distinctID), nil); err != nil {
			log.Debugf("identify failed: %v", err)
		}
	}

	if rec.WaitForCheckin(ctx, v.GetDuration("wait-for-checkin")) {
		log.Infof("received an initial check-in")
	} else {
		log.Infof("proceeding without a check-in (timed out)")
	}

	startupProps := model.NewMap[any]()
	startupProps.Set("command", "idsclient-demo")
	if err := rec.Record(ctx, "demo_started", startupProps); err != nil {
		log.Debugf("record demo_started failed: %v", err)
	}

	if variant, ok, err := idsclient.GetFeatureVariant[bool](ctx, rec, "demo-flag"); err != nil {
		log.Debugf("get_feature_variant failed: %v", err)
	} else if ok {
		log.Infof("demo-flag variant: %v", variant)
	}

	if err := rec.FlushNow(ctx); err != nil {
		log.Debugf("flush_now failed: %v", err)
	}

	if err := rec.Close(); err != nil {
		log.Debugf("recorder close failed: %v", err)
	}
	return worker.Join()
}

func newLogger(verbose bool) (logging.Component, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logging.New(logger), nil
}
