// Package commands implements the livyctl command tree.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-livy/config"
	"github.com/gaborage/go-livy/livy"
	"github.com/gaborage/go-livy/logger"
	"github.com/gaborage/go-livy/observability"
)

const shutdownTimeout = 5 * time.Second

// Options wires livyctl to its process environment.
type Options struct {
	Out     io.Writer
	Err     io.Writer
	Environ func() []string
	Version string
	// ClientOptions are passed to every Livy client the commands build.
	ClientOptions []livy.Option
}

type globalFlags struct {
	configPath string
	noConfig   bool
	url        string
	language   string
	overrides  []string
	trace      bool
}

// env is the state shared by subcommands once the root pre-run has loaded configuration.
type env struct {
	opts     Options
	flags    globalFlags
	cfg      *config.Config
	log      logger.Logger
	provider observability.Provider
	client   *livy.Client
}

// Run builds the command tree, executes it with args and releases telemetry exporters.
func Run(ctx context.Context, opts Options, args []string) error {
	root, e := newRoot(opts)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return errors.Join(err, e.close(shutdownCtx))
}

// NewRootCommand returns the livyctl root command.
func NewRootCommand(opts Options) *cobra.Command {
	root, _ := newRoot(opts)
	return root
}

func newRoot(opts Options) (*cobra.Command, *env) {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Err == nil {
		opts.Err = io.Discard
	}
	e := &env{opts: opts}

	root := &cobra.Command{
		Use:   "livyctl",
		Short: "Manage Apache Livy sessions and statements",
		Long: `livyctl talks to an Apache Livy server using the sparkmagic-style configuration
(~/.sparkmagic/config.json or $LIVY_CONFIG_FILE, overridden by LIVY_* variables).`,
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd.Context())
		},
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	pf := root.PersistentFlags()
	pf.StringVar(&e.flags.configPath, "config", "", "Config file (default $LIVY_CONFIG_FILE or ~/.sparkmagic/config.json)")
	pf.BoolVar(&e.flags.noConfig, "no-config", false, "Ignore the config file")
	pf.StringVar(&e.flags.url, "url", "", "Livy endpoint URL, overriding the kernel credentials")
	pf.StringVarP(&e.flags.language, "language", "l", config.LangPython, "Kernel language: python, python3, scala or r")
	pf.StringArrayVar(&e.flags.overrides, "set", nil, "Override a config key (key=value, nested keys joined with ::)")
	pf.BoolVar(&e.flags.trace, "trace", false, "Print spans and metrics to stderr")

	root.AddCommand(
		newSessionsCommand(e),
		newStatementsCommand(e),
		newExecCommand(e),
		newConfigCommand(e),
		newVersionCommand(opts.Version),
	)
	return root, e
}

func (e *env) setup(ctx context.Context) error {
	overrides, err := parseOverrides(e.flags.overrides)
	if err != nil {
		return err
	}
	if e.flags.trace {
		overrides["observability::enabled"] = true
		overrides["observability::exporter"] = config.ExporterStdout
	}

	loadOpts := []config.Option{config.WithOverrides(overrides)}
	switch {
	case e.flags.noConfig:
		loadOpts = append(loadOpts, config.WithoutFile())
	case e.flags.configPath != "":
		loadOpts = append(loadOpts, config.WithFile(e.flags.configPath))
	}
	if e.opts.Environ != nil {
		loadOpts = append(loadOpts, config.WithEnviron(e.opts.Environ))
	}

	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	e.cfg = cfg
	e.log = logger.NewWithWriter(e.opts.Err, cfg.LogLevel(), cfg.LogPretty())

	provider, err := observability.NewProvider(ctx, cfg.Observability(), observability.Options{
		Writer:         e.opts.Err,
		ServiceVersion: e.opts.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	e.provider = provider
	return nil
}

// livyClient builds the client for the selected language on first use.
func (e *env) livyClient() (*livy.Client, error) {
	if e.client != nil {
		return e.client, nil
	}
	creds, err := e.cfg.Credentials(e.flags.language)
	if err != nil {
		return nil, err
	}
	if e.flags.url != "" {
		creds.URL = e.flags.url
	}
	ep, err := livy.EndpointFromCredentials(creds)
	if err != nil {
		return nil, err
	}
	client, err := livy.NewFromEndpoint(ep, e.cfg, e.log, e.opts.ClientOptions...)
	if err != nil {
		return nil, err
	}
	e.client = client
	return client, nil
}

func (e *env) sessionOptions() livy.SessionOptions {
	return livy.SessionOptionsFromConfig(e.cfg)
}

func (e *env) close(ctx context.Context) error {
	if e.provider == nil {
		return nil
	}
	err := e.provider.Shutdown(ctx)
	e.provider = nil
	return err
}

// parseOverrides turns key=value pairs into runtime overrides. Values are
// decoded as JSON when possible so numbers, booleans and lists keep their type.
func parseOverrides(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid override %q: expected key=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		out[key] = value
	}
	return out, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
