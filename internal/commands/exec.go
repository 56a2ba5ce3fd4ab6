package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-livy/livy"
	"github.com/gaborage/go-livy/session"
)

type execOptions struct {
	name string
	keep bool
}

func newExecCommand(e *env) *cobra.Command {
	opts := &execOptions{}
	cmd := &cobra.Command{
		Use:   "exec <code>...",
		Short: "Start a session, run each snippet in order and clean up",
		Long: `exec starts a session with the configured session_configs, registers it under
--name, runs every argument as a statement and deletes the session afterwards
unless --keep is given. Execution stops at the first failing statement.`,
		Example: `  livyctl exec 'spark.range(10).count()'
  livyctl exec -l scala --keep 'val x = 1' 'x + 1'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, e, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.name, "name", "livyctl", "Name to register the session under")
	cmd.Flags().BoolVar(&opts.keep, "keep", false, "Leave the session running")
	return cmd
}

func runExec(cmd *cobra.Command, e *env, opts *execOptions, snippets []string) (err error) {
	ctx := cmd.Context()
	client, err := e.livyClient()
	if err != nil {
		return err
	}
	props, err := e.cfg.SessionProperties(e.flags.language)
	if err != nil {
		return err
	}

	manager := session.NewManager(e.log)
	remote := livy.NewRemoteSession(client, props, e.sessionOptions())
	if err := remote.Start(ctx); err != nil {
		// a session that failed to start may still exist server-side
		return errors.Join(err, remote.Delete(ctx))
	}
	if err := manager.Add(opts.name, remote); err != nil {
		return errors.Join(err, remote.Delete(ctx))
	}
	if opts.keep {
		fmt.Fprintln(cmd.ErrOrStderr(), remote.String())
	} else {
		defer func() {
			err = errors.Join(err, manager.CleanUpAll(ctx))
		}()
	}

	registered, err := manager.Get(opts.name)
	if err != nil {
		return err
	}
	s := registered.(*livy.RemoteSession)
	for _, code := range snippets {
		out, execErr := s.Execute(ctx, code)
		if err := printOutput(cmd.OutOrStdout(), out, execErr); err != nil {
			return err
		}
	}
	return nil
}
