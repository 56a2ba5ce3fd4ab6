package commands

import (
	"fmt"
	"maps"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-livy/livy"
)

func newSessionsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "List, create and delete Livy sessions",
	}
	cmd.AddCommand(
		newSessionsListCommand(e),
		newSessionsCreateCommand(e),
		newSessionsDeleteCommand(e),
		newSessionsLogsCommand(e),
	)
	return cmd
}

func newSessionsListCommand(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the sessions on the endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := e.livyClient()
			if err != nil {
				return err
			}
			list, err := client.GetSessions(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tSTATE\tAPP ID")
			for _, s := range list.Sessions {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Kind, s.State, s.AppID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw response")
	return cmd
}

func newSessionsCreateCommand(e *env) *cobra.Command {
	var properties []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session and wait until it is idle",
		Example: `  livyctl sessions create -l scala
  livyctl sessions create --property driverMemory=2g --property 'conf={"spark.executor.instances":2}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := e.livyClient()
			if err != nil {
				return err
			}
			props, err := e.cfg.SessionProperties(e.flags.language)
			if err != nil {
				return err
			}
			extra, err := parseOverrides(properties)
			if err != nil {
				return err
			}
			maps.Copy(props, extra)

			s := livy.NewRemoteSession(client, props, e.sessionOptions())
			if err := s.Start(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.String())
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&properties, "property", nil, "Extra session property (key=value, value may be JSON)")
	return cmd
}

func newSessionsDeleteCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete sessions by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := e.livyClient()
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := client.DeleteSession(cmd.Context(), id); err != nil {
					return fmt.Errorf("failed to delete session %d: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %d\n", id)
			}
			return nil
		},
	}
}

func newSessionsLogsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logs <id>",
		Short: "Print the full log of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := e.livyClient()
			if err != nil {
				return err
			}
			logs, err := client.GetAllSessionLogs(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			for _, line := range logs.Log {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
