package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-livy/livy"
)

func newStatementsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "statements",
		Aliases: []string{"statement"},
		Short:   "Run and inspect statements in an existing session",
	}
	cmd.AddCommand(newStatementsRunCommand(e), newStatementsGetCommand(e))
	return cmd
}

func newStatementsRunCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run <session-id> <code>",
		Short: "Run code in a session and print its output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			client, err := e.livyClient()
			if err != nil {
				return err
			}
			info, err := client.GetSession(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			s := livy.AttachSession(client, *info, e.sessionOptions())
			out, err := s.Execute(cmd.Context(), args[1])
			return printOutput(cmd.OutOrStdout(), out, err)
		},
	}
}

func newStatementsGetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id> <statement-id>",
		Short: "Print a statement as returned by the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := e.livyClient()
			if err != nil {
				return err
			}
			stmt, err := client.GetStatement(cmd.Context(), ids[0], ids[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stmt)
		},
	}
}

// printOutput writes a statement result. A failed statement prints its
// traceback and still returns the error so the exit status reflects it.
func printOutput(w io.Writer, out *livy.StatementOutput, err error) error {
	var stmtErr *livy.StatementError
	if errors.As(err, &stmtErr) {
		fmt.Fprintf(w, "%s: %s\n", stmtErr.Name, stmtErr.Value)
		if len(stmtErr.Traceback) > 0 {
			fmt.Fprint(w, strings.Join(stmtErr.Traceback, ""))
		}
		return err
	}
	if err != nil {
		return err
	}
	if out != nil {
		fmt.Fprintln(w, out.Text())
	}
	return nil
}
