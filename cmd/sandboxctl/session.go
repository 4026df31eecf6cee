package main

import (
	"github.com/mbt1909432/artifact-sandbox/sandbox"
	"github.com/spf13/cobra"
)

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sessions inside a sandbox",
	}

	var (
		cwd string
		env []string
	)
	create := &cobra.Command{
		Use:   "create [SESSION_ID]",
		Short: "Create a session, or attach to it if it already exists",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseKeyValues(env)
			if err != nil {
				return err
			}
			sb, err := a.openSandbox(cmd.Context())
			if err != nil {
				return err
			}
			id := a.sessionID
			if len(args) == 1 {
				id = args[0]
			}
			s, err := sb.CreateOrGetSession(cmd.Context(), id, &sandbox.SessionOptions{Env: vars, Cwd: cwd})
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]interface{}{"sandboxId": sb.ID(), "sessionId": s.ID()})
		},
	}
	create.Flags().StringVar(&cwd, "cwd", "", "working directory of the session")
	create.Flags().StringArrayVarP(&env, "env", "e", nil, "environment variable KEY=VALUE, repeatable")

	del := &cobra.Command{
		Use:   "delete SESSION_ID",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sb, err := a.openSandbox(cmd.Context())
			if err != nil {
				return err
			}
			result, err := sb.DeleteSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), result)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions of the sandbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sb, err := a.openSandbox(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := sb.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), ids)
		},
	}

	var continueOnError bool
	destroyAll := &cobra.Command{
		Use:   "destroy-all",
		Short: "Delete every session except the default one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sb, err := a.openSandbox(cmd.Context())
			if err != nil {
				return err
			}
			result, err := sb.DestroyAllSessions(cmd.Context(), continueOnError)
			if pErr := a.print(cmd.OutOrStdout(), result); pErr != nil {
				return pErr
			}
			return err
		},
	}
	destroyAll.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep going after a failure")

	cmd.AddCommand(create, del, list, destroyAll)
	return cmd
}
