package main

import (
	"errors"

	"github.com/mbt1909432/artifact-sandbox/sandbox"
	"github.com/spf13/cobra"
)

func newCreateCmd(a *app) *cobra.Command {
	var (
		keepAlive  bool
		sleepAfter string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sandbox, or attach to it if it already exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.sandboxID == "" {
				return errors.New("--sandbox is required")
			}
			opts := &sandbox.CreateOptions{SleepAfter: sleepAfter}
			if cmd.Flags().Changed("keep-alive") {
				opts.KeepAlive = sandbox.Bool(keepAlive)
			}
			sb, err := a.manager.CreateOrGet(cmd.Context(), a.sandboxID, opts)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]interface{}{"sandboxId": sb.ID()})
		},
	}
	cmd.Flags().BoolVar(&keepAlive, "keep-alive", false, "keep the sandbox running while idle")
	cmd.Flags().StringVar(&sleepAfter, "sleep-after", "", "idle duration before the sandbox sleeps, e.g. 30s")
	return cmd
}

func newDestroyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy [SANDBOX_ID]",
		Short: "Destroy a sandbox",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := a.sandboxID
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" {
				return errors.New("sandbox id is required")
			}
			if err := a.manager.Destroy(cmd.Context(), id); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]interface{}{"sandboxId": id, "destroyed": true})
		},
	}
}

func newDestroyAllCmd(a *app) *cobra.Command {
	var continueOnError bool
	cmd := &cobra.Command{
		Use:   "destroy-all SANDBOX_ID...",
		Short: "Attach to the given sandboxes and destroy them in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			for _, id := range args {
				if _, err := a.manager.CreateOrGet(ctx, id, nil); err != nil {
					return err
				}
			}
			result, err := a.manager.DestroyAll(ctx, continueOnError)
			if pErr := a.print(cmd.OutOrStdout(), result); pErr != nil {
				return pErr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep going after a failure")
	return cmd
}
