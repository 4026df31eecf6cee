package main

import (
	"strings"

	"github.com/mbt1909432/artifact-sandbox/sandbox"
	"github.com/spf13/cobra"
)

// printExecution 输出执行结果，远程命令失败时以其退出码退出。
func (a *app) printExecution(cmd *cobra.Command, result sandbox.ExecutionResult) error {
	if err := a.print(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if code := result.ExitCode(); code != 0 {
		return exitCodeError(code)
	}
	return nil
}

func newExecCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec COMMAND...",
		Short: "Run a shell command in the sandbox",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			result, err := s.Run(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.printExecution(cmd, result)
		},
	}
}

func newScriptCmd(a *app) *cobra.Command {
	var interpreter, remotePath string
	cmd := &cobra.Command{
		Use:   "script FILE_OR_CONTENT",
		Short: "Upload a local script file (or inline code) and run it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			result, err := s.RunScript(cmd.Context(), args[0], interpreter, remotePath)
			if err != nil {
				return err
			}
			return a.printExecution(cmd, result)
		},
	}
	cmd.Flags().StringVarP(&interpreter, "interpreter", "i", sandbox.DefaultInterpreter, "python3, bash or node")
	cmd.Flags().StringVar(&remotePath, "path", "", "remote script path (default under /workspace)")
	return cmd
}

func newEnvCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage session environment variables",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "Set environment variables in the session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseKeyValues(args)
			if err != nil {
				return err
			}
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.SetEnvVars(cmd.Context(), vars); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]interface{}{"sessionId": s.ID(), "envVars": vars})
		},
	})
	return cmd
}
