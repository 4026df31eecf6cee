package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read PATH",
		Short: "Print a text file from the sandbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			content, err := s.Read(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), content)
			return err
		},
	}
}

func newWriteCmd(a *app) *cobra.Command {
	var fromFile string
	cmd := &cobra.Command{
		Use:   "write PATH [CONTENT]",
		Short: "Write a file in the sandbox from an argument or a local file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 2) == (fromFile != "") {
				return errors.New("pass either CONTENT or --from-file")
			}
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if fromFile != "" {
				data, err := os.ReadFile(fromFile)
				if err != nil {
					return err
				}
				err = s.WriteBytes(cmd.Context(), args[0], data)
				if err != nil {
					return err
				}
			} else if err := s.Write(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]interface{}{"path": args[0], "written": true})
		},
	}
	cmd.Flags().StringVarP(&fromFile, "from-file", "f", "", "upload this local file as binary")
	return cmd
}

func newDownloadCmd(a *app) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "download PATH",
		Short: "Download a file as raw bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			data, err := s.Download(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if dest == "" || dest == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(dest, data, 0o644)
		},
	}
	cmd.Flags().StringVar(&dest, "to", "", "local destination file (default stdout)")
	return cmd
}

func newExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists PATH",
		Short: "Check whether a file or directory exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			exists, err := s.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]interface{}{"path": args[0], "exists": exists})
		},
	}
}

func newMkdirCmd(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "mkdir PATH",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			result, err := s.Mkdir(cmd.Context(), args[0], recursive)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "parents", "p", false, "create parent directories")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm PATH",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]interface{}{"path": args[0], "deleted": true})
		},
	}
}
