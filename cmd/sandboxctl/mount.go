package main

import (
	"os"

	"github.com/mbt1909432/artifact-sandbox/sandbox"
	"github.com/spf13/cobra"
)

func newMountCmd(a *app) *cobra.Command {
	var (
		opts            sandbox.MountOptions
		accessKeyID     string
		secretAccessKey string
	)
	cmd := &cobra.Command{
		Use:   "mount BUCKET MOUNT_PATH",
		Short: "Mount an S3 compatible bucket into the sandbox",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if accessKeyID == "" {
				accessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
			}
			if secretAccessKey == "" {
				secretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
			}
			if accessKeyID != "" || secretAccessKey != "" {
				opts.Credentials = &sandbox.BucketCredentials{AccessKeyID: accessKeyID, SecretAccessKey: secretAccessKey}
			}
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			result, err := s.MountBucket(cmd.Context(), args[0], args[1], opts)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), result)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.Endpoint, "endpoint", "", "S3 endpoint URL")
	flags.StringVar(&opts.Provider, "provider", "", "storage provider, e.g. s3, r2, gcs or minio")
	flags.StringVar(&opts.Prefix, "prefix", "", "only mount objects under this prefix")
	flags.BoolVar(&opts.ReadOnly, "read-only", false, "mount read only")
	flags.StringVar(&accessKeyID, "access-key-id", "", "access key (default $AWS_ACCESS_KEY_ID)")
	flags.StringVar(&secretAccessKey, "secret-access-key", "", "secret key (default $AWS_SECRET_ACCESS_KEY)")
	return cmd
}

func newUnmountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unmount MOUNT_PATH",
		Short: "Unmount a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			result, err := s.UnmountBucket(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), result)
		},
	}
}
