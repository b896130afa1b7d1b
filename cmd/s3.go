package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tanq16/ripfetch/internal/scheduler"
	"github.com/tanq16/ripfetch/internal/utils"
)

func newS3Cmd() *cobra.Command {
	var outputPath string
	var profile string

	cmd := &cobra.Command{
		Use:   "s3 [BUCKET/KEY or s3://BUCKET/KEY]",
		Short: "Download an object from AWS S3",
		Long: `Download a single object from AWS S3 or an S3 compatible store.

Examples:
  ripfetch s3 mybucket/path/to/file.zip
  ripfetch s3 s3://mybucket/path/to/file.zip -o downloads/
  ripfetch s3 mybucket/file.zip --profile myprofile`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			if !strings.HasPrefix(url, "s3://") {
				url = "s3://" + url
			}
			task := &utils.Task{
				Kind:       scheduler.KindS3,
				URL:        url,
				OutputPath: outputPath,
				Profile:    profile,
			}
			return runTasks(cfg, []*utils.Task{task})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path")
	cmd.Flags().StringVarP(&profile, "profile", "P", "", "AWS profile to use (defaults to the configured one)")
	return cmd
}
