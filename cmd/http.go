package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tanq16/ripfetch/internal/scheduler"
	"github.com/tanq16/ripfetch/internal/utils"
)

func newHTTPCmd() *cobra.Command {
	var outputPath string
	var referer string
	var cookies []string
	var resume bool

	cmd := &cobra.Command{
		Use:   "http [URL] [--output OUTPUT_PATH]",
		Short: "Download a file via HTTP/HTTPS",
		Long: `Download a file via HTTP/HTTPS with retries, resume and atomic commit.

Examples:
  ripfetch http https://example.com/file.zip
  ripfetch http https://example.com/file.zip -o downloads/ --resume
  ripfetch http https://example.com/img --referer https://example.com --cookie session=abc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := &utils.Task{
				Kind:       scheduler.KindHTTP,
				URL:        args[0],
				OutputPath: outputPath,
				Referrer:   referer,
				Cookies:    utils.ParseCookieArgs(cookies),
				Resume:     resume,
			}
			return runTasks(cfg, []*utils.Task{task})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path or directory (name inferred from URL if omitted)")
	cmd.Flags().StringVar(&referer, "referer", "", "Referer header")
	cmd.Flags().StringArrayVar(&cookies, "cookie", []string{}, "Cookie as name=value; can be specified multiple times")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue a previous partial download with a byte range request")
	return cmd
}

func newStreamCmd() *cobra.Command {
	var outputPath string
	var referer string
	var cookies []string

	cmd := &cobra.Command{
		Use:   "stream [URL] [--output OUTPUT_PATH]",
		Short: "Download a media stream whose file name is already known",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := &utils.Task{
				Kind:       scheduler.KindStream,
				URL:        args[0],
				OutputPath: outputPath,
				Referrer:   referer,
				Cookies:    utils.ParseCookieArgs(cookies),
			}
			return runTasks(cfg, []*utils.Task{task})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&referer, "referer", "", "Referer header")
	cmd.Flags().StringArrayVar(&cookies, "cookie", []string{}, "Cookie as name=value; can be specified multiple times")
	return cmd
}
