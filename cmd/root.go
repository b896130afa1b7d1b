package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanq16/ripfetch/internal/config"
	"github.com/tanq16/ripfetch/internal/utils"
)

var RipfetchVersion = "dev"

var (
	configFile string
	envFile    string
	cfg        *config.Config
)

// flag values; only flags the user set override the loaded configuration
var (
	retries          int
	retrySleep       time.Duration
	rateLimitRetries int
	connectTimeout   time.Duration
	readTimeout      time.Duration
	overwrite        bool
	maxPerDomain     int
	maxDownloads     int
	minFileSize      int64
	skipNotFound     bool
	userAgent        string
	headers          []string
	proxyURL         string
	proxyUsername    string
	proxyPassword    string
	bearerToken      string
	dedupDB          string
	dedupScope       string
	metricsAddr      string
	testMode         bool
	debug            bool
)

var rootCmd = &cobra.Command{
	Use:     "ripfetch",
	Short:   "ripfetch is a resilient file download engine",
	Version: RipfetchVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile, envFile)
		if err != nil {
			return err
		}
		applyFlags(cmd.Flags().Changed, loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		utils.InitLogger(cfg.Debug)
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyFlags copies every explicitly set flag over c.
func applyFlags(changed func(string) bool, c *config.Config) {
	set := func(name string, apply func()) {
		if changed(name) {
			apply()
		}
	}
	set("retries", func() { c.Retries = retries })
	set("retry-sleep", func() { c.RetrySleep = retrySleep })
	set("rate-limit-retries", func() { c.RateLimitRetries = rateLimitRetries })
	set("connect-timeout", func() { c.ConnectTimeout = connectTimeout })
	set("read-timeout", func() { c.ReadTimeout = readTimeout })
	set("overwrite", func() { c.Overwrite = overwrite })
	set("max-per-domain", func() { c.MaxPerDomain = maxPerDomain })
	set("max-downloads", func() { c.MaxDownloads = maxDownloads })
	set("min-size", func() { c.MinFileSize = minFileSize })
	set("skip-not-found", func() { c.SkipNotFound = skipNotFound })
	set("user-agent", func() {
		c.UserAgent = userAgent
		if userAgent == "randomize" {
			c.UserAgent = utils.GetRandomUserAgent()
		}
	})
	set("header", func() { c.Headers = utils.ParseHeaderArgs(headers) })
	set("proxy", func() { c.ProxyURL = proxyURL })
	set("proxy-username", func() { c.ProxyUsername = proxyUsername })
	set("proxy-password", func() { c.ProxyPassword = proxyPassword })
	set("bearer-token", func() { c.BearerToken = bearerToken })
	set("dedup-db", func() { c.DedupDB = dedupDB })
	set("dedup-scope", func() { c.DedupScope = dedupScope })
	set("metrics-addr", func() { c.MetricsAddr = metricsAddr })
	set("test-mode", func() { c.TestMode = testMode })
	set("debug", func() { c.Debug = debug })
}

func init() {
	d := config.Default()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML configuration file")
	pf.StringVar(&envFile, "env-file", ".env", "Dotenv file with RIPFETCH_* variables (ignored if missing)")
	pf.IntVarP(&retries, "retries", "r", d.Retries, "Retries for failed attempts")
	pf.DurationVar(&retrySleep, "retry-sleep", d.RetrySleep, "Sleep between retries (eg. 2s, 1m)")
	pf.IntVar(&rateLimitRetries, "rate-limit-retries", d.RateLimitRetries, "Backoff budget for HTTP 429 responses")
	pf.DurationVar(&connectTimeout, "connect-timeout", d.ConnectTimeout, "Connection timeout")
	pf.DurationVarP(&readTimeout, "read-timeout", "t", d.ReadTimeout, "Read timeout for a silent connection")
	pf.BoolVar(&overwrite, "overwrite", d.Overwrite, "Replace existing files after a validated download")
	pf.IntVar(&maxPerDomain, "max-per-domain", d.MaxPerDomain, "Concurrent downloads per host")
	pf.IntVarP(&maxDownloads, "max-downloads", "m", d.MaxDownloads, "Stop after this many successful downloads (0 = unlimited)")
	pf.Int64Var(&minFileSize, "min-size", d.MinFileSize, "Delete downloads smaller than this many bytes")
	pf.BoolVar(&skipNotFound, "skip-not-found", d.SkipNotFound, "Treat 404 and 410 as quiet skips")
	pf.StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent (\"randomize\" picks a browser agent)")
	pf.StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	pf.StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	pf.StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	pf.StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	pf.StringVar(&bearerToken, "bearer-token", "", "Bearer token sent with every request")
	pf.StringVar(&dedupDB, "dedup-db", "", "SQLite file remembering content hashes across runs")
	pf.StringVar(&dedupScope, "dedup-scope", d.DedupScope, "Name under which the dedup database groups hashes")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while downloading")
	pf.BoolVar(&testMode, "test-mode", false, "Skip bodies above the test mode size limit")
	pf.BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newHTTPCmd())
	rootCmd.AddCommand(newStreamCmd())
	rootCmd.AddCommand(newS3Cmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newCleanCmd())
}
