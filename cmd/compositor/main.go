package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.0.0"

var (
	v       = viper.New()
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "compositor",
	Short: "Timeline compositor: renders layered operation graphs to frames and video",
	Long: `compositor evaluates a project of timeline layers, each holding a graph of
operations, and composites the result into still frames or a video file.
`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.Bool("debug", false, "debug logging")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")

	_ = v.BindPFlag("debug", flags.Lookup("debug"))
	_ = v.BindPFlag("logFormat", flags.Lookup("log-format"))
	_ = v.BindPFlag("metricsAddr", flags.Lookup("metrics-addr"))

	rootCmd.AddCommand(frameCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(versionCmd())
}
