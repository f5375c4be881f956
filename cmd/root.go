/*
Copyright (c) 2026 moyaru <rbffo@icloud.com>
*/

package cmd

import (
	"os"
	"strings"

	"github.com/MOYARU/vigil/internal/app/interactive"
	"github.com/MOYARU/vigil/internal/app/scan"
	"github.com/MOYARU/vigil/internal/app/ui"
	appver "github.com/MOYARU/vigil/internal/version"
	"github.com/spf13/cobra"
)

var (
	version = appver.Value

	configPath string
	jsonOutput bool
	htmlOutput bool
	assumeYes  bool
	mediaType  string
	serveAddr  string
)

func options() scan.Options {
	return scan.Options{
		ConfigPath: configPath,
		JSON:       jsonOutput,
		HTML:       htmlOutput,
		AssumeYes:  assumeYes,
	}
}

var rootCmd = &cobra.Command{
	Use:           "vigil",
	Short:         "Vigil checks files, URLs, emails, claims and media against reputation data and a language model, and reports one normalized verdict.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		interactive.RunInteractiveMode(cmd, options())
	},
}

var fileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Assess a file by fingerprint, uploading it when the reputation service has not seen it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scan.RunFile(args[0], options())
	},
}

var urlCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Assess a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scan.RunURL(args[0], options())
	},
}

var emailCmd = &cobra.Command{
	Use:   "email <path|->",
	Short: "Assess a raw email and the links inside it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scan.RunEmail(args[0], options())
	},
}

var claimCmd = &cobra.Command{
	Use:   "claim <text...>",
	Short: "Fact-check a claim against web search and published fact-checks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scan.RunClaim(strings.Join(args, " "), options())
	},
}

var mediaCmd = &cobra.Command{
	Use:   "media <path>",
	Short: "Estimate whether an image, video or audio file is authentic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scan.RunMedia(args[0], mediaType, options())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assessment API for the dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return scan.RunServe(serveAddr, options())
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config (default: .vigil.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Save the result as JSON")
	rootCmd.PersistentFlags().BoolVar(&htmlOutput, "html", false, "Save the result as HTML")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Upload unseen files and URLs without asking")
	mediaCmd.Flags().StringVar(&mediaType, "type", "", "MIME type of the media (sniffed when empty)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config)")

	rootCmd.AddCommand(fileCmd, urlCmd, emailCmd, claimCmd, mediaCmd, serveCmd)

	rootCmd.Long = ui.AsciiArt + `
Vigil is a security-intel assistant for files, links, emails, claims and media.

Usage:
   vigil <command> [args] [flags]

Example:
  vigil file ./invoice.pdf.exe
  vigil url https://login-example.test/verify --json
  vigil email ./suspicious.eml
  cat message.eml | vigil email -
  vigil claim "The Great Wall is visible from space"
  vigil media ./clip.mp4 --html
  vigil serve --addr :8080

Flags:
  --config             Path to the YAML config (default: .vigil.yaml)
  --json               Save the result as JSON
  --html               Save the result as HTML
  --yes, -y            Upload unseen files and URLs without asking

API keys are read from VT_API_KEY, GEMINI_API_KEY and FACTCHECK_API_KEY.
Unseen files are uploaded to VirusTotal only after you confirm.
`
}
