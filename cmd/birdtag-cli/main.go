// Package main provides the birdtag developer CLI: evaluate tag
// criteria against exported tag data, render waveforms locally, and
// mint presigned S3 URLs without going through the API.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nlawson/birdtag/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "birdtag-cli",
	Short: "Developer tooling for the BirdTag media platform",
	Long: `birdtag-cli bundles the local developer workflows that do not need
a deployed stack: tag criteria matching against exported data, waveform
rendering, and presigned URL generation.

Examples:
  birdtag-cli match --tags-file tags.json --criteria "crow=2,pigeon=1"
  birdtag-cli waveform --in recording.wav --out waveform.png
  birdtag-cli presign --bucket my-media --key uploads/a.jpg`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(waveformCmd)
	rootCmd.AddCommand(presignCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
