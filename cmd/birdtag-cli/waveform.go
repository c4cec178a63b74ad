package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nlawson/birdtag/internal/mediafile"
)

var (
	waveformIn  string
	waveformOut string
)

var waveformCmd = &cobra.Command{
	Use:   "waveform",
	Short: "Render a waveform PNG from a WAV file",
	RunE:  runWaveform,
}

func init() {
	waveformCmd.Flags().StringVarP(&waveformIn, "in", "i", "", "Input WAV file")
	waveformCmd.Flags().StringVarP(&waveformOut, "out", "o", "", "Output PNG file (default: input name with .png)")
	waveformCmd.MarkFlagRequired("in")
}

func runWaveform(cmd *cobra.Command, args []string) error {
	out := waveformOut
	if out == "" {
		out = strings.TrimSuffix(waveformIn, ".wav") + ".png"
	}

	png, err := mediafile.GenerateWaveform(waveformIn)
	if err != nil {
		return fmt.Errorf("render waveform: %w", err)
	}
	if err := os.WriteFile(out, png, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(png))
	return nil
}
