package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nightcore/internal/filtergraph"
	"nightcore/internal/jobs"
)

type requestFlags struct {
	mode        string
	format      string
	sampleRate  float64
	tempo       float64
	bassBoost   int
	midBoost    int
	trebleBoost int
}

func (f *requestFlags) register(cmd *cobra.Command, withFormat bool) {
	flags := cmd.Flags()
	flags.StringVarP(&f.mode, "mode", "m", string(filtergraph.ModeCustom), fmt.Sprintf("Filter mode (%s)", strings.Join(filtergraph.ModeNames(), ", ")))
	if withFormat {
		flags.StringVarP(&f.format, "format", "f", string(jobs.FormatFLAC), "Output format (flac or mp3)")
	}
	flags.Float64Var(&f.sampleRate, "sample-rate", jobs.DefaultSampleRate, "Pitch/speed factor applied via asetrate")
	flags.Float64Var(&f.tempo, "tempo", jobs.DefaultTempo, "Tempo factor applied via atempo")
	flags.IntVar(&f.bassBoost, "bass", 0, "Bass gain in dB at 100 Hz")
	flags.IntVar(&f.midBoost, "mid", 0, "Mid gain in dB at 3 kHz")
	flags.IntVar(&f.trebleBoost, "treble", 0, "Treble gain in dB at 8 kHz")
}

func (f *requestFlags) request(url string) jobs.Request {
	return jobs.Request{
		URL:         strings.TrimSpace(url),
		Mode:        filtergraph.Mode(f.mode),
		Format:      jobs.Format(f.format),
		SampleRate:  f.sampleRate,
		Tempo:       f.tempo,
		BassBoost:   f.bassBoost,
		MidBoost:    f.midBoost,
		TrebleBoost: f.trebleBoost,
	}
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var flags requestFlags
	var downloadDir string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "generate <url>",
		Short: "Submit a job to the daemon and wait for the result",
		Long: "Submit a job to the daemon and wait for the result.\n\n" +
			"The call blocks while another job holds the slot. Use --download to\n" +
			"fetch the filtered file and the original before the sweeper expires them.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			outcome, err := client.Generate(cmd.Context(), flags.request(args[0]))
			if err != nil {
				return err
			}
			if asJSON {
				if err := writeJSON(cmd, outcome); err != nil {
					return err
				}
			} else {
				printOutcome(cmd, outcome)
			}
			if !outcome.Success {
				return errors.New("generate failed")
			}

			dir := strings.TrimSpace(downloadDir)
			if dir == "" {
				return nil
			}
			for _, name := range []string{outcome.Filename, outcome.OriginalFilename} {
				if name == "" {
					continue
				}
				saved, err := client.Download(cmd.Context(), name, dir)
				if err != nil {
					return err
				}
				if !asJSON {
					fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", saved)
				}
			}
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVarP(&downloadDir, "download", "d", "", "Directory to save the filtered and original files into")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the outcome as JSON")
	return cmd
}

func printOutcome(cmd *cobra.Command, outcome jobs.Outcome) {
	out := cmd.OutOrStdout()
	if outcome.Success {
		fmt.Fprintf(out, "Filtered: %s\n", outcome.Filename)
		if outcome.OriginalFilename != "" {
			fmt.Fprintf(out, "Original: %s\n", outcome.OriginalFilename)
		}
	} else {
		fmt.Fprintf(out, "Error: %s\n", outcome.Error)
	}
	if outcome.Sarcasm != "" {
		fmt.Fprintln(out, outcome.Sarcasm)
	}
}

func newFilterCommand() *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:         "filter",
		Short:       "Print the ffmpeg filter graph for a set of parameters",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := jobs.NormalizeParams(flags.request(""))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), filtergraph.Build(req.FilterParams()))
			return nil
		},
	}
	flags.register(cmd, false)
	return cmd
}
