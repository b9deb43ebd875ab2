package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ncecere/voiceclone/internal/config"
	"github.com/ncecere/voiceclone/internal/logging"
	"github.com/ncecere/voiceclone/internal/recorder"
)

// NewRecordCommand builds the microphone capture command. A nil device
// selects the system default input through PortAudio.
func NewRecordCommand(dev recorder.Device) *cobra.Command {
	var (
		configFile string
		duration   time.Duration
		sampleRate int
		channels   int
		output     string
	)

	cmd := &cobra.Command{
		Use:   "record [--duration 30s] [--output voice.wav]",
		Short: "Record a reference voice sample from the microphone",
		Long: `Record a reference voice sample for cloning.

Read a few varied sentences in your normal speaking voice. Press Ctrl-C to
stop early; the audio captured so far is still saved.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.Options{ConfigFile: configFile})
			if err != nil {
				return err
			}
			logger := logging.New(cmd.ErrOrStderr(), cfg.Log)

			opts := recorder.OptionsFromConfig(cfg.Recording)
			flags := cmd.Flags()
			if flags.Changed("duration") {
				opts.Duration = duration
			}
			if flags.Changed("sample-rate") {
				opts.SampleRate = sampleRate
			}
			if flags.Changed("channels") {
				opts.Channels = channels
			}
			if flags.Changed("output") {
				opts.Output = output
			}
			opts.Progress = cmd.ErrOrStderr()
			opts.Logger = logger

			device := dev
			if device == nil {
				device = recorder.NewPortAudioDevice()
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			res, err := recorder.Record(ctx, device, opts)
			if err != nil {
				return err
			}
			if res.Interrupted {
				fmt.Fprintf(cmd.ErrOrStderr(), "Stopped early after %s\n", res.Duration.Round(100*time.Millisecond))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s\n", res.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to voiceclone.yaml")
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "Recording length")
	cmd.Flags().IntVar(&sampleRate, "sample-rate", 44100, "Sample rate in Hz")
	cmd.Flags().IntVar(&channels, "channels", 1, "Number of input channels")
	cmd.Flags().StringVar(&output, "output", "voice.wav", "Output WAV file path")

	return cmd
}
