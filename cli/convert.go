package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	convertTo  string
	convertOut string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a single local file",
	Example: `  media-converter convert photo.heic --to png
  media-converter convert lecture.mkv --to mp3 --out ./audio
  media-converter convert scan.pdf --to txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if !verbose {
			log = log.Level(zerolog.WarnLevel)
		}
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Converting %s to %s", args[0], convertTo)
		s.Writer = os.Stderr
		s.Start()
		lr, err := a.dispatcher.ConvertFile(cmd.Context(), a.ws, args[0], convertTo, convertOut)
		s.Stop()
		if err != nil {
			return err
		}

		res := lr.Result
		if !res.Success {
			color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "✗ %s\n", res.Error.Kind)
			fmt.Fprintln(os.Stderr, res.Error.Message)
			return fmt.Errorf("conversion failed")
		}
		if lr.Path != "" {
			color.New(color.FgGreen).Fprintf(os.Stderr, "✓ Wrote %s\n", lr.Path)
			return nil
		}
		color.New(color.FgGreen).Fprintln(os.Stderr, "✓ Text extracted")
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertTo, "to", "t", "", "target format, e.g. png, mp3, docx, txt")
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "output directory (defaults to the input's directory)")
	_ = convertCmd.MarkFlagRequired("to")
}
