// Command ssimtool compares images with SSIM and MS-SSIM and exercises the
// gradient path by fitting noise to a target image.
//
// Usage:
//
//	ssimtool compare [flags] <a> <b>   Print SSIM and MS-SSIM of two images
//	ssimtool fit [flags] <target>      Ascend SSIM from noise toward target
//	ssimtool window [flags]            Print the Gaussian window taps
//	ssimtool backend                   Print the selected row kernels
package main

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/spf13/cobra"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sys/cpu"

	"github.com/deepteams/ssim"
	"github.com/deepteams/ssim/internal/dsp"
	"github.com/deepteams/ssim/internal/optim"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ssimtool: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "ssimtool",
		Short:         "Structural similarity metrics for images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			h := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(h))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newCompareCmd(), newFitCmd(), newWindowCmd(), newBackendCmd())
	return root
}

// metricFlags maps the shared metric flags onto ssim.Options.
type metricFlags struct {
	window  int
	sigma   float64
	padding bool
	levels  int
	weights []float64
	gray    bool
	workers int
}

func (f *metricFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.window, "window", 11, "Gaussian window size (odd)")
	fs.Float64Var(&f.sigma, "sigma", 1.5, "Gaussian window sigma")
	fs.BoolVar(&f.padding, "padding", false, "zero-pad so similarity maps keep the image size")
	fs.IntVar(&f.levels, "levels", 0, "truncate the MS-SSIM weights to this many levels (0 = all)")
	fs.Float64SliceVar(&f.weights, "weights", nil, "MS-SSIM level weights, finest first (default standard 5-level weights)")
	fs.BoolVar(&f.gray, "gray", false, "compare luma instead of RGB")
	fs.IntVar(&f.workers, "workers", 0, "samples evaluated concurrently (0 = GOMAXPROCS)")
}

func (f *metricFlags) channels() int {
	if f.gray {
		return 1
	}
	return 3
}

func (f *metricFlags) options(dataRange float64) *ssim.Options {
	opts := ssim.DefaultOptions()
	opts.WindowSize = f.window
	opts.Sigma = f.sigma
	opts.DataRange = dataRange
	opts.Channels = f.channels()
	opts.Padding = f.padding
	opts.Levels = f.levels
	opts.Workers = f.workers
	if len(f.weights) > 0 {
		opts.Weights = f.weights
	}
	return opts
}

// loadImage decodes an image file, or stdin when path is "-".
func loadImage(path string) (image.Image, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	slog.Debug("decoded image", "path", path, "format", format, "bounds", img.Bounds())
	return img, nil
}

// --- compare ---

func newCompareCmd() *cobra.Command {
	var (
		mf     metricFlags
		metric string
	)
	cmd := &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Print SSIM and MS-SSIM between two images",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch metric {
			case "ssim", "msssim", "both":
			default:
				return fmt.Errorf("unknown metric %q (want ssim, msssim or both)", metric)
			}
			a, err := loadImage(args[0])
			if err != nil {
				return err
			}
			b, err := loadImage(args[1])
			if err != nil {
				return err
			}
			const dataRange = 255
			x, err := ssim.FromImages(mf.channels(), dataRange, a)
			if err != nil {
				return err
			}
			y, err := ssim.FromImages(mf.channels(), dataRange, b)
			if err != nil {
				return err
			}
			opts := mf.options(dataRange)
			out := cmd.OutOrStdout()

			if metric != "msssim" {
				m, err := ssim.New(opts)
				if err != nil {
					return err
				}
				r, err := m.Evaluate(x, y)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "ssim:    %.6f\n", r.SSIM[0])
				fmt.Fprintf(out, "cs:      %.6f\n", r.CS[0])
			}
			if metric != "ssim" {
				m, err := ssim.NewMultiScale(opts)
				if err != nil {
					return err
				}
				r, err := m.Evaluate(x, y)
				if errors.Is(err, ssim.ErrTooSmall) && metric == "both" {
					slog.Warn("skipping ms-ssim", "err", err)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "ms-ssim: %.6f\n", r.MSSSIM[0])
				for i, lv := range r.Levels {
					slog.Debug("ms-ssim level", "level", i, "value", lv[0], "weight", m.Weights()[i])
				}
			}
			return nil
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVar(&metric, "metric", "both", "metric to report: ssim, msssim or both")
	return cmd
}

// --- fit ---

func newFitCmd() *cobra.Command {
	var (
		mf        metricFlags
		metric    string
		lr        float64
		threshold float64
		maxSteps  int
		seed      uint64
		logEvery  int
		output    string
	)
	cmd := &cobra.Command{
		Use:   "fit <target>",
		Short: "Reconstruct an image from noise by ascending its similarity to target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadImage(args[0])
			if err != nil {
				return err
			}
			const dataRange = 1
			target, err := ssim.FromImages(mf.channels(), dataRange, img)
			if err != nil {
				return err
			}

			var m ssim.Metric
			switch metric {
			case "ssim":
				m, err = ssim.New(mf.options(dataRange))
			case "msssim":
				m, err = ssim.NewMultiScale(mf.options(dataRange))
			default:
				err = fmt.Errorf("unknown metric %q (want ssim or msssim)", metric)
			}
			if err != nil {
				return err
			}

			score, steps, pred, err := fit(m, target, fitConfig{
				lr:        lr,
				threshold: threshold,
				maxSteps:  maxSteps,
				seed:      seed,
				logEvery:  logEvery,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %.6f after %d steps\n", metric, score, steps)

			if output == "" {
				return nil
			}
			res, err := pred.Image(0, dataRange)
			if err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := png.Encode(f, res); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	mf.register(cmd)
	fs := cmd.Flags()
	fs.StringVar(&metric, "metric", "ssim", "objective: ssim or msssim")
	fs.Float64Var(&lr, "lr", 0.01, "Adam learning rate")
	fs.Float64Var(&threshold, "threshold", 0.99, "stop once the score reaches this value")
	fs.IntVar(&maxSteps, "max-steps", 2000, "maximum optimizer steps")
	fs.Uint64Var(&seed, "seed", 1, "noise seed")
	fs.IntVar(&logEvery, "log-every", 100, "log progress every n steps (0 = never)")
	fs.StringVarP(&output, "output", "o", "", "write the reconstruction as PNG")
	return cmd
}

type fitConfig struct {
	lr        float64
	threshold float64
	maxSteps  int
	seed      uint64
	logEvery  int
}

// fit starts from uniform noise shaped like target and runs Adam on
// 1 - score until the score reaches the threshold or the step budget runs
// out. It returns the final score, the number of steps taken and the
// reconstruction.
func fit(m ssim.Metric, target *ssim.Batch, cfg fitConfig) (float64, int, *ssim.Batch, error) {
	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed+1))
	pred := ssim.NewBatch(target.N, target.C, target.H, target.W)
	for i := range pred.Data {
		pred.Data[i] = rng.Float64()
	}
	opt := optim.NewAdam(len(pred.Data), cfg.lr)

	var score float64
	for step := 0; ; step++ {
		loss, grad, err := ssim.Loss(m, pred, target)
		if err != nil {
			return 0, step, nil, err
		}
		score = 1 - loss
		if cfg.logEvery > 0 && step%cfg.logEvery == 0 {
			slog.Info("fit", "step", step, "score", score)
		}
		if score >= cfg.threshold || step >= cfg.maxSteps {
			return score, step, pred, nil
		}
		if err := opt.Step(pred.Data, grad.Data); err != nil {
			return 0, step, nil, err
		}
	}
}

// --- window ---

func newWindowCmd() *cobra.Command {
	var (
		size  int
		sigma float64
	)
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Print the normalized Gaussian window taps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := ssim.NewWindow(size, sigma, 1)
			if err != nil {
				return err
			}
			taps := w.Taps()
			parts := make([]string, len(taps))
			for i, v := range taps {
				parts[i] = fmt.Sprintf("%.6f", v)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, " "))
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "window", 11, "Gaussian window size (odd)")
	cmd.Flags().Float64Var(&sigma, "sigma", 1.5, "Gaussian window sigma")
	return cmd
}

// --- backend ---

func newBackendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Print the row-kernel backend selected for this CPU",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend: %s\n", dsp.ActiveBackend())
			fmt.Fprintf(out, "avx2:    %v\n", cpu.X86.HasAVX2)
			fmt.Fprintf(out, "asimd:   %v\n", cpu.ARM64.HasASIMD)
		},
	}
}
