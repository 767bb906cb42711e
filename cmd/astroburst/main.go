// Command astroburst is a demo front end for the compute library: it tone
// maps frames for display and measures inter-frame offsets, on the GPU when
// one is available and on the CPU otherwise.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	astroburst "github.com/samuelkriegerbonini-dev/AstroBurst"
	_ "github.com/samuelkriegerbonini-dev/AstroBurst/gpu"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "astroburst:", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	cpu     bool
	workers int
	verbose bool
}

func (rf *rootFlags) dispatcher() *astroburst.Dispatcher {
	if rf.verbose {
		astroburst.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
	return astroburst.NewDispatcherWithOptions(astroburst.DispatcherOptions{
		Workers:  rf.workers,
		ForceCPU: rf.cpu,
	})
}

func newRootCmd() *cobra.Command {
	rf := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "astroburst",
		Short: "Astroburst tone maps and registers astronomical frames",
		Long: `Astroburst runs the library's compute kernels from the command line:
tone mapping raw frames into display images and measuring the integer
pixel offset between two frames by cross-correlation.

Inputs are PNG files interpreted as grayscale; with no input a synthetic
starfield is generated so every command works standalone.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&rf.cpu, "cpu", false, "force the CPU path even when a GPU is available")
	rootCmd.PersistentFlags().IntVar(&rf.workers, "workers", 0, "CPU worker count (0 = NumCPU)")
	rootCmd.PersistentFlags().BoolVarP(&rf.verbose, "verbose", "v", false, "enable debug logging to stderr")

	rootCmd.AddCommand(newToneMapCmd(rf))
	rootCmd.AddCommand(newRegisterCmd(rf))
	rootCmd.AddCommand(newCompareCmd(rf))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newToneMapCmd(rf *rootFlags) *cobra.Command {
	var (
		output    string
		shadow    float64
		midtone   float64
		highlight float64
		auto      bool
		thumb     int
		seed      int64
	)

	cmd := &cobra.Command{
		Use:   "tonemap [input.png]",
		Short: "Tone map a frame into an 8-bit display image",
		Long: `Tone map a raw frame: normalize by the data range, apply the shadow and
highlight clip, stretch through the midtones transfer function, and write
the result as a grayscale RGBA PNG.

With --auto the stretch is estimated from the frame statistics
(median + k*sigma shadow clip, midtone solved for a 0.25 background).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadOrSynth(args, seed)
			if err != nil {
				return err
			}
			st := astroburst.ComputeStats(img)

			stf := astroburst.STFParams{
				Shadow:    float32(shadow),
				Midtone:   float32(midtone),
				Highlight: float32(highlight),
			}
			if auto {
				stf = astroburst.AutoSTF(st, astroburst.DefaultAutoSTFConfig())
			}

			d := rf.dispatcher()
			defer d.Close()
			rgba, err := d.ToneMap(img, astroburst.NewToneMapParams(img, st, stf))
			if err != nil {
				return err
			}

			if err := writeRGBAPNG(output, rgba, img.Width, img.Height); err != nil {
				return err
			}
			cmd.Printf("wrote %s (%dx%d, engine=%s, shadow=%.4f midtone=%.4f highlight=%.4f)\n",
				output, img.Width, img.Height, d.Engine(), stf.Shadow, stf.Midtone, stf.Highlight)

			if thumb > 0 {
				thumbPath := thumbName(output)
				if err := writeThumbnail(thumbPath, rgba, img.Width, img.Height, thumb); err != nil {
					return err
				}
				cmd.Printf("wrote %s\n", thumbPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "tonemap.png", "output PNG path")
	cmd.Flags().Float64Var(&shadow, "shadow", 0, "shadow clip point in [0,1]")
	cmd.Flags().Float64Var(&midtone, "midtone", 0.25, "midtones balance (0.5 = identity)")
	cmd.Flags().Float64Var(&highlight, "highlight", 1, "highlight clip point in [0,1]")
	cmd.Flags().BoolVar(&auto, "auto", false, "estimate the stretch from frame statistics")
	cmd.Flags().IntVar(&thumb, "thumb", 0, "also write a thumbnail of this width (0 = off)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "seed for the synthetic starfield")

	return cmd
}

func newRegisterCmd(rf *rootFlags) *cobra.Command {
	var (
		maxShift int
		roiSpec  string
		dx, dy   int
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "register [ref.png target.png]",
		Short: "Measure the integer pixel offset between two frames",
		Long: `Measure the displacement of a target frame against a reference by
zero-mean normalized cross-correlation over a central region of interest.

With no inputs a synthetic starfield pair is generated, the target shifted
by --dx/--dy, so the reported offset can be checked against ground truth.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return fmt.Errorf("register needs two frames, got one")
			}

			var ref, tgt astroburst.Image
			var err error
			if len(args) == 2 {
				if ref, err = loadGrayPNG(args[0]); err != nil {
					return err
				}
				if tgt, err = loadGrayPNG(args[1]); err != nil {
					return err
				}
			} else {
				ref = synthStarfield(512, 512, seed)
				tgt = shiftImage(ref, dx, dy)
				cmd.Printf("synthetic pair, true offset (%d, %d)\n", dx, dy)
			}

			roi, err := parseROI(roiSpec, ref)
			if err != nil {
				return err
			}

			d := rf.dispatcher()
			defer d.Close()
			res, err := d.Correlate(ref, tgt, roi, maxShift)
			if err != nil {
				return err
			}

			if !res.Score.Valid() {
				cmd.Printf("no usable signal in ROI (engine=%s)\n", d.Engine())
				return nil
			}
			cmd.Printf("offset (%d, %d) score %.4f (engine=%s)\n", res.Dx, res.Dy, res.Score.Value, d.Engine())
			return nil
		},
	}

	cmd.Flags().IntVar(&maxShift, "max-shift", 16, "search radius in pixels")
	cmd.Flags().StringVar(&roiSpec, "roi", "", "region of interest as x,y,w,h (default: centered)")
	cmd.Flags().IntVar(&dx, "dx", 3, "synthetic target shift in x")
	cmd.Flags().IntVar(&dy, "dy", -2, "synthetic target shift in y")
	cmd.Flags().Int64Var(&seed, "seed", 42, "seed for the synthetic starfield")

	return cmd
}

func newCompareCmd(rf *rootFlags) *cobra.Command {
	var (
		output string
		seed   int64
		scale  int
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Render the same frame on CPU and GPU side by side",
		Long: `Tone map one synthetic frame on the CPU path and on the dispatch path,
compose both renders into a side-by-side sheet, and report the largest
per-pixel difference. With no GPU registered the two panels are identical.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			img := synthStarfield(512, 512, seed)
			st := astroburst.ComputeStats(img)
			p := astroburst.NewToneMapParams(img, st, astroburst.AutoSTF(st, astroburst.DefaultAutoSTFConfig()))

			cpuD := astroburst.NewDispatcherWithOptions(astroburst.DispatcherOptions{
				Workers: rf.workers, ForceCPU: true,
			})
			defer cpuD.Close()
			cpuOut, err := cpuD.ToneMap(img, p)
			if err != nil {
				return err
			}

			d := rf.dispatcher()
			defer d.Close()
			dispOut, err := d.ToneMap(img, p)
			if err != nil {
				return err
			}

			maxDelta := 0
			for i := range cpuOut {
				delta := int(cpuOut[i]) - int(dispOut[i])
				if delta < 0 {
					delta = -delta
				}
				if delta > maxDelta {
					maxDelta = delta
				}
			}

			if err := writeCompareSheet(output, cpuOut, dispOut, img.Width, img.Height, scale); err != nil {
				return err
			}
			cmd.Printf("wrote %s (cpu | %s, max per-pixel delta %d)\n", output, d.Engine(), maxDelta)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "compare.png", "output PNG path")
	cmd.Flags().Int64Var(&seed, "seed", 42, "seed for the synthetic starfield")
	cmd.Flags().IntVar(&scale, "scale", 1, "integer upscale factor for the sheet")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("astroburst v" + astroburst.Version)
		},
	}
}

// loadOrSynth returns the named frame, or a synthetic starfield when no
// input was given.
func loadOrSynth(args []string, seed int64) (astroburst.Image, error) {
	if len(args) == 1 {
		return loadGrayPNG(args[0])
	}
	return synthStarfield(1024, 1024, seed), nil
}

// parseROI parses "x,y,w,h", or derives a centered ROI when spec is empty.
func parseROI(spec string, ref astroburst.Image) (astroburst.ROI, error) {
	if spec == "" {
		return centeredROI(ref), nil
	}
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return astroburst.ROI{}, fmt.Errorf("bad --roi %q: want x,y,w,h", spec)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return astroburst.ROI{}, fmt.Errorf("bad --roi %q: %w", spec, err)
		}
		vals[i] = v
	}
	return astroburst.ROI{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// centeredROI covers the middle half of the frame.
func centeredROI(img astroburst.Image) astroburst.ROI {
	w := img.Width / 2
	h := img.Height / 2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return astroburst.ROI{X: img.Width / 4, Y: img.Height / 4, W: w, H: h}
}

func thumbName(path string) string {
	if i := strings.LastIndex(path, "."); i > 0 {
		return path[:i] + "_thumb" + path[i:]
	}
	return path + "_thumb"
}
