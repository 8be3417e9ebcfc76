package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/llehouerou/termimage/internal/config"
	"github.com/llehouerou/termimage/internal/errmsg"
	"github.com/llehouerou/termimage/internal/imagesrc"
	"github.com/llehouerou/termimage/internal/logging"
	"github.com/llehouerou/termimage/internal/render"
	"github.com/llehouerou/termimage/internal/scheduler"
	"github.com/llehouerou/termimage/internal/stderr"
	"github.com/llehouerou/termimage/internal/style"
	"github.com/llehouerou/termimage/internal/termcap"
	"github.com/llehouerou/termimage/internal/thumbcache"
	"github.com/llehouerou/termimage/internal/ui/viewer"
)

type options struct {
	configPath string
	style      string
	size       string
	cols, rows int
	animate    bool
	repeat     int
	noProbe    bool
	logLevel   string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("termimage", flag.ContinueOnError)
	var o options
	fs.StringVar(&o.configPath, "config", "", "Configuration file (default: $XDG_CONFIG_HOME/termimage/config.toml)")
	fs.StringVar(&o.style, "style", "", "Style: auto, block, kitty, iterm2 or sixel")
	fs.StringVar(&o.size, "size", "", "Size mode: fit, fit-width or original")
	fs.IntVar(&o.cols, "cols", 0, "Render width in cells (with -rows)")
	fs.IntVar(&o.rows, "rows", 0, "Render height in cells (with -cols)")
	fs.BoolVar(&o.animate, "anim", false, "Play animated images when printing")
	fs.IntVar(&o.repeat, "repeat", 0, "Animation loops, 0 uses the configuration")
	fs.BoolVar(&o.noProbe, "no-probe", false, "Do not query the terminal; trust environment hints")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: termimage [flags] [DIR | IMAGE...]\n\n")
		fmt.Fprintf(fs.Output(), "Browses DIR (default: current directory) or prints each IMAGE.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFrom(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpConfigLoad, err))
	}
	applyFlags(cfg, o)

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log, logFile, err := logging.Open(cfg.Log.File, level)
	if err != nil {
		return err
	}
	defer logFile.Close()

	targets := fs.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}
	if len(targets) == 1 {
		if fi, err := os.Stat(targets[0]); err == nil && fi.IsDir() {
			return browse(cfg, log, targets[0])
		}
	}
	return printImages(cfg, log, o, targets)
}

// applyFlags overrides configuration values given on the command line.
func applyFlags(cfg *config.Config, o options) {
	if o.style != "" {
		cfg.Style = o.style
	}
	if o.size != "" {
		cfg.Size = o.size
	}
	if o.repeat != 0 {
		cfg.Anim.Repeat = o.repeat
	}
	if o.noProbe {
		cfg.Probe.Disabled = true
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
}

// pipeline is what both modes share: the terminal, its styles and the
// render options.
type pipeline struct {
	term   termcap.Terminal
	caps   *style.Capabilities
	style  style.Style
	render render.Options
}

func newPipeline(cfg *config.Config, log *slog.Logger, interactive bool) (*pipeline, error) {
	var t termcap.Terminal = &termcap.Static{}
	if tty := termcap.NewTTY(); tty.Available() {
		t = tty
	} else {
		cfg.Probe.Disabled = true
	}

	opts, err := cfg.ProbeOptions()
	if err != nil {
		return nil, errors.New(errmsg.Format(errmsg.OpStyleArgs, err))
	}
	caps := style.NewCapabilities(t, opts)
	st, err := caps.Select(cfg.Style)
	if err != nil {
		return nil, errors.New(errmsg.Format(errmsg.OpStyle, err))
	}
	if interactive {
		// Probes read the tty, which belongs to the viewer once it runs.
		for _, name := range style.Names {
			caps.Supported(name)
		}
	}
	v := caps.Version()
	log.Info("terminal", "name", v.Name, "version", v.Version, "style", st.Name())

	filter, err := cfg.ResizeFilter()
	if err != nil {
		return nil, err
	}
	_, bg := t.Colors()
	p := &pipeline{
		term:   t,
		caps:   caps,
		style:  st,
		render: render.Options{Filter: filter, TerminalBg: bg},
	}
	if interactive && cfg.ThumbnailsEnabled() {
		thumbs, err := thumbcache.New(cfg.Cache.Dir)
		if err != nil {
			log.Warn("thumbnail cache disabled", "error", err)
		} else {
			p.render.Thumbs = thumbs
		}
	}
	return p, nil
}

func browse(cfg *config.Config, log *slog.Logger, dir string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the viewer needs a terminal; pass image files to print them")
	}
	files, err := viewer.ListImages(dir)
	if err != nil {
		return errors.New(errmsg.FormatWith(errmsg.OpGridLoad, dir, err))
	}
	p, err := newPipeline(cfg, log, true)
	if err != nil {
		return err
	}
	alpha, err := cfg.AlphaPolicy()
	if err != nil {
		return err
	}
	mode, err := cfg.SizeMode()
	if err != nil {
		return err
	}

	faults := logging.NewFaultLog(log)
	sched := scheduler.New(scheduler.Config{
		GridWorkers: cfg.GridWorkers(),
		Render:      p.render,
		AnimCache:   cfg.CachePolicy(),
		Reporter:    faults,
		Logger:      log,
	})

	capture, err := stderr.Start()
	if err != nil {
		log.Warn("stderr capture disabled", "error", err)
	}
	m := viewer.New(dir, files, viewer.Config{
		Scheduler: sched,
		Caps:      p.caps,
		Style:     p.style,
		Alpha:     alpha,
		SizeMode:  mode,
		Repeat:    cfg.GetAnimConfig().Repeat,
		Faults:    faults,
		Log:       log,
		Stderr:    capture.Lines(),
	})

	final, runErr := tea.NewProgram(m, tea.WithAltScreen()).Run()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sched.Close(ctx); err != nil {
		log.Warn("scheduler shutdown", "error", err)
	}
	if fm, ok := final.(viewer.Model); ok {
		fm.Close()
		if fm.Style().Name() == style.NameKitty {
			fmt.Fprint(os.Stdout, style.KittyDeleteAll())
		}
	}
	capture.Stop()

	if runErr != nil {
		return errors.New(errmsg.Format(errmsg.OpInitialize, runErr))
	}
	return nil
}

func printImages(cfg *config.Config, log *slog.Logger, o options, paths []string) error {
	p, err := newPipeline(cfg, log, false)
	if err != nil {
		return err
	}
	alpha, err := cfg.AlphaPolicy()
	if err != nil {
		return err
	}
	mode, err := cfg.SizeMode()
	if err != nil {
		return err
	}
	size := imagesrc.Size{Mode: mode}
	frame := frameSize()
	switch {
	case o.cols > 0 && o.rows > 0:
		size = imagesrc.Cells(o.cols, o.rows)
	case o.cols > 0:
		size.Mode = imagesrc.FitWidth
		frame.X = o.cols
	case o.rows > 0:
		size.Mode = imagesrc.FitFrame
		frame = image.Pt(math.MaxInt32, o.rows)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pr := &printer{
		out:    os.Stdout,
		log:    log,
		render: p.render,
		style:  p.style,
		alpha:  alpha,
		size:   size,
		frame:  frame,
		anim:   cfg.GetAnimConfig(),
		cache:  cfg.CachePolicy(),
	}
	if !o.animate {
		pr.anim.Repeat = 0
	}

	var failures int
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		if err := pr.print(ctx, path); err != nil {
			failures++
			msg := errmsg.FormatWith(failedOp(err), path, err)
			log.Error(msg)
			fmt.Fprintln(os.Stderr, msg)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d images could not be displayed", failures, len(paths))
	}
	return nil
}

// frameSize returns the terminal size in cells, keeping a line for the
// prompt.
func frameSize() image.Point {
	cols, rows, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || cols <= 0 || rows <= 1 {
		return image.Pt(80, 24)
	}
	return image.Pt(cols, rows-1)
}
