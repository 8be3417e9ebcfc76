package main

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/llehouerou/termimage/internal/anim"
	"github.com/llehouerou/termimage/internal/config"
	"github.com/llehouerou/termimage/internal/errmsg"
	"github.com/llehouerou/termimage/internal/imagesrc"
	"github.com/llehouerou/termimage/internal/pixels"
	"github.com/llehouerou/termimage/internal/render"
	"github.com/llehouerou/termimage/internal/style"
)

// printer writes images to a stream, one below the other.
type printer struct {
	out    io.Writer
	log    *slog.Logger
	render render.Options
	style  style.Style
	alpha  pixels.AlphaPolicy
	size   imagesrc.Size
	frame  image.Point
	anim   config.AnimConfig
	cache  anim.CachePolicy
}

// printError tags a failure with the step it happened in.
type printError struct {
	op  errmsg.Op
	err error
}

func (e *printError) Error() string { return e.err.Error() }
func (e *printError) Unwrap() error { return e.err }

func failed(op errmsg.Op, err error) error {
	if err == nil {
		return nil
	}
	return &printError{op: op, err: err}
}

// failedOp returns the step err was tagged with.
func failedOp(err error) errmsg.Op {
	var pe *printError
	if errors.As(err, &pe) {
		return pe.op
	}
	return errmsg.OpRender
}

func (p *printer) print(ctx context.Context, path string) error {
	img, err := imagesrc.Open(path)
	if err != nil {
		return failed(errmsg.OpenOp(err), err)
	}
	defer img.Close()
	img.SetSize(p.size)

	req := render.Request{
		Image: img,
		Frame: p.frame,
		Alpha: p.alpha,
		Style: p.style,
	}
	if img.Animated() && p.anim.Repeat != 0 {
		if out, ok := p.native(req); ok {
			return failed(errmsg.OpOutput, p.write(out))
		}
		return failed(errmsg.OpAnimate, p.play(ctx, req))
	}

	res, err := render.Render(req, p.render)
	if err != nil {
		return failed(errmsg.OpRender, err)
	}
	return failed(errmsg.OpOutput, p.write(res))
}

// native returns the original file for terminals that animate it
// themselves.
func (p *printer) native(req render.Request) (render.Result, bool) {
	it, ok := p.style.(style.ITerm2)
	if !ok || !it.NativeEligible(req.Image, nil) {
		return render.Result{}, false
	}
	cols, rows, err := req.Resolve()
	if err != nil {
		return render.Result{}, false
	}
	data, err := req.Image.Data()
	if err != nil {
		return render.Result{}, false
	}
	out, err := it.EncodeNative(data, style.Geometry{Cols: cols, Rows: rows}, nil)
	if err != nil {
		p.log.Debug("native passthrough failed", "image", req.Image.ID(), "error", err)
		return render.Result{}, false
	}
	return render.Result{Output: out, Cols: cols, Rows: rows}, true
}

// play draws the frames of an animation in place until it ends or ctx
// is cancelled.
func (p *printer) play(ctx context.Context, req render.Request) error {
	it, err := anim.New(req.Image, anim.Options{
		Repeat: p.anim.Repeat,
		Cache:  p.cache,
		Style:  req.Style,
		Alpha:  req.Alpha,
		Size:   req.Size,
		Frame:  req.Frame,
		Render: p.render,
	})
	if err != nil {
		return err
	}
	defer it.Close()

	var (
		last  render.Result
		shown bool
		timer *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		f, err := it.Next()
		if errors.Is(err, anim.ErrExhausted) {
			break
		}
		if err != nil {
			return err
		}
		if shown {
			if _, err := io.WriteString(p.out, rewind(last)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(p.out, f.Result.Output); err != nil {
			return err
		}
		last, shown = f.Result, true

		if timer == nil {
			timer = time.NewTimer(f.Duration)
		} else {
			timer.Reset(f.Duration)
		}
		select {
		case <-ctx.Done():
			return p.finish(last)
		case <-timer.C:
		}
	}
	if !shown {
		return nil
	}
	return p.finish(last)
}

// write prints res and moves below it.
func (p *printer) write(res render.Result) error {
	if _, err := io.WriteString(p.out, res.Output); err != nil {
		return err
	}
	return p.finish(res)
}

func (p *printer) finish(res render.Result) error {
	_, err := io.WriteString(p.out, below(res))
	return err
}

// endsAtTop reports whether the output leaves the cursor on the first
// row, as whole-image encodings do.
func endsAtTop(res render.Result) bool {
	return res.Rows <= 1 || strings.HasSuffix(res.Output, ansi.CursorUp(res.Rows-1))
}

// rewind returns to the first column of the first row of res.
func rewind(res render.Result) string {
	if endsAtTop(res) {
		return "\r"
	}
	return ansi.CursorUp(res.Rows-1) + "\r"
}

// below moves to the line after res.
func below(res render.Result) string {
	if res.Rows > 1 && endsAtTop(res) {
		return ansi.CursorDown(res.Rows-1) + "\r\n"
	}
	return "\r\n"
}
