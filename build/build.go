// Package build drives parallel builds of frame units.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
)

// PackageScope prefixes every frame workspace package.
const PackageScope = "@bad-apple"

const stderrTailBytes = 3000

// ErrLocked is returned when another build holds the lock file.
var ErrLocked = errors.New("another build holds the lock")

// RunFunc runs one command line.
type RunFunc func(ctx context.Context, argv []string, stdout, stderr io.Writer) error

// Options configures a Build.
type Options struct {
	// Start and End are 1-based frame numbers, both inclusive. End 0 is
	// inferred from FramesDir.
	Start       int
	End         int
	Concurrency int
	Silent      bool
	DryRun      bool
	FramesDir   string
	// Command is run per frame after replacing {id} and {pkg}.
	Command  string
	LockFile string
	Stdout   io.Writer
	Logger   *slog.Logger
	Run      RunFunc
	Now      func() time.Time
}

// Failure describes the first frame that failed.
type Failure struct {
	Frame      int
	Package    string
	StderrTail string
	Err        error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("build failed at frame-%04d (%s): %v", f.Frame, f.Package, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Result summarises a build.
type Result struct {
	Start   int
	End     int
	Total   int
	Done    int
	OK      int
	Elapsed time.Duration
	Failure *Failure
}

// Failed is the number of frames that finished unsuccessfully.
func (r *Result) Failed() int {
	return r.Done - r.OK
}

// PackageName is the workspace package of frame n: 8 -> "@bad-apple/frame-0008".
func PackageName(n int) string {
	return fmt.Sprintf("%s/frame-%04d", PackageScope, n)
}

// InferEnd returns the highest n of the frame-NNNN directories in dir, or 0.
func InferEnd(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	end := 0
	for _, e := range entries {
		num, ok := strings.CutPrefix(e.Name(), "frame-")
		if !ok || len(num) != 4 {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		end = max(end, n)
	}
	return end, nil
}

// Build runs the command for every frame in range with bounded
// concurrency. It stops dispatching at the first failure and returns it as
// a *Failure.
func Build(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Run == nil {
		opts.Run = execRun
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Start <= 0 {
		opts.Start = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.End == 0 && opts.FramesDir != "" {
		end, err := InferEnd(opts.FramesDir)
		if err != nil {
			return nil, fmt.Errorf("infer end frame: %w", err)
		}
		opts.End = end
	}
	if opts.End < opts.Start || opts.End == 0 {
		return nil, fmt.Errorf("invalid frame range: start=%d end=%d", opts.Start, opts.End)
	}
	if !opts.DryRun && len(strings.Fields(opts.Command)) == 0 {
		return nil, errors.New("build command is empty")
	}

	if opts.LockFile != "" {
		lock := flock.New(opts.LockFile)
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("%w: %s", ErrLocked, opts.LockFile)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				opts.Logger.Warn("failed to release build lock", slog.Any("error", err))
			}
		}()
	}

	total := opts.End - opts.Start + 1
	opts.Logger.Info("build frames",
		slog.Int("start", opts.Start),
		slog.Int("end", opts.End),
		slog.Int("total", total),
		slog.Int("concurrency", opts.Concurrency),
		slog.Bool("silent", opts.Silent),
		slog.Bool("dry_run", opts.DryRun))

	p := newProgress(total, opts.Now, opts.Logger)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for n := opts.Start; n <= opts.End; n++ {
		if gctx.Err() != nil {
			break
		}
		n := n
		g.Go(func() error {
			// a slot may free up after a failure already cancelled gctx
			if gctx.Err() != nil {
				return nil
			}
			f := buildFrame(ctx, opts, n)
			p.record(f == nil)
			if f != nil {
				opts.Logger.Error("frame build failed",
					slog.Int("frame", n),
					slog.String("package", f.Package),
					slog.String("stderr_tail", f.StderrTail),
					slog.Any("error", f.Err))
				return f
			}
			return nil
		})
	}
	err := g.Wait()

	res := p.result(opts.Start, opts.End)
	var failure *Failure
	if errors.As(err, &failure) {
		res.Failure = failure
		return res, failure
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return res, err
	}
	if res.Done != total {
		return res, fmt.Errorf("build stopped (done=%d/%d ok=%d)", res.Done, total, res.OK)
	}
	opts.Logger.Info("build succeeded",
		slog.Int("frames", res.OK),
		slog.String("elapsed", FormatDuration(res.Elapsed)))
	return res, nil
}

func buildFrame(ctx context.Context, opts Options, n int) *Failure {
	pkg := PackageName(n)
	if opts.DryRun {
		return nil
	}
	r := strings.NewReplacer("{id}", fmt.Sprintf("%04d", n), "{pkg}", pkg)
	argv := strings.Fields(r.Replace(opts.Command))

	stdout := opts.Stdout
	if opts.Silent {
		stdout = io.Discard
	}
	stderr := &tailBuffer{max: stderrTailBytes}
	if err := opts.Run(ctx, argv, stdout, stderr); err != nil {
		return &Failure{Frame: n, Package: pkg, StderrTail: stderr.String(), Err: err}
	}
	return nil
}

func execRun(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

type progress struct {
	mu        sync.Mutex
	total     int
	done      int
	ok        int
	started   time.Time
	lastPrint time.Time
	now       func() time.Time
	logger    *slog.Logger
}

func newProgress(total int, now func() time.Time, logger *slog.Logger) *progress {
	t := now()
	return &progress{total: total, started: t, lastPrint: t, now: now, logger: logger}
}

func (p *progress) record(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if ok {
		p.ok++
	}
	now := p.now()
	if now.Sub(p.lastPrint) < time.Second && p.done != p.total {
		return
	}
	p.lastPrint = now
	elapsed := max(now.Sub(p.started).Seconds(), 0.0001)
	rate := float64(p.done) / elapsed
	var eta time.Duration
	if rate > 0 {
		eta = time.Duration(float64(p.total-p.done) / rate * float64(time.Second))
	}
	p.logger.Info("build progress",
		slog.String("done", fmt.Sprintf("%d/%d", p.done, p.total)),
		slog.Int("ok", p.ok),
		slog.Int("failed", p.done-p.ok),
		slog.String("rate", fmt.Sprintf("%.1f/s", rate)),
		slog.String("eta", FormatDuration(eta)))
}

func (p *progress) result(start, end int) *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &Result{
		Start:   start,
		End:     end,
		Total:   p.total,
		Done:    p.done,
		OK:      p.ok,
		Elapsed: p.now().Sub(p.started),
	}
}

// FormatDuration renders d as "1m05s" or "5s".
func FormatDuration(d time.Duration) string {
	secs := int(d / time.Second)
	m, s := secs/60, secs%60
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
