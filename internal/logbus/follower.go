package logbus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"github.com/linnemanlabs/go-core/log"
)

// DefaultPollInterval is how often a Follower re-checks its file when no
// filesystem event arrives.
const DefaultPollInterval = time.Second

// MaxLineBytes bounds a buffered partial line. Output that reaches it without
// a newline is published as a line of its own.
const MaxLineBytes = 64 * 1024

// FollowerOptions configures a Follower.
type FollowerOptions struct {
	Path         string
	Process      string
	Stream       string
	Bus          *Bus
	Logger       log.Logger
	PollInterval time.Duration
}

// Follower tails a log file and publishes each complete line to a Bus.
// Only output written after the follower is created is published. Truncation
// and re-creation (log rotation, pm2 flush) restart reading from the top of
// the new file.
type Follower struct {
	path    string
	process string
	stream  string
	bus     *Bus
	logger  log.Logger
	poll    time.Duration

	watcher *fsnotify.Watcher
	file    *os.File
	offset  int64
	partial []byte
}

// NewFollower opens the file, positions at its end and starts watching its
// directory.
func NewFollower(opts FollowerOptions) (*Follower, error) {
	if opts.Bus == nil {
		return nil, errors.New("logbus: follower requires a bus")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Stream == "" {
		opts.Stream = StreamOut
	}

	path := filepath.Clean(opts.Path)
	f, err := os.Open(path) //nolint:gosec // G304: path comes from pm2 or operator config
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seek log file: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = f.Close()
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	return &Follower{
		path:    path,
		process: opts.Process,
		stream:  opts.Stream,
		bus:     opts.Bus,
		logger:  opts.Logger.With("path", path, "stream", opts.Stream),
		poll:    opts.PollInterval,
		watcher: w,
		file:    f,
		offset:  offset,
	}, nil
}

// Path returns the followed file.
func (f *Follower) Path() string {
	return f.path
}

// Run publishes new lines until ctx is cancelled, then releases the file and
// watcher. It returns nil on cancellation.
func (f *Follower) Run(ctx context.Context) error {
	defer f.close()

	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create):
				f.reopen(ctx)
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				f.detach()
			case ev.Has(fsnotify.Write):
				f.readNew(ctx)
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn(ctx, "log watcher error", "err", err)

		case <-ticker.C:
			f.check(ctx)
		}
	}
}

// check covers events the watcher missed or coalesced.
func (f *Follower) check(ctx context.Context) {
	st, err := os.Stat(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn(ctx, "stat log file failed", "err", err)
		}
		return
	}
	if f.file == nil {
		f.reopen(ctx)
		return
	}
	if cur, err := f.file.Stat(); err == nil && !os.SameFile(st, cur) {
		f.reopen(ctx)
		return
	}
	f.readNew(ctx)
}

func (f *Follower) reopen(ctx context.Context) {
	f.detach()
	file, err := os.Open(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn(ctx, "reopen log file failed", "err", err)
		}
		return
	}
	f.file = file
	f.offset = 0
	f.logger.Info(ctx, "log file re-created, following from start")
	f.readNew(ctx)
}

func (f *Follower) detach() {
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
	}
	f.offset = 0
	f.partial = nil
}

func (f *Follower) readNew(ctx context.Context) {
	if f.file == nil {
		return
	}
	st, err := f.file.Stat()
	if err != nil {
		f.logger.Warn(ctx, "stat log file failed", "err", err)
		return
	}
	if st.Size() < f.offset {
		f.logger.Info(ctx, "log file truncated, following from start", "previous_offset", f.offset)
		f.offset = 0
		f.partial = nil
	}
	if st.Size() == f.offset {
		return
	}

	data, err := io.ReadAll(io.NewSectionReader(f.file, f.offset, st.Size()-f.offset))
	if err != nil {
		f.logger.Warn(ctx, "read log file failed", "err", err)
		return
	}
	f.offset += int64(len(data))
	f.publish(data)
}

func (f *Follower) publish(data []byte) {
	buf := append(f.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		f.emit(bytes.TrimSuffix(buf[:i], []byte("\r")))
		buf = buf[i+1:]
	}
	for len(buf) >= MaxLineBytes {
		n := cutPoint(buf, MaxLineBytes)
		f.emit(buf[:n])
		buf = buf[n:]
	}
	f.partial = append([]byte(nil), buf...)
}

func (f *Follower) emit(line []byte) {
	f.bus.Publish(Event{
		Process: f.process,
		Stream:  f.stream,
		Text:    string(line),
		Time:    time.Now(),
	})
}

// cutPoint returns n moved back to a rune boundary of b, or n itself when
// no boundary is found.
func cutPoint(b []byte, n int) int {
	if n >= len(b) {
		return len(b)
	}
	for i := n; i > n-utf8.UTFMax && i > 0; i-- {
		if utf8.RuneStart(b[i]) {
			return i
		}
	}
	return n
}

// Close releases the file and watcher of a follower that will not be Run.
func (f *Follower) Close() error {
	f.close()
	return nil
}

func (f *Follower) close() {
	f.detach()
	_ = f.watcher.Close()
}
