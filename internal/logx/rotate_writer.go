package logx

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const backupStamp = "20060102-150405.000000000"

type RotateOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	// MaxAgeDays of zero keeps backups regardless of age.
	MaxAgeDays int
	Compress   bool
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (o RotateOptions) validate() error {
	switch {
	case strings.TrimSpace(o.Path) == "":
		return errors.New("access log rotate path is empty")
	case o.MaxSizeMB <= 0:
		return errors.New("max_size_mb must be > 0")
	case o.MaxBackups <= 0:
		return errors.New("max_backups must be > 0")
	case o.MaxAgeDays < 0:
		return errors.New("max_age_days must be >= 0")
	}
	return nil
}

// AccessRotateWriter is an io.WriteCloser that starts a new file when the
// current one would exceed MaxSizeMB or when the local day changes. Old files
// are renamed to <path>.<stamp>[.gz] and pruned by count and age.
type AccessRotateWriter struct {
	opts  RotateOptions
	limit int64

	mu     sync.Mutex
	file   *os.File
	size   int64
	day    string
	closed bool
}

func NewAccessRotateWriter(opts RotateOptions) (*AccessRotateWriter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.Path = strings.TrimSpace(opts.Path)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	w := &AccessRotateWriter{opts: opts, limit: int64(opts.MaxSizeMB) << 20}
	if err := w.open(opts.Now()); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *AccessRotateWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, os.ErrClosed
	}
	now := w.opts.Now()
	if localDay(now) != w.day || (w.size > 0 && w.size+int64(len(p)) > w.limit) {
		if err := w.rotate(now); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *AccessRotateWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.file == nil {
		w.closed = true
		return nil
	}
	w.closed = true
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *AccessRotateWriter) open(now time.Time) error {
	f, err := os.OpenFile(w.opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.file, w.size, w.day = f, st.Size(), localDay(now)
	return nil
}

func (w *AccessRotateWriter) rotate(now time.Time) error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	backup := w.opts.Path + "." + now.In(time.Local).Format(backupStamp)
	renameErr := os.Rename(w.opts.Path, backup)
	if renameErr != nil && !errors.Is(renameErr, os.ErrNotExist) {
		if err := w.open(now); err != nil {
			return err
		}
		return renameErr
	}
	if renameErr == nil && w.opts.Compress {
		if err := gzipFile(backup); err != nil {
			return fmt.Errorf("compress %s: %w", backup, err)
		}
	}
	if err := w.open(now); err != nil {
		return err
	}
	w.prune(now)
	return nil
}

type backupFile struct {
	path  string
	stamp time.Time
}

// prune is best effort; a failing remove is retried on the next rotation.
func (w *AccessRotateWriter) prune(now time.Time) {
	backups := w.backups()
	cutoff := time.Time{}
	if w.opts.MaxAgeDays > 0 {
		cutoff = now.AddDate(0, 0, -w.opts.MaxAgeDays)
	}
	for i, b := range backups {
		if i >= w.opts.MaxBackups || b.stamp.Before(cutoff) {
			_ = os.Remove(b.path)
		}
	}
}

// backups lists rotated files, newest first.
func (w *AccessRotateWriter) backups() []backupFile {
	dir := filepath.Dir(w.opts.Path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	prefix := filepath.Base(w.opts.Path) + "."
	var out []backupFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".gz")
		ts, err := time.ParseInLocation(backupStamp, stamp, time.Local)
		if err != nil {
			continue
		}
		out = append(out, backupFile{path: filepath.Join(dir, name), stamp: ts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].stamp.After(out[j].stamp) })
	return out
}

func gzipFile(path string) (err error) {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	tmp := path + ".gz.tmp"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	zw := gzip.NewWriter(dst)
	if _, err = io.Copy(zw, src); err != nil {
		_ = dst.Close()
		return err
	}
	if err = zw.Close(); err != nil {
		_ = dst.Close()
		return err
	}
	if err = dst.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp, path+".gz"); err != nil {
		return err
	}
	return os.Remove(path)
}

func localDay(t time.Time) string {
	return t.In(time.Local).Format("20060102")
}
