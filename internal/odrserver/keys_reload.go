package odrserver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/r9s-ai/open-data-router/internal/keystore"
	"github.com/r9s-ai/open-data-router/pkg/config"
)

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

// loadKeys reads keys.file. A missing file is not an error unless the keyacl
// hooks need it.
func loadKeys(cfg *config.Config) (*keystore.Store, error) {
	path := strings.TrimSpace(cfg.Keys.File)
	ks, err := keystore.Load(path)
	if err == nil {
		return ks, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !strings.EqualFold(cfg.Dispatch.Hooks, HooksKeyACL) {
		return nil, nil
	}
	return nil, fmt.Errorf("load keys file %q: %w", path, err)
}

func reloadKeys(cfg *config.Config, st *state, logger *log.Logger, trigger string) {
	ks, err := keystore.Load(cfg.Keys.File)
	if err != nil {
		logger.Printf("[ODR] reload failed (%s): %v", trigger, err)
		return
	}
	st.SetKeys(ks)
	logger.Printf("[ODR] reload ok (%s): keys_file=%q access_keys=%d", trigger, cfg.Keys.File, len(ks.AccessKeys()))
}

// installKeysAutoReload watches the directory of keys.file, since editors
// often replace the file instead of writing it, and reloads after events
// settle for debounce_ms.
func installKeysAutoReload(cfg *config.Config, st *state, mu *sync.Mutex, logger *log.Logger) (io.Closer, error) {
	if !cfg.Keys.AutoReload.Enabled {
		return nil, nil
	}
	path := strings.TrimSpace(cfg.Keys.File)
	if path == "" {
		return nil, nil
	}
	debounce := time.Duration(cfg.Keys.AutoReload.DebounceMs) * time.Millisecond

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		for {
			select {
			case <-stop:
				if timer != nil {
					timer.Stop()
				}
				return
			case <-timerC:
				timerC = nil
				mu.Lock()
				reloadKeys(cfg, st, logger, "keys auto")
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Printf("[ODR] keys auto-reload watcher error: %v", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isKeysFileEvent(evt, path) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Stop()
					timer.Reset(debounce)
				}
				timerC = timer.C
			}
		}
	}()

	logger.Printf("[ODR] keys auto-reload enabled: file=%q debounce_ms=%d", path, cfg.Keys.AutoReload.DebounceMs)
	return closerFunc(func() error {
		close(stop)
		err := watcher.Close()
		<-done
		return err
	}), nil
}

func isKeysFileEvent(evt fsnotify.Event, keysPath string) bool {
	if strings.TrimSpace(evt.Name) == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	return filepath.Base(evt.Name) == filepath.Base(keysPath)
}

func writePIDFile(path string) (io.Closer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o600); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	return closerFunc(func() error { return os.Remove(path) }), nil
}
