package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lcx/pantyhose/config"
)

// LogAppender is an output destination for rendered log lines. Refresh
// flushes any buffered output (a no-op for synchronous appenders); Close
// releases any held file handle or background goroutine.
type LogAppender interface {
	Write(p []byte) (int, error)
	Refresh()
	Close() error
}

// ConsoleAppender writes every line straight to stdout.
type ConsoleAppender struct{}

func NewConsoleAppender() *ConsoleAppender { return &ConsoleAppender{} }

func (c *ConsoleAppender) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (c *ConsoleAppender) Refresh()                    {}
func (c *ConsoleAppender) Close() error                { return nil }

// FileAppender writes to a rotating log file, synchronously or through a
// bounded background queue depending on LogCfg.IsAsync. Rotation happens
// by size (FileSplitMB) the way the teacher's game servers size-cap logs
// to keep any single file manageable for rsync/tail-based ops tooling.
type FileAppender struct {
	mu            sync.Mutex
	cfg           *LogCfg
	owner         Logger
	file          *os.File
	size          int64
	rotatedHour   int
	async         bool
	queue         chan []byte
	flush         chan chan struct{}
	done          chan struct{}
	configManager config.ConfigManager
}

// NewFileAppender opens cfg.LogPath (creating parent directories as
// needed) and, if cfg.IsAsync, starts the background writer goroutine.
// owner is the logger instance this appender was installed on, kept only
// so future diagnostics can report which logger a file belongs to.
func NewFileAppender(cfg *LogCfg, owner Logger) *FileAppender {
	a := &FileAppender{cfg: cfg, owner: owner, done: make(chan struct{})}
	a.openLocked()
	if cfg.IsAsync {
		a.startAsync()
	}
	return a
}

// NewFileAppenderWithConfigManager builds a FileAppender from the
// "logger" config held by configManager and registers for hot-reload
// notifications so path/rotation/async settings can change without a
// process restart.
func NewFileAppenderWithConfigManager(configManager config.ConfigManager, owner Logger) *FileAppender {
	cfg := getDefaultCfg()
	if raw, err := configManager.GetConfig("logger"); err == nil {
		if lc, ok := raw.(*LogCfg); ok {
			cfg = lc
		}
	}

	a := NewFileAppender(cfg, owner)
	a.configManager = configManager
	configManager.AddChangeListener(a)
	return a
}

func (a *FileAppender) openLocked() {
	if dir := filepath.Dir(a.cfg.LogPath); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	f, err := os.OpenFile(a.cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Printf("log: failed to open %s: %v\n", a.cfg.LogPath, err)
		return
	}
	a.file = f
	a.size = 0
	if info, err := f.Stat(); err == nil {
		a.size = info.Size()
	}
	a.rotatedHour = time.Now().Hour()
}

func (a *FileAppender) startAsync() {
	size := a.cfg.AsyncCacheSize
	if size <= 0 {
		size = 1024
	}
	a.queue = make(chan []byte, size)
	a.flush = make(chan chan struct{})
	a.async = true
	go a.run()
}

func (a *FileAppender) run() {
	for {
		select {
		case b, ok := <-a.queue:
			if !ok {
				return
			}
			a.writeSync(b)
		case reply := <-a.flush:
		drain:
			for {
				select {
				case b := <-a.queue:
					a.writeSync(b)
				default:
					break drain
				}
			}
			close(reply)
		case <-a.done:
			return
		}
	}
}

// Write renders p to the file, either synchronously or by handing a copy
// to the background writer goroutine.
func (a *FileAppender) Write(p []byte) (int, error) {
	a.mu.Lock()
	async := a.async
	a.mu.Unlock()

	if async {
		b := make([]byte, len(p))
		copy(b, p)
		a.queue <- b
		return len(p), nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writeSync(p)
}

func (a *FileAppender) writeSync(p []byte) (int, error) {
	if a.file == nil {
		return 0, fmt.Errorf("log: file appender has no open file")
	}
	if splitMB := a.cfg.FileSplitMB; splitMB > 0 {
		limit := int64(splitMB) * 1024 * 1024
		if a.size+int64(len(p)) > limit {
			a.rotate()
		}
	}
	if a.cfg.FileSplitHour > 0 {
		if h := time.Now().Hour(); h != a.rotatedHour && h == a.cfg.FileSplitHour {
			a.rotate()
		}
	}

	n, err := a.file.Write(p)
	a.size += int64(n)
	return n, err
}

// rotate closes the current file, renames it with a timestamp suffix, and
// opens a fresh file at the configured path.
func (a *FileAppender) rotate() {
	if a.file != nil {
		_ = a.file.Close()
		rotated := fmt.Sprintf("%s.%s", a.cfg.LogPath, time.Now().Format("20060102-150405"))
		_ = os.Rename(a.cfg.LogPath, rotated)
	}
	a.openLocked()
}

// Refresh drains whatever is currently queued without waiting for future
// writes, so callers get a bounded-time flush rather than a block forever.
func (a *FileAppender) Refresh() {
	a.mu.Lock()
	async := a.async
	a.mu.Unlock()
	if !async {
		return
	}
	reply := make(chan struct{})
	a.flush <- reply
	<-reply
}

func (a *FileAppender) Close() error {
	a.mu.Lock()
	async := a.async
	a.mu.Unlock()
	if async {
		a.Refresh()
		close(a.done)
	}
	if a.configManager != nil {
		a.configManager.RemoveChangeListener(a)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// GetCurrentConfig returns the appender's active configuration.
func (a *FileAppender) GetCurrentConfig() *LogCfg {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// OnConfigChanged implements config.ConfigChangeListener, re-opening the
// file on a path change and switching sync/async mode as needed.
func (a *FileAppender) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != "logger" {
		return nil
	}
	newCfg, ok := newConfig.(*LogCfg)
	if !ok {
		return nil
	}

	a.mu.Lock()
	pathChanged := newCfg.LogPath != a.cfg.LogPath
	wantAsync := newCfg.IsAsync
	hadAsync := a.async
	a.cfg = newCfg
	if pathChanged {
		if a.file != nil {
			_ = a.file.Close()
		}
		a.openLocked()
	}
	a.mu.Unlock()

	if wantAsync && !hadAsync {
		a.startAsync()
	} else if !wantAsync && hadAsync {
		a.Refresh()
		close(a.done)
		a.done = make(chan struct{})
		a.mu.Lock()
		a.async = false
		a.mu.Unlock()
	}
	return nil
}
