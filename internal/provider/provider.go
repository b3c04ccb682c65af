// Package provider resolves debug-information records for scripts from the
// filesystem. A script named main.js has its record at <root>/main.js.jdbg;
// decoded records are cached and, when watching is enabled, evicted when
// the file changes on disk.
package provider

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jsaot/debug/internal/debuginfo"
	"github.com/jsaot/debug/internal/errors"
)

// FileProvider implements debugger.InformationProvider over a directory of
// record files.
type FileProvider struct {
	root   string
	suffix string

	mu    sync.Mutex
	cache map[string]*debuginfo.Info

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileProvider creates a provider over the given directory. With watch
// enabled it evicts cached records when their files change, so a rebuilt
// project is picked up without restarting the server.
func NewFileProvider(root, suffix string, watch bool) (*FileProvider, error) {
	p := &FileProvider{
		root:   root,
		suffix: suffix,
		cache:  make(map[string]*debuginfo.Info),
	}

	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		if err := watcher.Add(root); err != nil {
			watcher.Close()
			return nil, err
		}
		p.watcher = watcher
		p.done = make(chan struct{})
		go p.watchLoop()
	}

	return p, nil
}

// GetDebugInformation returns the decoded record for a script, or nil when
// the record is missing or malformed. Successful decodes are cached;
// failures are not, so a record that appears later is picked up.
func (p *FileProvider) GetDebugInformation(script string) *debuginfo.Info {
	name := filepath.Base(script)

	p.mu.Lock()
	if info, ok := p.cache[name]; ok {
		p.mu.Unlock()
		return info
	}
	p.mu.Unlock()

	path := filepath.Join(p.root, name+p.suffix)
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("provider: %v", errors.RecordNotFound(script).WithCause(err))
		}
		return nil
	}
	defer f.Close()

	info, err := debuginfo.Read(f)
	if err != nil {
		log.Printf("provider: %v", errors.RecordInvalid(path, err))
		return nil
	}

	p.mu.Lock()
	// A concurrent load of the same record may have won; keep the first so
	// pointer identity stays stable for callers.
	if cached, ok := p.cache[name]; ok {
		info = cached
	} else {
		p.cache[name] = info
	}
	p.mu.Unlock()
	return info
}

// invalidate drops the cached record for a script name.
func (p *FileProvider) invalidate(name string) {
	p.mu.Lock()
	delete(p.cache, name)
	p.mu.Unlock()
}

// watchLoop evicts cache entries for record files that change on disk.
func (p *FileProvider) watchLoop() {
	for {
		select {
		case <-p.done:
			return
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, p.suffix) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := strings.TrimSuffix(filepath.Base(ev.Name), p.suffix)
			p.invalidate(name)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("provider: watch error: %v", err)
		}
	}
}

// Close stops the watcher, if any.
func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.done)
	return p.watcher.Close()
}
