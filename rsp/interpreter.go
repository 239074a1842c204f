package rsp

import (
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/rustlet-web/rustlet/http"
	"github.com/rustlet-web/rustlet/http/status"
	"github.com/rustlet-web/rustlet/logging"
)

// Invoker runs a named rustlet against a request. Implemented by the registry;
// an unknown name must surface as status.ErrUnknownRustlet.
type Invoker interface {
	Invoke(name string, request *http.Request) error
}

// Interpreter serves page documents from the web root. Parsed *.rsp documents
// are cached; a filesystem watcher drops cache entries when the underlying
// files change, so edits take effect without a restart.
type Interpreter struct {
	root    string
	invoker Invoker
	log     *logging.System

	mu      sync.RWMutex
	cache   map[string]*Document
	watched map[string]struct{}
	watcher *fsnotify.Watcher
}

func NewInterpreter(root string, invoker Invoker, log *logging.System) (*Interpreter, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	i := &Interpreter{
		root:    root,
		invoker: invoker,
		log:     log,
		cache:   map[string]*Document{},
		watched: map[string]struct{}{},
		watcher: watcher,
	}

	go i.watch()

	return i, nil
}

// Serve renders the page document named by the request path. Literal segments
// and rustlet output interleave in source order; all invoked rustlets share
// the request and therefore its response buffer and session.
func (i *Interpreter) Serve(request *http.Request) error {
	location, err := i.resolve(request.Path)
	if err != nil {
		return err
	}

	doc, err := i.document(location)
	if err != nil {
		return err
	}

	response := request.Respond()

	for _, segment := range doc.Segments() {
		if len(segment.Invoke) > 0 {
			if err := i.invoker.Invoke(segment.Invoke, request); err != nil {
				return err
			}

			continue
		}

		response.WriteString(segment.Literal)
	}

	return nil
}

// ServeFile sends a plain file from the web root, with the content type
// guessed from the extension. Page documents never go through here.
func (i *Interpreter) ServeFile(request *http.Request) error {
	location, err := i.resolve(request.Path)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(location)
	if err != nil {
		return status.ErrNotFound
	}

	response := request.Respond()
	if contentType := mime.TypeByExtension(filepath.Ext(location)); len(contentType) > 0 {
		response.ContentType(contentType)
	}

	_, _ = response.Write(content)

	return nil
}

// resolve maps a request path onto the web root, refusing anything that would
// escape it.
func (i *Interpreter) resolve(reqPath string) (string, error) {
	cleaned := path.Clean("/" + reqPath)
	if strings.Contains(cleaned, "..") {
		return "", status.ErrNotFound
	}

	return filepath.Join(i.root, filepath.FromSlash(cleaned)), nil
}

func (i *Interpreter) document(location string) (*Document, error) {
	i.mu.RLock()
	doc, cached := i.cache[location]
	i.mu.RUnlock()

	if cached {
		return doc, nil
	}

	src, err := os.ReadFile(location)
	if err != nil {
		return nil, status.ErrNotFound
	}

	doc, err = ParseDocument(src)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	i.cache[location] = doc
	i.mu.Unlock()
	i.watchDir(filepath.Dir(location))

	return doc, nil
}

// watchDir subscribes to the directory of a cached document. Watching the
// directory instead of the file survives editors that replace files on save.
func (i *Interpreter) watchDir(dir string) {
	i.mu.Lock()
	_, known := i.watched[dir]
	if !known {
		i.watched[dir] = struct{}{}
	}
	i.mu.Unlock()

	if known {
		return
	}

	if err := i.watcher.Add(dir); err != nil && i.log != nil {
		i.log.Warn("page cache: cannot watch %s: %s", dir, err)
	}
}

func (i *Interpreter) watch() {
	for {
		select {
		case event, ok := <-i.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				i.invalidate(event.Name)
			}
		case err, ok := <-i.watcher.Errors:
			if !ok {
				return
			}

			if i.log != nil {
				i.log.Warn("page cache watcher: %s", err)
			}
		}
	}
}

func (i *Interpreter) invalidate(location string) {
	i.mu.Lock()
	delete(i.cache, location)
	i.mu.Unlock()
}

// Close stops the filesystem watcher.
func (i *Interpreter) Close() error {
	return i.watcher.Close()
}
