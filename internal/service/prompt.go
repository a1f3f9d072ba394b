package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DefaultReplyPrompt seeds a fresh deployment before anyone saves a prompt.
const DefaultReplyPrompt = "Você é um assistente útil e amigável. Responda de forma clara e concisa em português brasileiro."

// PromptStore holds the auto-reply system prompt, persisted to a file and
// hot-reloaded when that file changes on disk (edits from outside the API
// take effect without a restart).
type PromptStore struct {
	path    string
	mu      sync.RWMutex
	current string
}

func NewPromptStore(path string) (*PromptStore, error) {
	s := &PromptStore{path: path, current: DefaultReplyPrompt}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if prompt := strings.TrimSpace(string(data)); prompt != "" {
			s.current = prompt
		}
	case os.IsNotExist(err):
		// First boot; the default stands until a save happens.
	default:
		return nil, fmt.Errorf("prompt store: read %s: %w", path, err)
	}

	return s, nil
}

func (s *PromptStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save persists the prompt and makes it current.
func (s *PromptStore) Save(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("prompt store: empty prompt")
	}
	if err := os.WriteFile(s.path, []byte(content+"\n"), 0o644); err != nil {
		return fmt.Errorf("prompt store: write %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.current = content
	s.mu.Unlock()
	return nil
}

// Watch starts a background goroutine that reloads the prompt on file
// changes. Call the returned stop function to clean up.
func (s *PromptStore) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("prompt store: watcher: %w", err)
	}
	if err := w.Add(s.path); err != nil {
		// The file may not exist yet; watch its directory instead so the
		// first Save is picked up.
		if dirErr := w.Add(filepath.Dir(s.path)); dirErr != nil {
			w.Close()
			return nil, fmt.Errorf("prompt store: watch %s: %w", s.path, err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					data, err := os.ReadFile(s.path)
					if err != nil {
						continue
					}
					if prompt := strings.TrimSpace(string(data)); prompt != "" {
						s.mu.Lock()
						s.current = prompt
						s.mu.Unlock()
					}
				}
			case <-w.Errors:
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}
