package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	orchestration "github.com/koscakluka/ema-rehearse/core"
)

// WatchScenarios reloads the scenario catalog at path whenever it changes and
// hands valid catalogs to onChange. Invalid catalogs go to onError and the
// previous catalog stays in place. This blocks until done is closed.
func WatchScenarios(path string, onChange func([]orchestration.Scenario), onError func(error), done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	// Editors replace files on save, so the directory is watched.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch dir %q: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			scenarios, err := LoadScenarios(path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			onChange(scenarios)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
