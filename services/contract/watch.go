// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the catalog whenever its file changes, until ctx is done.
//
// Description:
//
//	The directory holding the catalog is watched so that editors saving
//	through a rename are noticed. Events are debounced by
//	catalog.debounce; a burst of writes causes one reload. A failed
//	reload is logged and the previous catalog stays in service.
//
// Outputs:
//
//	error - Non-nil if the watch cannot be established. Returns nil when
//	        ctx is cancelled.
func (s *Service) Watch(ctx context.Context) error {
	path := s.cfg.Catalog.Path
	if path == "" {
		return ErrNoCatalogPath
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("Watch: create fsnotify: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("Watch: watch %s: %w", dir, err)
	}
	s.options.Logger.InfoContext(ctx, "watching catalog",
		slog.String("path", path),
		slog.Duration("debounce", s.cfg.Catalog.Debounce),
	)

	target := filepath.Clean(path)
	timer := time.NewTimer(s.cfg.Catalog.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(s.cfg.Catalog.Debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			s.options.Logger.ErrorContext(ctx, "catalog watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			changed, err := s.Reload(ctx)
			if err != nil {
				s.options.Logger.ErrorContext(ctx, "catalog reload failed",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !changed {
				s.options.Logger.DebugContext(ctx, "catalog unchanged", slog.String("path", path))
			}
		}
	}
}
