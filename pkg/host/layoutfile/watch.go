package layoutfile

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/flowlines/pkg/anchor"
)

// SettleDelay is how long Watch waits after the last change event before
// reloading, so a save that truncates and rewrites is read once.
const SettleDelay = 50 * time.Millisecond

// Watch applies every successfully loaded revision of path to h until ctx
// is done. since is the modification time of the revision h already holds
// (Document.ModTime); a file that changed before the watcher was armed is
// reloaded straight away. A revision that fails to load is logged and
// skipped, and the host keeps the previous layout.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a temporary file over path are followed.
func Watch(ctx context.Context, path string, h *anchor.StaticHost, since time.Time, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	path = filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	reload := func() {
		doc, err := Load(path)
		if err != nil {
			logger.Warn("layout reload failed, keeping previous", "path", path, "err", err)
			return
		}
		doc.Apply(h)
		logger.Debug("layout reloaded", "path", path, "elements", len(doc.Elements))
	}

	if fi, err := os.Stat(path); err == nil && !fi.ModTime().Equal(since) {
		reload()
	}

	settle := time.NewTimer(SettleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			settle.Reset(SettleDelay)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("layout watch error", "path", path, "err", err)
		case <-settle.C:
			reload()
		}
	}
}
