package sqlite

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts the debug index, a tailsql console over the run
// database and a backup download under /debug/ on mux.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("create tailsql server: %w", err)
	}
	name := s.path
	if name == "" {
		name = "casa.db"
	}
	tsql.SetDB("sqlite://"+filepath.Base(name), s.db, &tailsql.DBOptions{
		Label: "CASA runs",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the run database now", http.HandlerFunc(s.handleBackup))
	return nil
}

// handleBackup takes the snapshot before any header is written so a failed
// VACUUM still yields a plain 500. Once streaming has begun, errors can
// only be logged.
func (s *Store) handleBackup(w http.ResponseWriter, r *http.Request) {
	f, cleanup, err := s.snapshot()
	if err != nil {
		s.logger.Error("[Store] backup failed", "error", err)
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer cleanup()

	name := fmt.Sprintf("casa-backup-%d.db", s.clock.Now().Unix())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")
	if err := writeGzip(w, f); err != nil {
		s.logger.Error("[Store] backup stream interrupted", "error", err)
	}
}

// Backup snapshots the database with VACUUM INTO and streams it to w
// gzip-compressed.
func (s *Store) Backup(w io.Writer) error {
	f, cleanup, err := s.snapshot()
	if err != nil {
		return err
	}
	defer cleanup()
	return writeGzip(w, f)
}

// snapshot writes a consistent copy of the database to a temp file and
// returns it opened for reading. cleanup closes and removes it.
func (s *Store) snapshot() (*os.File, func(), error) {
	dir, err := os.MkdirTemp("", "casa-backup-")
	if err != nil {
		return nil, nil, fmt.Errorf("create backup dir: %w", err)
	}
	removeDir := func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("[Store] failed to remove backup dir", "dir", dir, "error", err)
		}
	}

	path := filepath.Join(dir, "backup.db")
	if _, err := s.db.Exec("VACUUM INTO ?", path); err != nil {
		removeDir()
		return nil, nil, fmt.Errorf("vacuum into %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		removeDir()
		return nil, nil, fmt.Errorf("open backup: %w", err)
	}
	return f, func() {
		f.Close()
		removeDir()
	}, nil
}

func writeGzip(w io.Writer, r io.Reader) error {
	gz := gzip.NewWriter(w)
	if _, err := io.Copy(gz, r); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return gz.Close()
}
