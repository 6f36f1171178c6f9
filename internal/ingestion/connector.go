package ingestion

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/rs/zerolog"
)

// RawFile is one file picked up by a connector
type RawFile struct {
	Name string
	Data []byte
	Path string // empty for non-filesystem sources
}

// Connector pulls files from a loader's configured source. Remote
// connector types (GCS, S3, HTTP, SFTP) are configured but not yet
// implemented; a scheduled run for them finds zero files rather than
// failing.
type Connector interface {
	Fetch(loader *types.VolumeLoader) ([]RawFile, error)
	Archive(loader *types.VolumeLoader, file RawFile) error
}

// ConnectorFor returns the connector for a loader type, or nil when the
// type has no working connector
func ConnectorFor(loaderType types.LoaderType, logger zerolog.Logger) Connector {
	if loaderType == types.LoaderLocal {
		return &LocalConnector{logger: logger.With().Str("component", "local-connector").Logger()}
	}
	return nil
}

// LocalConnector scans a watch directory for files matching the loader's
// glob and moves consumed files into the archive directory.
type LocalConnector struct {
	logger zerolog.Logger
}

// Fetch reads every matching file in the watch directory
func (c *LocalConnector) Fetch(loader *types.VolumeLoader) ([]RawFile, error) {
	glob := loader.FileGlob
	if glob == "" {
		glob = "*"
	}
	matches, err := filepath.Glob(filepath.Join(loader.WatchDir, glob))
	if err != nil {
		return nil, fmt.Errorf("bad file glob %q: %w", glob, err)
	}

	var files []RawFile
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			c.logger.Error().Err(err).Str("path", path).Msg("failed to read watched file")
			continue
		}
		files = append(files, RawFile{Name: filepath.Base(path), Data: data, Path: path})
	}

	c.logger.Debug().
		Str("loader", loader.Name).
		Str("dir", loader.WatchDir).
		Int("files", len(files)).
		Msg("watch directory scanned")
	return files, nil
}

// Archive moves a consumed file out of the watch directory so the next
// scan does not pick it up again. With no archive directory configured the
// file is deleted.
func (c *LocalConnector) Archive(loader *types.VolumeLoader, file RawFile) error {
	if file.Path == "" {
		return nil
	}
	if loader.ArchiveDir == "" {
		return os.Remove(file.Path)
	}
	if err := os.MkdirAll(loader.ArchiveDir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	target := filepath.Join(loader.ArchiveDir, file.Name)
	if err := os.Rename(file.Path, target); err != nil {
		return fmt.Errorf("archive %s: %w", file.Name, err)
	}
	return nil
}
