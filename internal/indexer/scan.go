package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"groundchat/internal/contextutil"
)

// ingestibleExt lists the file extensions picked up by directory scans.
var ingestibleExt = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// ScannedFile is a document found during a directory scan.
type ScannedFile struct {
	RelPath string // relative to the scanned root, forward slashes
	AbsPath string
}

// ScanDir walks root and returns every ingestible file in lexical order.
// Hidden files and directories are skipped.
func ScanDir(ctx context.Context, root string) ([]ScannedFile, error) {
	var files []ScannedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !ingestibleExt[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		files = append(files, ScannedFile{
			RelPath: filepath.ToSlash(relPath),
			AbsPath: path,
		})
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return files, nil
}

// DirResult summarizes one directory ingestion.
type DirResult struct {
	Created int
	Known   int
	Failed  int
}

// IngestDir ingests every file found under root. Failures of single files are logged
// and counted; only a failed scan or a cancelled context aborts the run.
func (p *Pipeline) IngestDir(ctx context.Context, root string) (DirResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := ScanDir(ctx, root)
	if err != nil {
		return DirResult{}, err
	}

	var res DirResult
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		content, err := os.ReadFile(f.AbsPath)
		if err != nil {
			logger.WarnContext(ctx, "failed to read document", "path", f.RelPath, "error", err)
			res.Failed++
			continue
		}

		doc, created, err := p.Ingest(ctx, f.RelPath, content)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return res, err
		case errors.Is(err, ErrEmptyDocument):
			logger.DebugContext(ctx, "skipping empty document", "path", f.RelPath)
		case err != nil:
			logger.WarnContext(ctx, "failed to ingest document", "path", f.RelPath, "error", err)
			res.Failed++
		case created:
			logger.InfoContext(ctx, "document ingested", "path", f.RelPath, "document_id", doc.ID, "chunks", doc.ChunkCount)
			res.Created++
		default:
			res.Known++
		}
	}
	return res, nil
}
