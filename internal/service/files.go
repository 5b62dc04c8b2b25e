package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/DevPlane/internal/domain"
	"github.com/Strob0t/DevPlane/internal/port/cache"
)

// RootResolver maps a project id to its workspace root directory. The
// project service implements it.
type RootResolver interface {
	Root(ctx context.Context, projectID string) (string, error)
}

// FileInfo describes one workspace tree entry.
type FileInfo struct {
	Path  string `json:"path"`
	Dir   bool   `json:"dir"`
	Size  int64  `json:"size"`
	ETag  string `json:"etag,omitempty"`
	MTime int64  `json:"mtime"`
}

// FileContent is a file read result with its version token.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	ETag    string `json:"etag"`
}

// BatchOp is one item of a batch write. Action is "write" or "delete".
type BatchOp struct {
	Action  string `json:"action"`
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
	ETag    string `json:"etag,omitempty"`
}

// BatchResult reports the outcome of one batch item. Items are resolved
// independently: a stale token fails its own item only.
type BatchResult struct {
	Path  string `json:"path"`
	OK    bool   `json:"ok"`
	ETag  string `json:"etag,omitempty"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// SearchMatch is one line hit from a workspace text search.
type SearchMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// FilesService exposes project workspace file operations with optimistic
// concurrency. All writes are serialized through one mutex; reads go
// through a content cache keyed by absolute path.
type FilesService struct {
	roots    RootResolver
	etags    *ETagManager
	cache    cache.Cache
	cacheTTL time.Duration

	wmu sync.Mutex
}

func NewFilesService(roots RootResolver, etags *ETagManager, c cache.Cache, ttl time.Duration) *FilesService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &FilesService{roots: roots, etags: etags, cache: c, cacheTTL: ttl}
}

// Tree walks the workspace under dir and returns entries sorted by path.
// Hidden directories such as .git are skipped.
func (s *FilesService) Tree(ctx context.Context, projectID, dir string) ([]FileInfo, error) {
	base, err := s.resolve(ctx, projectID, dir)
	if err != nil {
		return nil, err
	}
	root, err := s.roots.Root(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var out []FileInfo
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == base {
				return domain.NotFoundf("path %s not found", dir)
			}
			return err
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") && p != base {
			return fs.SkipDir
		}
		if p == base {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		out = append(out, FileInfo{
			Path:  filepath.ToSlash(rel),
			Dir:   d.IsDir(),
			Size:  info.Size(),
			MTime: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read returns a file's content and its current version token.
func (s *FilesService) Read(ctx context.Context, projectID, path string) (*FileContent, error) {
	abs, err := s.resolve(ctx, projectID, path)
	if err != nil {
		return nil, err
	}

	var data []byte
	if s.cache != nil {
		if cached, ok, cerr := s.cache.Get(ctx, "file:"+abs); cerr == nil && ok {
			data = cached
		}
	}
	if data == nil {
		data, err = os.ReadFile(abs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, domain.NotFoundf("file %s not found", path)
			}
			return nil, err
		}
		if s.cache != nil {
			if cerr := s.cache.Set(ctx, "file:"+abs, data, s.cacheTTL); cerr != nil {
				slog.DebugContext(ctx, "file cache set failed", "path", path, "error", cerr)
			}
		}
	}

	return &FileContent{
		Path:    path,
		Content: string(data),
		ETag:    s.etags.Current(abs, data),
	}, nil
}

// Write stores content at path. A non-empty etag must match the file's
// current token or the write is rejected with a conflict; an empty etag
// means last writer wins. Returns the new token and whether the file was
// created.
func (s *FilesService) Write(ctx context.Context, projectID, path, content, etag string) (string, bool, error) {
	abs, err := s.resolve(ctx, projectID, path)
	if err != nil {
		return "", false, err
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	existing, readErr := os.ReadFile(abs)
	created := false
	switch {
	case readErr == nil:
		if err := s.etags.Validate(abs, etag, existing); err != nil {
			return "", false, err
		}
	case errors.Is(readErr, fs.ErrNotExist):
		if etag != "" {
			return "", false, domain.Conflictf("etag supplied for %s but file does not exist", path)
		}
		created = true
	default:
		return "", false, readErr
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", false, err
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return "", false, err
	}
	next := s.etags.Commit(abs, []byte(content))
	if s.cache != nil {
		if cerr := s.cache.Set(ctx, "file:"+abs, []byte(content), s.cacheTTL); cerr != nil {
			slog.DebugContext(ctx, "file cache set failed", "path", path, "error", cerr)
		}
	}
	return next, created, nil
}

// Delete removes a file, honoring the same token check as Write.
func (s *FilesService) Delete(ctx context.Context, projectID, path, etag string) error {
	abs, err := s.resolve(ctx, projectID, path)
	if err != nil {
		return err
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	existing, readErr := os.ReadFile(abs)
	if readErr != nil {
		if errors.Is(readErr, fs.ErrNotExist) {
			return domain.NotFoundf("file %s not found", path)
		}
		return readErr
	}
	if err := s.etags.Validate(abs, etag, existing); err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return err
	}
	s.etags.Forget(abs)
	if s.cache != nil {
		if cerr := s.cache.Delete(ctx, "file:"+abs); cerr != nil {
			slog.DebugContext(ctx, "file cache delete failed", "path", path, "error", cerr)
		}
	}
	return nil
}

// Batch applies write and delete ops one by one. Each item is resolved on
// its own; a failed item never aborts the rest.
func (s *FilesService) Batch(ctx context.Context, projectID string, ops []BatchOp) []BatchResult {
	results := make([]BatchResult, 0, len(ops))
	for _, op := range ops {
		res := BatchResult{Path: op.Path}
		switch op.Action {
		case "write":
			etag, _, err := s.Write(ctx, projectID, op.Path, op.Content, op.ETag)
			if err != nil {
				res.Code = string(domain.CodeOf(err))
				res.Error = err.Error()
			} else {
				res.OK = true
				res.ETag = etag
			}
		case "delete":
			if err := s.Delete(ctx, projectID, op.Path, op.ETag); err != nil {
				res.Code = string(domain.CodeOf(err))
				res.Error = err.Error()
			} else {
				res.OK = true
			}
		default:
			res.Code = string(domain.CodeInvalidInput)
			res.Error = "unknown action " + op.Action
		}
		results = append(results, res)
	}
	return results
}

// Search scans workspace files for lines containing query, up to limit
// matches. Binary-looking files are skipped.
func (s *FilesService) Search(ctx context.Context, projectID, query string, limit int) ([]SearchMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.Invalidf("query is required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	root, err := s.roots.Root(ctx, projectID)
	if err != nil {
		return nil, err
	}

	matches := make([]SearchMatch, 0)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if len(matches) >= limit {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != root {
				return fs.SkipDir
			}
			return nil
		}
		data, rerr := os.ReadFile(p)
		if rerr != nil {
			return nil
		}
		if strings.ContainsRune(string(data[:min(len(data), 512)]), '\x00') {
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(line, query) {
				matches = append(matches, SearchMatch{
					Path: filepath.ToSlash(rel),
					Line: i + 1,
					Text: strings.TrimRight(line, "\r"),
				})
				if len(matches) >= limit {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// resolve maps a project-relative path onto the filesystem, rejecting any
// path that escapes the workspace root.
func (s *FilesService) resolve(ctx context.Context, projectID, rel string) (string, error) {
	root, err := s.roots.Root(ctx, projectID)
	if err != nil {
		return "", err
	}
	root = filepath.Clean(root)

	clean := filepath.Clean("/" + filepath.FromSlash(rel))
	abs := filepath.Join(root, clean)
	if abs != root && !strings.HasPrefix(abs, root+string(os.PathSeparator)) {
		return "", domain.Invalidf("path %s escapes the workspace", rel)
	}
	return abs, nil
}
