package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStorage implements Storage over a hierarchical directory tree.
type LocalStorage struct {
	basePath string
	baseURL  string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Owns reports whether the URL was minted by this backend.
func (s *LocalStorage) Owns(url string) bool {
	return strings.HasPrefix(url, s.baseURL+"/")
}

// URL returns the public URL for a key
func (s *LocalStorage) URL(key string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, key)
}

// keyFromURL resolves a URL back to a storage key, rejecting foreign hosts
// and path traversal.
func (s *LocalStorage) keyFromURL(url string) (string, error) {
	if !s.Owns(url) {
		return "", ErrForeignURL
	}
	key := strings.TrimPrefix(url, s.baseURL+"/")
	if key == "" || strings.Contains(key, "..") {
		return "", ErrForeignURL
	}
	return key, nil
}

// Put stores a file locally
func (s *LocalStorage) Put(ctx context.Context, key string, reader io.Reader, opts PutOptions) (*PutResult, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(file, reader)
	if err != nil {
		os.Remove(fullPath) // Cleanup on error
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &PutResult{URL: s.URL(key), Size: n}, nil
}

// Get retrieves a file from local storage
func (s *LocalStorage) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	key, err := s.keyFromURL(url)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Head returns object metadata without reading the body
func (s *LocalStorage) Head(ctx context.Context, url string) (*ObjectInfo, error) {
	key, err := s.keyFromURL(url)
	if err != nil {
		return nil, err
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	stat, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	contentType := ""
	if f, err := os.Open(fullPath); err == nil {
		head := make([]byte, 512)
		n, _ := f.Read(head)
		f.Close()
		if n > 0 {
			contentType = sniffMimeType(head[:n])
		}
	}

	return &ObjectInfo{
		Key:          key,
		URL:          url,
		ContentType:  contentType,
		Size:         stat.Size(),
		LastModified: stat.ModTime(),
	}, nil
}

// Delete removes a file from local storage
func (s *LocalStorage) Delete(ctx context.Context, url string) error {
	key, err := s.keyFromURL(url)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(key))); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Copy duplicates an object under a new key
func (s *LocalStorage) Copy(ctx context.Context, fromURL, toKey string) (*PutResult, error) {
	reader, err := s.Get(ctx, fromURL)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return s.Put(ctx, toKey, reader, PutOptions{})
}

// List returns one page of keys under a prefix, ordered lexicographically.
// cursor is the last key of the previous page.
func (s *LocalStorage) List(ctx context.Context, prefix, cursor string, limit int) (*ListResult, error) {
	if limit <= 0 {
		limit = 1000
	}

	var keys []string
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) && key > cursor {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk storage tree: %w", err)
	}

	sort.Strings(keys)

	hasMore := len(keys) > limit
	if hasMore {
		keys = keys[:limit]
	}

	result := &ListResult{HasMore: hasMore}
	for _, key := range keys {
		stat, err := os.Stat(filepath.Join(s.basePath, filepath.FromSlash(key)))
		if err != nil {
			continue
		}
		result.Items = append(result.Items, ObjectInfo{
			Key:          key,
			URL:          s.URL(key),
			Size:         stat.Size(),
			LastModified: stat.ModTime(),
		})
	}
	if hasMore && len(result.Items) > 0 {
		result.Cursor = result.Items[len(result.Items)-1].Key
	}
	return result, nil
}

func sniffMimeType(head []byte) string {
	mimeType := http.DetectContentType(head)
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}
