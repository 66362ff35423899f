package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

const DefaultCorpusPattern = "**/*.{json,json.gz}"

// ListCorpusFiles returns the files of a corpus in a stable order. A path that
// names a file is returned as is, whatever the pattern says.
func ListCorpusFiles(ctx context.Context, root string, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultCorpusPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid corpus pattern %q", pattern)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat corpus path %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var mu sync.Mutex
	var files []string
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		matched, err := doublestar.Match(pattern, filepath.ToSlash(rel))
		if err != nil || !matched {
			return nil
		}
		mu.Lock()
		files = append(files, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus directory %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
