package pool

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// loadWorkers bounds concurrent decodes during a directory load.
const loadWorkers = 4

// LoadDir walks dir and pools every decodable image found. Unreadable
// or undecodable files count as skipped, not as failures; duplicates
// collapse through the content hash like any other Add. An error is
// returned only when the walk itself fails or no file could be pooled.
func LoadDir(dir string) (*Pool, int, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan tiles: %w", err)
	}

	p := New()
	var skipped atomic.Int64
	sem := make(chan struct{}, loadWorkers)
	var wg sync.WaitGroup
	for _, path := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()
			data, err := os.ReadFile(path)
			if err != nil {
				skipped.Add(1)
				return
			}
			if _, err := p.Add(data); err != nil {
				skipped.Add(1)
			}
		}(path)
	}
	wg.Wait()

	if p.Count() == 0 {
		return nil, int(skipped.Load()), fmt.Errorf("no usable tile images in %s", dir)
	}
	return p, int(skipped.Load()), nil
}
