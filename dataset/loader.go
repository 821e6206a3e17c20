// Package dataset loads accelerometer CSV recordings and turns them into
// fixed-shape training windows with string labels.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Recording is one CSV file: its label and the (samples x 3) series.
type Recording struct {
	Path    string
	Label   string
	Samples [][NumAxes]float32
}

// sampleRow mirrors the CSV schema. The timestamp column is present in
// every recording but never used for training.
type sampleRow struct {
	Timestamp string  `csv:"Timestamp"`
	X         float32 `csv:"X"`
	Y         float32 `csv:"Y"`
	Z         float32 `csv:"Z"`
}

func init() {
	// A recording missing any of the schema columns is malformed, not empty.
	gocsv.FailIfUnmatchedStructTags = true
}

type cacheEntry struct {
	modTime time.Time
	size    int64
	rec     *Recording
}

// Loader reads CSV recordings, keeping an LRU cache of parsed files so that
// watch-mode retrains do not reparse unchanged recordings.
type Loader struct {
	cache *lru.Cache[string, cacheEntry]
}

const loaderCacheSize = 256

// NewLoader builds a loader with its parse cache.
func NewLoader() (*Loader, error) {
	cache, err := lru.New[string, cacheEntry](loaderCacheSize)
	if err != nil {
		return nil, err
	}
	return &Loader{cache: cache}, nil
}

// LoadDir reads every *.csv file in dir, in sorted path order. It fails on
// the first malformed file and on directories with no CSV files at all.
func (l *Loader) LoadDir(dir string) ([]Recording, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CSV files in %s", dir)
	}
	sort.Strings(paths)

	recs := make([]Recording, 0, len(paths))
	for _, path := range paths {
		rec, err := l.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}

// LoadFile reads a single recording, consulting the cache first. Cache
// entries are keyed by path and invalidated on mtime or size change.
func (l *Loader) LoadFile(path string) (*Recording, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if entry, ok := l.cache.Get(path); ok {
		if entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
			return entry.rec, nil
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// Recordings exported on Windows often carry a UTF-8 BOM or arrive as
	// UTF-16; BOMOverride normalizes all of those to plain UTF-8.
	reader := transform.NewReader(file, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	var rows []sampleRow
	if err := gocsv.Unmarshal(reader, &rows); err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}

	samples := make([][NumAxes]float32, len(rows))
	for i, row := range rows {
		samples[i] = [NumAxes]float32{row.X, row.Y, row.Z}
	}

	rec := &Recording{
		Path:    path,
		Label:   LabelFromFilename(path),
		Samples: samples,
	}
	l.cache.Add(path, cacheEntry{modTime: info.ModTime(), size: info.Size(), rec: rec})
	return rec, nil
}

// LabelFromFilename derives the class label from a recording filename:
// everything after the first underscore of the stem, or the whole stem when
// there is no underscore. "Andres_sitting.csv" -> "sitting".
func LabelFromFilename(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.Index(stem, "_"); i >= 0 {
		return stem[i+1:]
	}
	return stem
}
