// Package adapters implements the compliance collaborators: file-backed
// watchlists and company registry, the PDF profile renderer and the Kafka
// regulator channel.
package adapters

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"bullion/internal/compliance"
)

type watchlistFile struct {
	Lists []struct {
		Name      string   `yaml:"name"`
		FiscalIDs []string `yaml:"fiscal_ids"`
	} `yaml:"lists"`
}

// FileWatchlist screens against lists loaded from a YAML document:
//
//	lists:
//	  - name: UIF terrorism
//	    fiscal_ids: [RSSMRA80A01H501U]
type FileWatchlist struct {
	mu     sync.RWMutex
	listed map[string]string
}

// NewWatchlist builds a watchlist from name -> fiscal ids.
func NewWatchlist(lists map[string][]string) *FileWatchlist {
	w := &FileWatchlist{}
	w.replace(lists)
	return w
}

// LoadWatchlist reads a YAML watchlist. An empty path yields an empty list.
func LoadWatchlist(path string) (*FileWatchlist, error) {
	w := NewWatchlist(nil)
	if path == "" {
		return w, nil
	}
	return w, w.Reload(path)
}

// Reload swaps the lists for the content of path.
func (w *FileWatchlist) Reload(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read watchlist: %w", err)
	}
	var file watchlistFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse watchlist: %w", err)
	}
	lists := make(map[string][]string, len(file.Lists))
	for _, l := range file.Lists {
		lists[l.Name] = append(lists[l.Name], l.FiscalIDs...)
	}
	w.replace(lists)
	return nil
}

func (w *FileWatchlist) replace(lists map[string][]string) {
	listed := make(map[string]string)
	for name, ids := range lists {
		for _, id := range ids {
			listed[normalizeID(id)] = name
		}
	}
	w.mu.Lock()
	w.listed = listed
	w.mu.Unlock()
}

func (w *FileWatchlist) Screen(ctx context.Context, fiscalID string) (compliance.Screening, error) {
	if err := ctx.Err(); err != nil {
		return compliance.Screening{}, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if name, ok := w.listed[normalizeID(fiscalID)]; ok {
		return compliance.Screening{Flagged: true, ListName: name}, nil
	}
	return compliance.Screening{}, nil
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
