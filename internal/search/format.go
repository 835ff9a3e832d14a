package search

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Item is a Record prepared for display in a picker.
type Item struct {
	Label  string `json:"label"`  // Sanitized line text
	Detail string `json:"detail"` // path:line, relative to the search root
	Record Record `json:"record"`
}

// Formatter turns records into display items.
type Formatter struct {
	Root     string // Paths under Root are shown relative to it
	MaxWidth int    // Label width in terminal columns; 0 means unlimited
}

// Format builds the display item for rec.
func (f Formatter) Format(rec Record) Item {
	return Item{
		Label:  truncateMiddle(cleanText(rec.Text), f.MaxWidth),
		Detail: f.relPath(rec.Path) + ":" + strconv.Itoa(rec.Line),
		Record: rec,
	}
}

// FormatAll formats recs in order.
func (f Formatter) FormatAll(recs []Record) []Item {
	items := make([]Item, len(recs))
	for i, rec := range recs {
		items[i] = f.Format(rec)
	}
	return items
}

func (f Formatter) relPath(path string) string {
	if f.Root == "" {
		return path
	}
	rel, err := filepath.Rel(f.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}
