package search

import (
	"bytes"
	"strconv"
	"strings"
)

// DefaultLimit is the number of records returned when the caller does not
// ask for a positive limit.
const DefaultLimit = 20

// Record is one matching line of a file.
type Record struct {
	Path string `json:"path"`
	Line int    `json:"line"` // 1-based
	Text string `json:"text"`
}

// Request is the input to one pipeline run.
type Request struct {
	Query   string
	Limit   int
	RootDir string
}

// limit returns the effective record limit.
func (r Request) limit() int {
	if r.Limit <= 0 {
		return DefaultLimit
	}
	return r.Limit
}

// ParseLine parses a path:line:column:text line. The text keeps any
// colons it contains. ok is false when the line does not fit the grammar.
func ParseLine(line string) (rec Record, ok bool) {
	// A Windows drive letter is part of the path, not a separator.
	drive := ""
	if len(line) > 2 && isASCIILetter(line[0]) && line[1] == ':' && (line[2] == '\\' || line[2] == '/') {
		drive, line = line[:2], line[2:]
	}

	fields := strings.SplitN(line, ":", 4)
	if len(fields) < 4 || fields[0] == "" {
		return Record{}, false
	}
	lineNo, ok := parseCount(fields[1])
	if !ok {
		return Record{}, false
	}
	if _, ok := parseCount(fields[2]); !ok {
		return Record{}, false
	}
	return Record{Path: drive + fields[0], Line: lineNo, Text: fields[3]}, true
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// parseCount accepts non-empty runs of ASCII digits only.
func parseCount(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// ParseOutput splits the limit stage's output into lines, keeps the first
// limit of them and parses each. Malformed lines are dropped. If the output
// is non-empty but no line parses, the output is not ours to interpret and
// ErrUnparsableOutput is returned.
func ParseOutput(data []byte, limit int) ([]Record, error) {
	records := []Record{}
	if len(bytes.TrimSpace(data)) == 0 {
		return records, nil
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	for _, line := range lines {
		if rec, ok := ParseLine(strings.TrimSuffix(line, "\r")); ok {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, ErrUnparsableOutput
	}
	return records, nil
}
