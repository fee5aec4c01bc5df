// Package labelmap loads the ordered list of action labels used for annotation.
package labelmap

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/apperr"
)

var ErrLabelMapNotFound = fmt.Errorf("label map not found: %w", apperr.ErrNotFound)

// LabelMap maps label names to the zero-based line they were read from.
// It is immutable after Load.
type LabelMap struct {
	path    string
	names   []string
	indices []int
	byName  map[string]int
	byIndex map[int]string
}

// Load reads a newline-delimited label file. Blank lines are skipped but
// still consume an index, so a label's index is always its line number.
// A name that appears twice keeps the later index.
func Load(path string) (*LabelMap, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLabelMapNotFound, path)
		}
		return nil, fmt.Errorf("failed to open label map: %w", err)
	}
	defer f.Close()

	m := &LabelMap{
		path:    path,
		byName:  make(map[string]int),
		byIndex: make(map[int]string),
	}

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			if prev, ok := m.byName[name]; ok {
				delete(m.byIndex, prev)
			}
			m.names = append(m.names, name)
			m.indices = append(m.indices, line)
			m.byName[name] = line
			m.byIndex[line] = name
		}
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read label map: %w", err)
	}
	return m, nil
}

// FromNames builds a map where each name's index is its position.
func FromNames(names ...string) *LabelMap {
	m := &LabelMap{
		byName:  make(map[string]int),
		byIndex: make(map[int]string),
	}
	for i, name := range names {
		if prev, ok := m.byName[name]; ok {
			delete(m.byIndex, prev)
		}
		m.names = append(m.names, name)
		m.indices = append(m.indices, i)
		m.byName[name] = i
		m.byIndex[i] = name
	}
	return m
}

// Path returns the file the map was loaded from, empty for FromNames.
func (m *LabelMap) Path() string {
	return m.path
}

// Index returns the index for name.
func (m *LabelMap) Index(name string) (int, bool) {
	idx, ok := m.byName[name]
	return idx, ok
}

// Name returns the label whose index equals idx.
func (m *LabelMap) Name(idx int) (string, bool) {
	name, ok := m.byIndex[idx]
	return name, ok
}

// Names returns the distinct label names in index order.
func (m *LabelMap) Names() []string {
	out := make([]string, 0, len(m.byIndex))
	for i, name := range m.names {
		if m.byName[name] == m.indices[i] {
			out = append(out, name)
		}
	}
	return out
}

func (m *LabelMap) Len() int {
	return len(m.byName)
}
