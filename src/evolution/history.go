package evolution

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// HistoryLog persists one JSON file per applied rule under an append-only
// directory, so the evolution trail survives restarts and can be audited with
// standard tools. Files are never rewritten.
type HistoryLog struct {
	l   sync.Mutex
	dir string
	seq int
}

// NewHistoryLog creates a HistoryLog rooted at dir, creating the directory if
// needed. The sequence counter resumes from the files already present.
func NewHistoryLog(dir string) (*HistoryLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	log := &HistoryLog{
		dir: dir,
	}

	files, err := log.files()
	if err != nil {
		return nil, err
	}
	log.seq = len(files)

	return log, nil
}

// Append writes a record as a new history file. It fails without side effects
// when the file cannot be written.
func (h *HistoryLog) Append(record *RuleRecord) error {
	h.l.Lock()
	defer h.l.Unlock()

	raw, err := record.Marshal()
	if err != nil {
		return err
	}

	name := fmt.Sprintf("rule_%06d_%s.json", h.seq, record.ID)
	path := filepath.Join(h.dir, name)

	if err := ioutil.WriteFile(path, raw, 0644); err != nil {
		return err
	}

	h.seq++

	return nil
}

// Records reads every history file back, in append order.
func (h *HistoryLog) Records() ([]*RuleRecord, error) {
	h.l.Lock()
	defer h.l.Unlock()

	files, err := h.files()
	if err != nil {
		return nil, err
	}

	records := []*RuleRecord{}
	for _, file := range files {
		raw, err := ioutil.ReadFile(filepath.Join(h.dir, file))
		if err != nil {
			return nil, err
		}

		record := new(RuleRecord)
		if err := record.Unmarshal(raw); err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

// Path returns the history directory.
func (h *HistoryLog) Path() string {
	return h.dir
}

// files lists history files sorted by name; the zero-padded sequence prefix
// makes lexical order equal append order.
func (h *HistoryLog) files() ([]string, error) {
	entries, err := ioutil.ReadDir(h.dir)
	if err != nil {
		return nil, err
	}

	files := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "rule_") && strings.HasSuffix(name, ".json") {
			files = append(files, name)
		}
	}

	sort.Strings(files)

	return files, nil
}
