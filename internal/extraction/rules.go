package extraction

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hetulpatel/surveillance/internal/logging"
)

// RulesPath is where captured rules for a venue and date live under dataDir.
func RulesPath(dataDir, venue, date string) string {
	return filepath.Join(dataDir, "rules", "venue="+venue, "date="+date, "rules.jsonl")
}

// ReadRules decodes one RulesRecord per line. Blank and undecodable lines
// are skipped; the second return counts the skipped undecodable lines.
func ReadRules(r io.Reader) ([]RulesRecord, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	var (
		records []RulesRecord
		skipped int
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec RulesRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.MarketID == "" {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("extraction: read rules: %w", err)
	}
	return records, skipped, nil
}

// LoadRules reads the rules file for venue and date. A missing file yields
// no records.
func LoadRules(dataDir, venue, date string) ([]RulesRecord, error) {
	path := RulesPath(dataDir, venue, date)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Warnf("[extraction] no rules file at %s", path)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, skipped, err := ReadRules(f)
	if skipped > 0 {
		logging.Warnf("[extraction] skipped %d malformed lines in %s", skipped, path)
	}
	return records, err
}
