package menuscrape

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/menuscrape/pkg/placeid"
)

// ErrNoTargets is returned for a targets file without any entries.
var ErrNoTargets = errors.New("no targets found")

// LoadTargets reads targets from a CSV (header with naver_id, store_id
// and/or url columns), NDJSON/JSONL or YAML file. Unknown extensions are
// tried as CSV first, then NDJSON.
func LoadTargets(path string) ([]Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return ReadTargetsCSV(f)
	case ".ndjson", ".jsonl":
		return ReadTargetsNDJSON(f)
	case ".yaml", ".yml":
		return ReadTargetsYAML(f)
	default:
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		if targets, err := ReadTargetsCSV(strings.NewReader(string(data))); err == nil && len(targets) > 0 {
			return targets, nil
		}
		return ReadTargetsNDJSON(strings.NewReader(string(data)))
	}
}

// ReadTargetsCSV reads a CSV with a header row.
func ReadTargetsCSV(r io.Reader) ([]Target, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoTargets
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	_, hasID := cols["naver_id"]
	_, hasURL := cols["url"]
	if !hasID && !hasURL {
		return nil, errors.New("csv must contain a 'naver_id' or 'url' header column")
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []Target
	for n, row := range rows[1:] {
		t := Target{NaverID: cell(row, "naver_id"), URL: cell(row, "url")}
		if t.NaverID == "" && t.URL == "" {
			continue
		}
		if v := cell(row, "store_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("csv row %d: invalid store_id %q", n+2, v)
			}
			t.StoreID = id
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, ErrNoTargets
	}
	return out, nil
}

// ReadTargetsNDJSON reads one target per line, either a JSON object or a
// bare place id or URL.
func ReadTargetsNDJSON(r io.Reader) ([]Target, error) {
	var out []Target
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "{") {
			var t Target
			if err := json.Unmarshal([]byte(line), &t); err != nil {
				return nil, fmt.Errorf("read ndjson: %w", err)
			}
			out = append(out, t)
			continue
		}
		out = append(out, targetFromString(line))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoTargets
	}
	return out, nil
}

// ReadTargetsYAML reads a list of targets, or a document with a
// "targets" list.
func ReadTargetsYAML(r io.Reader) ([]Target, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var list []Target
	if err := yaml.Unmarshal(data, &list); err != nil {
		var doc struct {
			Targets []Target `yaml:"targets"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("read yaml: %w", err)
		}
		list = doc.Targets
	}
	if len(list) == 0 {
		return nil, ErrNoTargets
	}
	return list, nil
}

func targetFromString(s string) Target {
	if placeid.IsID(s) {
		return Target{NaverID: s}
	}
	return Target{URL: s}
}
