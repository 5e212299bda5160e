package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	payloadschema "horse.fit/storyline/schema"
)

type validateResult struct {
	Files   int
	Scanned int
	Valid   int
	Invalid int
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	dir := fs.String("dir", "testdata/news_items", "Directory containing .json news item files")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	files, err := collectJSONFiles(strings.TrimSpace(*dir), *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation setup failed: %v\n", err)
		return 1
	}

	var result validateResult
	for _, path := range files {
		result.add(path)
	}

	fmt.Printf(
		"validate files=%d scanned=%d valid=%d invalid=%d dir=%s recursive=%t\n",
		result.Files,
		result.Scanned,
		result.Valid,
		result.Invalid,
		strings.TrimSpace(*dir),
		*recursive,
	)

	if result.Scanned == 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: no news items found under %s\n", strings.TrimSpace(*dir))
		return 1
	}
	if result.Invalid > 0 {
		return 1
	}
	return 0
}

// add validates every item in one file and prints the failures.
func (r *validateResult) add(path string) {
	r.Files++

	payloads, err := readItemFile(path)
	if err != nil {
		r.Scanned++
		r.Invalid++
		fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
		return
	}
	for i, payload := range payloads {
		r.Scanned++
		if _, err := payloadschema.ValidateNewsItemPayload(payload); err != nil {
			r.Invalid++
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", itemLabel(path, i, len(payloads)), err)
			continue
		}
		r.Valid++
	}
}

// readItemFile loads one file holding either a single item object or an array of them.
func readItemFile(path string) ([]json.RawMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	return splitItemPayloads(raw)
}

func splitItemPayloads(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("file is empty")
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("malformed JSON")
	}
	if trimmed[0] != '[' {
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("decode item array: %w", err)
	}
	return items, nil
}

func itemLabel(path string, index, total int) string {
	if total <= 1 {
		return path
	}
	return fmt.Sprintf("%s[%d]", path, index)
}

func isItemFile(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.EqualFold(filepath.Ext(name), ".json")
}

// collectJSONFiles lists item files under root in sorted order. Hidden files
// and hidden subdirectories are skipped.
func collectJSONFiles(root string, recursive bool) ([]string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("directory path is empty")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isItemFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", root, err)
	}

	slices.Sort(files)
	return files, nil
}
