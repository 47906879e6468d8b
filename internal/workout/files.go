package workout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileError ties a load or compile failure to the workout file it came from.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("workout file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// LoadFile reads and compiles one workout definition. Structural problems
// (unreadable file, bad JSON, unknown step types) and step parse errors both
// surface as a *FileError wrapping the cause.
func LoadFile(path string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	var spec WorkoutSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	plan, err := Compile(&spec)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return plan, nil
}

// LoadDir compiles every .json file in dir, sorted by name. A bad file is
// reported in the second return value and skipped; it never aborts the rest
// of the directory.
func LoadDir(dir string) ([]*Plan, []*FileError, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read workouts directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var plans []*Plan
	var fileErrs []*FileError
	for _, name := range names {
		path := filepath.Join(dir, name)
		plan, err := LoadFile(path)
		if err != nil {
			var fe *FileError
			if !errors.As(err, &fe) {
				fe = &FileError{Path: path, Err: err}
			}
			fileErrs = append(fileErrs, fe)
			continue
		}
		plans = append(plans, plan)
	}
	return plans, fileErrs, nil
}
