package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"allinattendees/pkg/swapcard"
)

// csvHeader is the fixed column order of the flat attendee table.
var csvHeader = []string{"id", "firstName", "lastName", "jobTitle", "organization", "photoUrl", "biography", "userId"}

// Writer persists run artifacts under a base directory:
// data/<name>_<timestamp>.json, data/csv/<name>_<timestamp>.csv, and
// optionally a "latest" copy of each for downstream consumers that
// want a stable path.
type Writer struct {
	baseDir     string
	writeLatest bool
	now         func() time.Time
}

// NewWriter creates the output directories and returns a writer.
func NewWriter(baseDir string, writeLatest bool) (*Writer, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, "csv")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return &Writer{
		baseDir:     baseDir,
		writeLatest: writeLatest,
		now:         time.Now,
	}, nil
}

// WriteAttendees writes the record set as a JSON array and a CSV table.
// Returns the paths of the timestamped artifacts.
func (w *Writer) WriteAttendees(name string, records []swapcard.Attendee) (jsonPath, csvPath string, err error) {
	stamp := w.now().Format("20060102_150405")

	jsonPath = filepath.Join(w.baseDir, fmt.Sprintf("%s_%s.json", name, stamp))
	if err := w.writeJSON(jsonPath, records); err != nil {
		return "", "", err
	}

	csvPath = filepath.Join(w.baseDir, "csv", fmt.Sprintf("%s_%s.csv", name, stamp))
	if err := w.writeCSV(csvPath, records); err != nil {
		return "", "", err
	}

	if w.writeLatest {
		if err := w.writeJSON(filepath.Join(w.baseDir, name+"_latest.json"), records); err != nil {
			return "", "", err
		}
		if err := w.writeCSV(filepath.Join(w.baseDir, "csv", name+"_latest.csv"), records); err != nil {
			return "", "", err
		}
	}

	return jsonPath, csvPath, nil
}

// WriteFailedIDs records the ids that failed during enrichment so a
// later run can retry just those.
func (w *Writer) WriteFailedIDs(ids []string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	stamp := w.now().Format("20060102_150405")
	path := filepath.Join(w.baseDir, fmt.Sprintf("failed_ids_%s.json", stamp))

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode failed ids: %w", err)
	}
	if err := atomicWrite(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) writeJSON(path string, records []swapcard.Attendee) error {
	if records == nil {
		records = []swapcard.Attendee{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return atomicWrite(path, data)
}

func (w *Writer) writeCSV(path string, records []swapcard.Attendee) error {
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	writer := csv.NewWriter(file)
	writeErr := writer.Write(csvHeader)
	for _, r := range records {
		if writeErr != nil {
			break
		}
		writeErr = writer.Write([]string{
			r.ID, r.FirstName, r.LastName, r.JobTitle,
			r.Organization, r.PhotoURL, r.Biography, r.UserID,
		})
	}
	writer.Flush()
	if writeErr == nil {
		writeErr = writer.Error()
	}
	closeErr := file.Close()

	if writeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write csv: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close csv file: %w", closeErr)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// atomicWrite writes data via a temporary file and rename so readers
// never observe a partial artifact.
func atomicWrite(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
