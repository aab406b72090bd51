package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"allinattendees/pkg/swapcard"
)

var enrichedCSVHeader = append(append([]string{}, csvHeader...),
	"email", "websiteUrl", "city", "country", "industry")

// WriteEnriched writes the detail-enriched record set as JSON and CSV.
func (w *Writer) WriteEnriched(name string, records []swapcard.EnrichedAttendee) (jsonPath, csvPath string, err error) {
	stamp := w.now().Format("20060102_150405")

	jsonPath = filepath.Join(w.baseDir, fmt.Sprintf("%s_%s.json", name, stamp))
	if err := w.writeEnrichedJSON(jsonPath, records); err != nil {
		return "", "", err
	}

	csvPath = filepath.Join(w.baseDir, "csv", fmt.Sprintf("%s_%s.csv", name, stamp))
	if err := w.writeEnrichedCSV(csvPath, records); err != nil {
		return "", "", err
	}

	if w.writeLatest {
		if err := w.writeEnrichedJSON(filepath.Join(w.baseDir, name+"_latest.json"), records); err != nil {
			return "", "", err
		}
		if err := w.writeEnrichedCSV(filepath.Join(w.baseDir, "csv", name+"_latest.csv"), records); err != nil {
			return "", "", err
		}
	}

	return jsonPath, csvPath, nil
}

func (w *Writer) writeEnrichedJSON(path string, records []swapcard.EnrichedAttendee) error {
	if records == nil {
		records = []swapcard.EnrichedAttendee{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return atomicWrite(path, data)
}

func (w *Writer) writeEnrichedCSV(path string, records []swapcard.EnrichedAttendee) error {
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	writer := csv.NewWriter(file)
	writeErr := writer.Write(enrichedCSVHeader)
	for _, r := range records {
		if writeErr != nil {
			break
		}
		writeErr = writer.Write([]string{
			r.ID, r.FirstName, r.LastName, r.JobTitle,
			r.Organization, r.PhotoURL, r.Biography, r.UserID,
			r.Email, r.WebsiteURL, r.City, r.Country, r.Industry,
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

// ReadAttendees loads a previously written JSON artifact, used by the
// enrich and sync commands to pick up the latest scrape output.
func ReadAttendees(path string) ([]swapcard.Attendee, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attendees file: %w", err)
	}
	var records []swapcard.Attendee
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode attendees file: %w", err)
	}
	return records, nil
}
