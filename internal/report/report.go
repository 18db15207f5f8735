package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"example.com/canwatch/internal/detect"
)

// SaveReportJSON writes the analysis report as an indented JSON document.
func SaveReportJSON(rep detect.Report, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadReportJSON reads a report previously written by SaveReportJSON.
func LoadReportJSON(path string) (detect.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return detect.Report{}, err
	}
	defer f.Close()
	var rep detect.Report
	if err := json.NewDecoder(f).Decode(&rep); err != nil {
		return detect.Report{}, fmt.Errorf("decode report %s: %w", filepath.Base(path), err)
	}
	return rep, nil
}
