package fleet

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
)

// Summary aggregates one validation pass.
type Summary struct {
	Total            int `json:"total"`
	BackupsSucceeded int `json:"backups_succeeded"`
	Matched          int `json:"matched"`
	Uploaded         int `json:"uploaded"`
	Errors           int `json:"errors"`
}

// Summarize computes aggregate counts over a pass's results.
func Summarize(results []*Result) Summary {
	s := Summary{Total: len(results)}

	for _, r := range results {
		if r.BackupSuccessful {
			s.BackupsSucceeded++
		}
		if r.FilesMatch {
			s.Matched++
		}
		if r.UploadSuccessful {
			s.Uploaded++
		}
		if r.ErrorMessage != "" {
			s.Errors++
		}
	}

	return s
}

// WriteReport writes a human-readable report of a validation pass to w.
func WriteReport(w io.Writer, results []*Result) error {
	s := Summarize(results)

	fmt.Fprintf(w, "Fleet validation: %d device(s), %d backup(s), %d matched, %d uploaded, %d error(s)\n\n",
		s.Total, s.BackupsSucceeded, s.Matched, s.Uploaded, s.Errors)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tIP\tBACKUP\tMATCH\tUPLOAD\tSTATUS")

	for _, r := range results {
		status := "ok"
		if r.ErrorMessage != "" {
			status = r.ErrorMessage
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Device.Name,
			r.Device.IP,
			mark(r.BackupSuccessful),
			mark(r.FilesMatch),
			mark(r.UploadSuccessful),
			status)
	}

	return tw.Flush()
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}

	return "no"
}

// WriteJSON writes the results as a single JSON array.
func WriteJSON(w io.Writer, results []*Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("fleet: encode results: %w", err)
	}

	return nil
}

// csvHeader is the column layout of the CSV export, one row per device.
var csvHeader = []string{
	"device_name", "model", "ip", "cfg_file", "backup_path",
	"backup_successful", "backup_size", "backup_hash",
	"local_file_exists", "local_file_hash", "files_match",
	"upload_successful", "error_message", "timestamp",
}

// WriteCSV writes the results as one CSV table with one row per device.
func WriteCSV(w io.Writer, results []*Result) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("fleet: write csv header: %w", err)
	}

	for _, r := range results {
		row := []string{
			r.Device.Name,
			r.Device.Model,
			r.Device.IP,
			r.Device.ConfigFile,
			r.Device.BackupPath,
			strconv.FormatBool(r.BackupSuccessful),
			strconv.Itoa(r.BackupSize),
			r.BackupHash,
			strconv.FormatBool(r.LocalFileExists),
			r.LocalFileHash,
			strconv.FormatBool(r.FilesMatch),
			strconv.FormatBool(r.UploadSuccessful),
			r.ErrorMessage,
			r.Timestamp,
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("fleet: write csv row for %s: %w", r.Device.Name, err)
		}
	}

	cw.Flush()

	return cw.Error()
}
