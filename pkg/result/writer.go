package result

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"keychannel/pkg/config"
	"keychannel/pkg/log"
	"keychannel/pkg/metrics"
)

// Writer is responsible for creating and writing result files.
type Writer struct {
	resultsPath string
	system      config.SystemType
	hwName      string
	mode        config.Mode
	now         func() time.Time
}

// NewWriter creates a new writer for result files.
func NewWriter(resultsPath string, system config.SystemType, hwName string, mode config.Mode) *Writer {
	return &Writer{
		resultsPath: resultsPath,
		system:      system,
		hwName:      hwName,
		mode:        mode,
		now:         time.Now,
	}
}

// WriteAllResults writes the raw samples and per-component statistics of rec
// and returns the paths of both files.
func (w *Writer) WriteAllResults(rec *metrics.Recorder) (rawPath, statsPath string, err error) {
	if err := os.MkdirAll(w.resultsPath, 0755); err != nil {
		return "", "", fmt.Errorf("could not create results directory %s: %w", w.resultsPath, err)
	}

	all := rec.AllSeries()
	if rawPath, err = w.writeRawResults(all); err != nil {
		return "", "", fmt.Errorf("failed to write raw results: %w", err)
	}
	if statsPath, err = w.writeStatResults(all); err != nil {
		return "", "", fmt.Errorf("failed to write statistical results: %w", err)
	}
	return rawPath, statsPath, nil
}

// generateFilename creates a standardized filename for a result file.
// Example: RAW_SMac_CDisk_Mscan_T2025-01-02-15-04-05.csv
func (w *Writer) generateFilename(fileType string) string {
	timestamp := w.now().Format("2006-01-02-15-04-05")
	base := fmt.Sprintf("%s_S%s_C%s_M%s_T%s.csv", fileType, w.system, w.hwName, w.mode, timestamp)
	return filepath.Join(w.resultsPath, base)
}

// writeRawResults saves every wall-clock sample of every component.
func (w *Writer) writeRawResults(all []metrics.Series) (string, error) {
	filePath := w.generateFilename("RAW")
	return filePath, writeCSV(filePath, func(csvWriter *csv.Writer) error {
		header := []string{"Component", "MetricType", "ExecutionTime_us"}
		if err := csvWriter.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header to %s: %w", filePath, err)
		}
		for _, s := range all {
			for _, t := range s.Samples {
				row := []string{s.Component, s.Type.String(), strconv.FormatInt(t.Microseconds(), 10)}
				if err := csvWriter.Write(row); err != nil {
					return fmt.Errorf("failed to write row to %s: %w", filePath, err)
				}
			}
		}
		log.Info("Raw results written to %s", filePath)
		return nil
	})
}

// writeStatResults calculates and saves summary statistics for each component.
func (w *Writer) writeStatResults(all []metrics.Series) (string, error) {
	filePath := w.generateFilename("STATS")
	return filePath, writeCSV(filePath, func(csvWriter *csv.Writer) error {
		header := []string{"Component", "MetricType", "Count", "Failures", "Mean_us", "Median_us", "Min_us", "Max_us", "P5_us", "P95_us"}
		if err := csvWriter.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header to %s: %w", filePath, err)
		}
		for _, s := range all {
			if err := writeStatsRow(csvWriter, s); err != nil {
				return err
			}
		}
		log.Info("Statistical results written to %s", filePath)
		return nil
	})
}

func writeCSV(filePath string, fill func(*csv.Writer) error) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("could not create results file %s: %w", filePath, err)
	}
	defer file.Close()

	csvWriter := csv.NewWriter(file)
	if err := fill(csvWriter); err != nil {
		return err
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// writeStatsRow calculates statistics for one series and writes them to a CSV row.
func writeStatsRow(writer *csv.Writer, s metrics.Series) error {
	if len(s.Samples) == 0 {
		return nil
	}

	floats := convertDurationsToFloats(s.Samples)
	sort.Float64s(floats)

	mean := stat.Mean(floats, nil)
	median := stat.Quantile(0.5, stat.Empirical, floats, nil)
	p5 := stat.Quantile(0.05, stat.Empirical, floats, nil)
	p95 := stat.Quantile(0.95, stat.Empirical, floats, nil)

	row := []string{
		s.Component,
		s.Type.String(),
		strconv.Itoa(len(s.Samples)),
		strconv.Itoa(s.Failures),
		strconv.FormatFloat(mean, 'f', -1, 64),
		strconv.FormatFloat(median, 'f', -1, 64),
		strconv.FormatFloat(floats[0], 'f', -1, 64),
		strconv.FormatFloat(floats[len(floats)-1], 'f', -1, 64),
		strconv.FormatFloat(p5, 'f', -1, 64),
		strconv.FormatFloat(p95, 'f', -1, 64),
	}

	if err := writer.Write(row); err != nil {
		return fmt.Errorf("failed to write stats row for %s: %w", s.Component, err)
	}
	return nil
}

// convertDurationsToFloats converts a slice of time.Duration to a slice of float64 (in microseconds).
func convertDurationsToFloats(d []time.Duration) []float64 {
	floats := make([]float64, len(d))
	for i, v := range d {
		floats[i] = float64(v.Microseconds())
	}
	return floats
}
