package app

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tabular-anonymizer/internal/engine"
	"tabular-anonymizer/internal/models"
)

// logMeta is the _meta block of the decision-log JSON.
type logMeta struct {
	Mode       string `json:"mode"`
	AllowDx    bool   `json:"allow_dx"`
	CreatedAt  string `json:"created_at"`
	SourceFile string `json:"source_file"`
	OutputFile string `json:"output_file"`
}

type logPayload struct {
	Meta    logMeta                    `json:"_meta"`
	LogInfo map[string]models.LogEntry `json:"log_info"`
}

// buildOutputPath derives <stem>_anonymized<ext> next to the input, or in
// outputDir when one is configured.
func buildOutputPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	outName := stem + "_anonymized" + ext
	if strings.TrimSpace(outputDir) == "" {
		return filepath.Join(filepath.Dir(inputPath), outName)
	}
	return filepath.Join(outputDir, outName)
}

func buildLogPath(outPath string) string {
	ext := filepath.Ext(outPath)
	return strings.TrimSuffix(outPath, ext) + "_log.json"
}

func buildMetricsPath(outPath string) string {
	ext := filepath.Ext(outPath)
	return strings.TrimSuffix(outPath, ext) + "_metrics.csv"
}

func buildPrivacyPath(outPath string) string {
	ext := filepath.Ext(outPath)
	return strings.TrimSuffix(outPath, ext) + "_privacy.csv"
}

func buildReportPath(dir, mode string, now time.Time) string {
	name := fmt.Sprintf("anonymization_report_%s_%s.csv", mode, now.Format("20060102_150405"))
	return filepath.Join(dir, name)
}

// writeLogJSON persists the per-file decision log with its _meta block.
func writeLogJSON(path string, meta logMeta, logInfo map[string]models.LogEntry) error {
	payload := logPayload{Meta: meta, LogInfo: logInfo}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal decision log: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write decision log: %w", err)
	}
	return nil
}

// writeMetricsCSV writes the one-row validation metrics artifact.
func writeMetricsCSV(path string, res *engine.Result, totalColumns, totalCells int) error {
	header := []string{
		"total_columns", "total_cells", "fail_messages", "warn_messages",
		"policy_consistency", "pattern_residual", "high_risk_handling",
		"duration_sec",
	}
	row := []string{
		strconv.Itoa(totalColumns),
		strconv.Itoa(totalCells),
		strconv.Itoa(len(res.Report.Fail)),
		strconv.Itoa(len(res.Report.Warn)),
		formatRatio(res.Metrics.PolicyConsistency),
		formatRatio(res.Metrics.PatternResidual),
		formatRatio(res.Metrics.HighRiskHandling),
		fmt.Sprintf("%.2f", res.Run.Duration.Seconds()),
	}
	return writeCSVRows(path, [][]string{header, row})
}

// writePrivacyCSV writes the risk metrics artifact, one row per metric.
func writePrivacyCSV(path string, p *models.PrivacyMetrics) error {
	rows := [][]string{{"metric", "column", "value"}}

	rows = append(rows, []string{"qi_columns", "", strings.Join(p.QIColumns, ";")})
	if p.K != nil {
		rows = append(rows, []string{"k", "", strconv.Itoa(*p.K)})
	} else {
		rows = append(rows, []string{"k", "", ""})
	}
	rows = append(rows,
		[]string{"k_lt2_ratio", "", formatRatio(p.KLt2Ratio)},
		[]string{"k_lt5_ratio", "", formatRatio(p.KLt5Ratio)},
	)

	for _, sa := range p.PerSA {
		l, tv := "", ""
		if sa.L != nil {
			l = strconv.Itoa(*sa.L)
		}
		if sa.T != nil {
			tv = formatRatio(*sa.T)
		}
		rows = append(rows,
			[]string{"l_diversity", sa.Column, l},
			[]string{"t_closeness", sa.Column, tv},
		)
	}
	if p.Note != "" {
		rows = append(rows, []string{"note", "", p.Note})
	}
	return writeCSVRows(path, rows)
}

var reportHeader = []string{
	"file", "result",
	"policy_consistency_pct", "pattern_residual_pct", "high_risk_handling_pct",
	"pass_pct", "warn_pct", "fail_pct",
	"recommended_review", "mandatory_review",
	"k_lt2_pct", "k_lt5_pct",
	"duration_sec",
}

// appendReportRow appends one file's judgment to the cumulative batch
// report, writing the header when the file is new.
func appendReportRow(path, file string, res *engine.Result) error {
	j := res.Judgment
	row := []string{
		file,
		string(j.Label),
		formatPct(j.PolicyConsistency),
		formatPct(j.PatternResidual),
		formatPct(j.HighRiskHandling),
		formatPct(j.PassRatio),
		formatPct(j.WarnRatio),
		formatPct(j.FailRatio),
		strconv.FormatBool(j.RecommendedReview),
		strconv.FormatBool(j.MandatoryReview),
		formatPct(res.Privacy.KLt2Ratio),
		formatPct(res.Privacy.KLt5Ratio),
		fmt.Sprintf("%.2f", res.Run.Duration.Seconds()),
	}

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open report %s: %w", path, err)
	}
	defer f.Close()

	if isNew {
		if _, err := f.WriteString(utf8BOM); err != nil {
			return err
		}
	}

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(reportHeader); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func writeCSVRows(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 2, 64)
}
