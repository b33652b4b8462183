package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tabular-anonymizer/internal/config"
	"tabular-anonymizer/internal/engine"
	"tabular-anonymizer/internal/models"
	"tabular-anonymizer/internal/monitoring"
	"tabular-anonymizer/internal/worker"
)

// AnonymizerApp drives batch anonymization: load files, run the pipeline,
// persist artifacts, append the cumulative report.
type AnonymizerApp struct {
	config  *config.Config
	engine  *engine.Engine
	metrics *monitoring.MetricsRegistry
	logger  *zap.SugaredLogger
}

// FileOutcome records what happened to one input file.
type FileOutcome struct {
	Input       string        `json:"input"`
	Output      string        `json:"output,omitempty"`
	LogPath     string        `json:"log_path,omitempty"`
	MetricsPath string        `json:"metrics_path,omitempty"`
	PrivacyPath string        `json:"privacy_path,omitempty"`
	Label       models.Status `json:"label,omitempty"`
	Err         error         `json:"-"`
}

// BatchSummary is the result of one batch run.
type BatchSummary struct {
	Outcomes   []FileOutcome `json:"outcomes"`
	ReportPath string        `json:"report_path"`
	Duration   time.Duration `json:"duration"`
}

// New creates the batch application. Engine construction fails fast on a
// missing salt, before any input is read.
func New(cfg *config.Config) (*AnonymizerApp, error) {
	eng, err := engine.New(cfg.GetEngineConfig())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if err := cfg.CreateDirectories(); err != nil {
		logger.Warnw("failed to create directories", "error", err)
	}

	logger.Infow("anonymizer initialized",
		"level", cfg.Anonymization.Level,
		"diagnosis_allowed", cfg.Anonymization.DiagnosisAllowed,
		"workers", cfg.Batch.Workers,
	)

	return &AnonymizerApp{
		config:  cfg,
		engine:  eng,
		metrics: monitoring.NewMetricsRegistry(),
		logger:  logger,
	}, nil
}

// newLogger builds the zap logger from the logging section.
func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if !cfg.IsProduction() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	switch cfg.Logging.Output {
	case "file":
		zcfg.OutputPaths = []string{cfg.GetLogFilePath()}
	case "both":
		zcfg.OutputPaths = []string{"stdout", cfg.GetLogFilePath()}
	default:
		zcfg.OutputPaths = []string{"stdout"}
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// GetEngine returns the anonymization engine.
func (a *AnonymizerApp) GetEngine() *engine.Engine {
	return a.engine
}

// GetMetrics returns the metrics registry.
func (a *AnonymizerApp) GetMetrics() *monitoring.MetricsRegistry {
	return a.metrics
}

// RunBatch anonymizes the given files concurrently and writes every
// artifact: anonymized CSV, decision log, metrics CSV, privacy CSV and one
// cumulative report row per file. Load failures skip the file; they do not
// abort the batch.
func (a *AnonymizerApp) RunBatch(paths []string) (*BatchSummary, error) {
	start := time.Now()

	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files")
	}

	var datasets []worker.NamedDataset
	var skipped []FileOutcome
	for _, path := range paths {
		ds, err := LoadCSV(path)
		if err != nil {
			a.logger.Warnw("skipping file", "file", path, "error", err)
			skipped = append(skipped, FileOutcome{Input: path, Err: err})
			continue
		}
		datasets = append(datasets, worker.NamedDataset{Name: path, Dataset: ds})
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("no loadable input files (all %d skipped)", len(paths))
	}

	bp := worker.NewBatchProcessor(a.config.Batch.Workers, len(datasets)+1, a.engine)
	bp.Start()
	defer bp.Stop()

	results, err := bp.ProcessDatasets(datasets)
	if err != nil {
		return nil, fmt.Errorf("batch failed: %w", err)
	}

	reportPath := buildReportPath(a.reportDir(datasets[0].Name), a.config.Anonymization.Level, start)

	summary := &BatchSummary{ReportPath: reportPath}
	summary.Outcomes = append(summary.Outcomes, skipped...)

	for i, res := range results {
		outcome := a.persistResult(datasets[i], res, reportPath)
		a.recordMetrics(res.Result, outcome.Err)
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	summary.Duration = time.Since(start)
	a.logger.Infow("batch completed",
		"files", len(paths),
		"processed", len(results),
		"skipped", len(skipped),
		"report", reportPath,
		"duration", summary.Duration,
	)
	return summary, nil
}

// persistResult writes every artifact for one processed file.
func (a *AnonymizerApp) persistResult(ds worker.NamedDataset, res worker.BatchResult, reportPath string) FileOutcome {
	outcome := FileOutcome{Input: ds.Name, Err: res.Err}
	if res.Err != nil || res.Result == nil {
		a.logger.Errorw("anonymization failed", "file", ds.Name, "error", res.Err)
		return outcome
	}

	r := res.Result
	outPath := buildOutputPath(ds.Name, a.config.App.OutputDir)
	outcome.Output = outPath
	outcome.Label = r.Judgment.Label

	for _, te := range r.Run.TransformErrors {
		a.logger.Warnw("transform failed, column blanked",
			"file", ds.Name, "column", te.Column,
			"semantic", te.Semantic, "action", te.Action, "error", te.Err,
		)
	}

	if err := SaveCSV(outPath, r.Run.Anonymized); err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.LogPath = buildLogPath(outPath)
	meta := logMeta{
		Mode:       a.config.Anonymization.Level,
		AllowDx:    a.config.Anonymization.DiagnosisAllowed,
		CreatedAt:  time.Now().Format("2006-01-02T15:04:05"),
		SourceFile: filepath.Base(ds.Name),
		OutputFile: filepath.Base(outPath),
	}
	if err := writeLogJSON(outcome.LogPath, meta, r.Run.Log); err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.MetricsPath = buildMetricsPath(outPath)
	totalCells := ds.Dataset.NumRows() * ds.Dataset.NumColumns()
	if err := writeMetricsCSV(outcome.MetricsPath, r, ds.Dataset.NumColumns(), totalCells); err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.PrivacyPath = buildPrivacyPath(outPath)
	if err := writePrivacyCSV(outcome.PrivacyPath, r.Privacy); err != nil {
		outcome.Err = err
		return outcome
	}

	if err := appendReportRow(reportPath, filepath.Base(ds.Name), r); err != nil {
		outcome.Err = err
		return outcome
	}

	a.logger.Infow("file anonymized",
		"file", ds.Name, "output", outPath,
		"result", r.Judgment.Label,
		"pass", len(r.Report.Pass), "warn", len(r.Report.Warn), "fail", len(r.Report.Fail),
	)
	return outcome
}

func (a *AnonymizerApp) recordMetrics(res *engine.Result, err error) {
	if err != nil || res == nil {
		a.metrics.Counter(monitoring.MetricTransformFailures).Inc()
		return
	}
	a.metrics.Counter(monitoring.MetricDatasetsProcessed).Inc()
	a.metrics.Counter(monitoring.MetricColumnsProcessed).Add(int64(res.Run.Anonymized.NumColumns()))
	a.metrics.Counter(monitoring.MetricCellsProcessed).Add(int64(res.Run.Anonymized.NumColumns() * res.Run.Anonymized.NumRows()))
	a.metrics.Counter(monitoring.MetricTransformFailures).Add(int64(len(res.Run.TransformErrors)))
	a.metrics.Counter(monitoring.MetricValidationFails).Add(int64(len(res.Report.Fail)))
	a.metrics.Counter(monitoring.MetricValidationWarns).Add(int64(len(res.Report.Warn)))
	a.metrics.Gauge(monitoring.MetricPassRate).Set(res.Judgment.PassRatio)
}

func (a *AnonymizerApp) reportDir(firstInput string) string {
	if dir := a.config.Batch.ReportDir; dir != "" {
		return dir
	}
	return filepath.Dir(firstInput)
}

// PurgeSources deletes the source files of outcomes whose final label is
// PASS. It is never called by the batch itself: destroying inputs is an
// explicit, separate step the operator must request.
func (a *AnonymizerApp) PurgeSources(outcomes []FileOutcome) ([]string, error) {
	var deleted []string
	for _, o := range outcomes {
		if o.Err != nil || o.Label != models.StatusPass {
			continue
		}
		if err := os.Remove(o.Input); err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", o.Input, err)
		}
		a.logger.Infow("source deleted", "file", o.Input)
		deleted = append(deleted, o.Input)
	}
	return deleted, nil
}

// Close flushes the logger.
func (a *AnonymizerApp) Close() {
	_ = a.logger.Sync()
}
