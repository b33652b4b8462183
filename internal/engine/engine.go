package engine

import (
	"fmt"
	"log"
	"sync"
	"time"

	"tabular-anonymizer/internal/anonymize"
	"tabular-anonymizer/internal/models"
	"tabular-anonymizer/internal/policy"
	"tabular-anonymizer/internal/report"
	"tabular-anonymizer/internal/risk"
	"tabular-anonymizer/internal/semantics"
	"tabular-anonymizer/internal/validate"
)

// Config holds configuration for the anonymization engine.
type Config struct {
	// Anonymization Parameters
	Level            string `yaml:"level"`
	DiagnosisAllowed bool   `yaml:"diagnosis_allowed"`

	// Pseudonymization
	Salt        string `yaml:"salt"`
	TokenLength int    `yaml:"token_length"`
}

// Statistics holds runtime statistics for the engine.
type Statistics struct {
	DatasetsProcessed   int64
	ColumnsProcessed    int64
	CellsProcessed      int64
	TransformFailures   int64
	LastProcessingTime  time.Duration
	TotalProcessingTime time.Duration
}

// ProgressFunc is invoked after each column finishes, with the column name
// and its 1-based position out of the dataset's column count.
type ProgressFunc func(column string, done, total int)

// Result bundles everything one full pipeline run produces for a dataset.
type Result struct {
	Run      *models.RunResult        `json:"run"`
	Report   *models.ValidationReport `json:"report"`
	Privacy  *models.PrivacyMetrics   `json:"privacy"`
	Metrics  report.Metrics           `json:"metrics"`
	Judgment models.Judgment          `json:"judgment"`
}

// Engine ties the classifier, policy table, transforms, validator, risk
// engine and aggregator into one anonymization pipeline.
type Engine struct {
	classifier *semantics.Classifier
	transforms *anonymize.Engine
	validator  *validate.Validator
	risk       *risk.Engine
	aggregator *report.Aggregator

	level  policy.Level
	config Config

	mutex sync.RWMutex

	stats Statistics
}

// New creates an anonymization engine. A missing salt is a configuration
// error surfaced immediately, before any data is touched.
func New(config Config) (*Engine, error) {
	level, err := policy.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	pseudo, err := anonymize.NewPseudonymizer(config.Salt, config.TokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create pseudonymizer: %w", err)
	}

	return &Engine{
		classifier: semantics.NewClassifier(),
		transforms: anonymize.NewEngine(pseudo),
		validator:  validate.NewValidator(),
		risk:       risk.NewEngine(),
		aggregator: report.NewAggregator(),
		level:      level,
		config:     config,
	}, nil
}

// Anonymize classifies every column, resolves its action from the policy
// table and applies the transform. Per-column transform failures blank the
// column and are reported in the result, not raised.
func (e *Engine) Anonymize(ds *models.Dataset, progress ProgressFunc) (*models.RunResult, error) {
	startTime := time.Now()

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if ds == nil || ds.NumColumns() == 0 {
		return nil, fmt.Errorf("dataset has no columns")
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}

	result := &models.RunResult{
		RunID:      models.NewRunID(),
		Anonymized: models.NewDataset(),
		Log:        make(map[string]models.LogEntry),
	}

	total := ds.NumColumns()
	for i, col := range ds.Columns {
		semantic := e.classifier.Classify(col.Name, col.Values)
		action := policy.Resolve(e.level, semantic)

		values, err := e.transforms.Apply(col.Values, action, e.config.DiagnosisAllowed, semantic)
		if err != nil {
			result.TransformErrors = append(result.TransformErrors, models.TransformError{
				Column:   col.Name,
				Semantic: semantic,
				Action:   action,
				Err:      err.Error(),
			})
			e.stats.TransformFailures++
		}

		result.Anonymized.AddColumn(col.Name, values)
		result.Log[col.Name] = models.LogEntry{Semantic: semantic, Action: action}

		e.stats.ColumnsProcessed++
		e.stats.CellsProcessed += int64(len(col.Values))

		if progress != nil {
			progress(col.Name, i+1, total)
		}
	}

	processingTime := time.Since(startTime)
	result.Duration = processingTime

	e.stats.DatasetsProcessed++
	e.stats.LastProcessingTime = processingTime
	e.stats.TotalProcessingTime += processingTime

	log.Printf("Anonymization completed: %d columns, %d rows (processing time: %v)",
		total, ds.NumRows(), processingTime)

	return result, nil
}

// Validate runs the compliance checks over one original/anonymized pair.
func (e *Engine) Validate(original, anonymized *models.Dataset, logInfo map[string]models.LogEntry) *models.ValidationReport {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.validator.CheckDataset(original, anonymized, logInfo, e.config.DiagnosisAllowed)
}

// AssessRisk computes the re-identification metrics for an anonymized
// dataset, selecting QI and SA columns from the log.
func (e *Engine) AssessRisk(anonymized *models.Dataset, logInfo map[string]models.LogEntry) *models.PrivacyMetrics {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.risk.Compute(anonymized, logInfo, nil, nil)
}

// Judge condenses the transform log and validation report into the final
// PASS/WARN/FAIL verdict for one dataset.
func (e *Engine) Judge(anonymized *models.Dataset, logInfo map[string]models.LogEntry, rep *models.ValidationReport) (report.Metrics, models.Judgment) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	metrics := e.aggregator.Collect(anonymized, logInfo)
	return metrics, e.aggregator.Judge(metrics, rep, e.level)
}

// Process runs the full pipeline on one dataset: anonymize, validate,
// assess risk and judge.
func (e *Engine) Process(ds *models.Dataset, progress ProgressFunc) (*Result, error) {
	run, err := e.Anonymize(ds, progress)
	if err != nil {
		return nil, err
	}

	rep := e.Validate(ds, run.Anonymized, run.Log)
	privacy := e.AssessRisk(run.Anonymized, run.Log)
	metrics, judgment := e.Judge(run.Anonymized, run.Log, rep)

	return &Result{
		Run:      run,
		Report:   rep,
		Privacy:  privacy,
		Metrics:  metrics,
		Judgment: judgment,
	}, nil
}

// Level returns the active anonymization level.
func (e *Engine) Level() policy.Level {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.level
}

// GetConfig returns the active configuration.
func (e *Engine) GetConfig() Config {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.config
}

// GetStatistics returns current engine statistics.
func (e *Engine) GetStatistics() Statistics {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.stats
}

// UpdateConfig swaps the engine configuration. The salt requirement applies
// here too: the new pseudonymizer is built before anything is replaced.
func (e *Engine) UpdateConfig(config Config) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	level, err := policy.ParseLevel(config.Level)
	if err != nil {
		return err
	}

	pseudo, err := anonymize.NewPseudonymizer(config.Salt, config.TokenLength)
	if err != nil {
		return fmt.Errorf("failed to create pseudonymizer with new config: %w", err)
	}

	e.level = level
	e.config = config
	e.transforms = anonymize.NewEngine(pseudo)

	return nil
}

// Clear resets per-run state, recreating the token cache. Cumulative
// statistics are kept.
func (e *Engine) Clear() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	pseudo, err := anonymize.NewPseudonymizer(e.config.Salt, e.config.TokenLength)
	if err != nil {
		return fmt.Errorf("failed to recreate pseudonymizer: %w", err)
	}
	e.transforms = anonymize.NewEngine(pseudo)

	e.stats.DatasetsProcessed = 0
	e.stats.ColumnsProcessed = 0
	e.stats.CellsProcessed = 0
	e.stats.TransformFailures = 0

	return nil
}
