package risk

import (
	"math"
	"strings"

	"tabular-anonymizer/internal/models"
)

// qiEligible are the semantics that may act as quasi-identifiers.
var qiEligible = map[models.SemanticTag]bool{
	models.SemAge:           true,
	models.SemGender:        true,
	models.SemRace:          true,
	models.SemEthnicity:     true,
	models.SemMaritalStatus: true,
	models.SemAddress:       true,
	models.SemZipcode:       true,
	models.SemVisitDate:     true,
	models.SemBirthdate:     true,
	models.SemDeathdate:     true,
	models.SemLocation:      true,
}

// saEligible are the semantics that may act as sensitive attributes.
var saEligible = map[models.SemanticTag]bool{
	models.SemDiagnosis:   true,
	models.SemMeasurement: true,
	models.SemComment:     true,
	models.SemNote:        true,
	models.SemFinance:     true,
}

// tupleSep joins QI values into a class key. The unit separator cannot
// occur in cell text.
const tupleSep = "\x1f"

// Engine computes re-identification risk metrics over an anonymized
// dataset.
type Engine struct{}

// NewEngine creates a privacy risk engine.
func NewEngine() *Engine {
	return &Engine{}
}

// SelectQIColumns returns the QI-eligible columns of the dataset, in column
// order, excluding any column whose logged action is drop.
func (e *Engine) SelectQIColumns(ds *models.Dataset, log map[string]models.LogEntry) []string {
	return selectColumns(ds, log, qiEligible)
}

// SelectSAColumns returns the SA-eligible columns, same exclusion rule.
func (e *Engine) SelectSAColumns(ds *models.Dataset, log map[string]models.LogEntry) []string {
	return selectColumns(ds, log, saEligible)
}

func selectColumns(ds *models.Dataset, log map[string]models.LogEntry, eligible map[models.SemanticTag]bool) []string {
	var cols []string
	for _, c := range ds.Columns {
		entry, ok := log[c.Name]
		if !ok || entry.Action == models.ActionDrop {
			continue
		}
		if eligible[entry.Semantic] {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// Compute derives the privacy metrics for an anonymized dataset. Passing
// nil for qiCols or saCols selects them from the log automatically.
func (e *Engine) Compute(ds *models.Dataset, log map[string]models.LogEntry, qiCols, saCols []string) *models.PrivacyMetrics {
	if qiCols == nil {
		qiCols = e.SelectQIColumns(ds, log)
	}
	if saCols == nil {
		saCols = e.SelectSAColumns(ds, log)
	}

	metrics := &models.PrivacyMetrics{
		QIColumns: qiCols,
		SAColumns: saCols,
	}

	classSizes := e.classSizes(ds, qiCols)
	if len(classSizes) > 0 {
		k := minInt(classSizes)
		metrics.K = &k
		metrics.KLt2Ratio, metrics.KLt5Ratio = kRatios(classSizes)
	}

	if len(saCols) == 0 {
		metrics.Note = "no sensitive-attribute candidate; l/t omitted"
		return metrics
	}

	for _, sa := range saCols {
		saMetrics := models.SAMetrics{Column: sa}
		if l, ok := e.lDiversity(ds, qiCols, sa); ok {
			saMetrics.L = &l
		}
		if t, ok := e.tCloseness(ds, qiCols, sa); ok {
			saMetrics.T = &t
		}
		metrics.PerSA = append(metrics.PerSA, saMetrics)
	}
	return metrics
}

// classSizes groups rows by their QI tuple and returns each equivalence
// class's size. Rows whose QI values are all blank are excluded.
func (e *Engine) classSizes(ds *models.Dataset, qiCols []string) map[string]int {
	if len(qiCols) == 0 {
		return nil
	}

	columns := lookupColumns(ds, qiCols)
	if columns == nil {
		return nil
	}

	sizes := make(map[string]int)
	for row := 0; row < ds.NumRows(); row++ {
		tuple, allBlank := qiTuple(columns, row)
		if allBlank {
			continue
		}
		sizes[tuple]++
	}
	if len(sizes) == 0 {
		return nil
	}
	return sizes
}

// kRatios returns the record-weighted fraction of rows living in classes
// smaller than 2 and smaller than 5.
func kRatios(sizes map[string]int) (lt2, lt5 float64) {
	total := 0
	sumLt2 := 0
	sumLt5 := 0
	for _, size := range sizes {
		total += size
		if size < 2 {
			sumLt2 += size
		}
		if size < 5 {
			sumLt5 += size
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(sumLt2) / float64(total), float64(sumLt5) / float64(total)
}

// lDiversity is the minimum count of distinct SA values within any
// equivalence class, over rows where the SA value is non-blank.
func (e *Engine) lDiversity(ds *models.Dataset, qiCols []string, saCol string) (int, bool) {
	if len(qiCols) == 0 {
		return 0, false
	}
	columns := lookupColumns(ds, qiCols)
	sa, ok := ds.Column(saCol)
	if columns == nil || !ok {
		return 0, false
	}

	distinct := make(map[string]map[string]bool)
	for row := 0; row < ds.NumRows(); row++ {
		saValue := strings.TrimSpace(sa.Values[row])
		if saValue == "" {
			continue
		}
		tuple, _ := qiTuple(columns, row)
		if distinct[tuple] == nil {
			distinct[tuple] = make(map[string]bool)
		}
		distinct[tuple][saValue] = true
	}
	if len(distinct) == 0 {
		return 0, false
	}

	l := math.MaxInt
	for _, values := range distinct {
		if len(values) < l {
			l = len(values)
		}
	}
	return l, true
}

// tCloseness is the maximum total variation distance between any class's
// SA distribution and the dataset-wide SA distribution, over rows with a
// non-blank SA value.
func (e *Engine) tCloseness(ds *models.Dataset, qiCols []string, saCol string) (float64, bool) {
	if len(qiCols) == 0 {
		return 0, false
	}
	columns := lookupColumns(ds, qiCols)
	sa, ok := ds.Column(saCol)
	if columns == nil || !ok {
		return 0, false
	}

	globalCounts := make(map[string]int)
	classCounts := make(map[string]map[string]int)
	total := 0
	for row := 0; row < ds.NumRows(); row++ {
		saValue := strings.TrimSpace(sa.Values[row])
		if saValue == "" {
			continue
		}
		tuple, _ := qiTuple(columns, row)
		globalCounts[saValue]++
		if classCounts[tuple] == nil {
			classCounts[tuple] = make(map[string]int)
		}
		classCounts[tuple][saValue]++
		total++
	}
	if total == 0 {
		return 0, false
	}

	global := normalize(globalCounts, total)

	maxDist := 0.0
	for _, counts := range classCounts {
		classTotal := 0
		for _, c := range counts {
			classTotal += c
		}
		local := normalize(counts, classTotal)
		if d := totalVariationDistance(local, global); d > maxDist {
			maxDist = d
		}
	}
	return maxDist, true
}

// totalVariationDistance is half the sum of absolute proportion
// differences, over the union of categories.
func totalVariationDistance(p, q map[string]float64) float64 {
	sum := 0.0
	for cat, pv := range p {
		sum += math.Abs(pv - q[cat])
	}
	for cat, qv := range q {
		if _, ok := p[cat]; !ok {
			sum += qv
		}
	}
	return sum / 2
}

func normalize(counts map[string]int, total int) map[string]float64 {
	out := make(map[string]float64, len(counts))
	for k, c := range counts {
		out[k] = float64(c) / float64(total)
	}
	return out
}

func lookupColumns(ds *models.Dataset, names []string) []*models.Column {
	columns := make([]*models.Column, len(names))
	for i, name := range names {
		col, ok := ds.Column(name)
		if !ok {
			return nil
		}
		columns[i] = col
	}
	return columns
}

func qiTuple(columns []*models.Column, row int) (tuple string, allBlank bool) {
	parts := make([]string, len(columns))
	allBlank = true
	for i, col := range columns {
		v := strings.TrimSpace(col.Values[row])
		parts[i] = v
		if v != "" {
			allBlank = false
		}
	}
	return strings.Join(parts, tupleSep), allBlank
}

func minInt(sizes map[string]int) int {
	min := math.MaxInt
	for _, s := range sizes {
		if s < min {
			min = s
		}
	}
	return min
}
