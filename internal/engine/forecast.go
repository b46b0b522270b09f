package engine

import (
	"math"
	"sort"
	"time"

	"github.com/taxvalor/api/internal/models"
)

// Forecasting model names recorded in the prediction descriptor.
const (
	ModelTimeSeries    = "time_series_analysis"
	ModelLinearTrend   = "linear_trend"
	ModelExtrapolation = "simple_extrapolation"
	ModelLimitedData   = "limited_data"
)

// History-volume thresholds for model selection.
const (
	minPointsTimeSeries  = 5
	minPointsLinearTrend = 3
	minPointsSeasonal    = 4
)

// Confidence score weights, all in score points.
const (
	confidencePerPoint     = 10.0
	confidenceVolumeCap    = 30.0
	confidenceSpanCap      = 30.0
	confidenceDistancePen  = 0.5
	confidenceDistanceCap  = 20.0
	confidenceConsistCap   = 20.0
	avgDaysPerMonth        = 30.44
	daysPerYear            = 365.25
)

// defaultGrowthRates are the per-property-type annual growth rates applied
// when too little history exists to fit a model.
var defaultGrowthRates = map[models.PropertyType]float64{
	models.PropertyTypeResidential:  0.035,
	models.PropertyTypeCommercial:   0.030,
	models.PropertyTypeIndustrial:   0.025,
	models.PropertyTypeAgricultural: 0.020,
}

const fallbackGrowthRate = 0.030

// ForecastResult is the output of Predict. AnnualChangeRate is the model's
// derived rate (percent per year) before seasonal adjustment; the three
// values carry the seasonal multiplier already applied and rounded.
type ForecastResult struct {
	AssessedValue      float64
	MarketValue        float64
	TaxableValue       float64
	AnnualChangeRate   float64
	ConfidenceScore    float64
	SeasonalAdjustment float64
	Model              models.PredictionModel
}

// Predict forecasts a property's value at predictionDate from its historical
// valuations. The forecasting model is chosen by data volume; sparse history
// degrades the confidence score rather than failing, so a result is always
// produced. assessmentRatio reconstructs a market value when the history
// gives no assessed/market ratio to carry forward.
func Predict(property *models.Property, history []models.PropertyValuation, predictionDate time.Time, assessmentRatio float64) ForecastResult {
	ordered := make([]models.PropertyValuation, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].AssessmentDate.Before(ordered[j].AssessmentDate)
	})

	assessed, rate, model := forecastAssessed(property, ordered, predictionDate)
	if assessed < 0 {
		assessed = 0
	}

	confidence := confidenceScore(ordered, predictionDate)
	seasonal := seasonalMultiplier(ordered, predictionDate.Month())

	market, taxable := derivedValues(assessed, ordered, assessmentRatio)

	return ForecastResult{
		AssessedValue:      math.Round(assessed * seasonal),
		MarketValue:        math.Round(market * seasonal),
		TaxableValue:       math.Round(taxable * seasonal),
		AnnualChangeRate:   roundRate(rate * 100),
		ConfidenceScore:    confidence,
		SeasonalAdjustment: seasonal,
		Model:              model,
	}
}

// forecastAssessed picks the model by history volume and returns the raw
// predicted assessed value, the annual rate it derived, and the model
// descriptor.
func forecastAssessed(property *models.Property, ordered []models.PropertyValuation, predictionDate time.Time) (float64, float64, models.PredictionModel) {
	switch n := len(ordered); {
	case n >= minPointsTimeSeries:
		return timeSeriesForecast(ordered, predictionDate)
	case n >= minPointsLinearTrend:
		return linearTrendForecast(ordered, predictionDate)
	case n == 2:
		return extrapolationForecast(ordered, predictionDate)
	default:
		return limitedDataForecast(property, ordered, predictionDate)
	}
}

// timeSeriesForecast fits an ordinary least-squares line of assessed value
// against assessment date (ms since epoch) and extrapolates it to the
// prediction date.
func timeSeriesForecast(ordered []models.PropertyValuation, predictionDate time.Time) (float64, float64, models.PredictionModel) {
	n := float64(len(ordered))
	var sumX, sumY, sumXY, sumXX float64
	for _, v := range ordered {
		x := float64(v.AssessmentDate.UnixMilli())
		y := v.AssessedValue
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	meanY := sumY / n
	if denom == 0 {
		// All dates identical; the line is flat at the mean.
		flat := 0.0
		return meanY, 0, models.PredictionModel{
			Method:     ModelTimeSeries,
			DataPoints: len(ordered),
			Slope:      &flat,
			Intercept:  &meanY,
		}
	}

	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	predicted := intercept + slope*float64(predictionDate.UnixMilli())

	// R² against the fitted line.
	var ssRes, ssTot float64
	for _, v := range ordered {
		fit := intercept + slope*float64(v.AssessmentDate.UnixMilli())
		ssRes += (v.AssessedValue - fit) * (v.AssessedValue - fit)
		ssTot += (v.AssessedValue - meanY) * (v.AssessedValue - meanY)
	}
	rSquared := 1.0
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	}

	// Slope is $/ms; express the annual rate relative to the latest value.
	msPerYear := daysPerYear * 24 * float64(time.Hour/time.Millisecond)
	rate := 0.0
	if last := ordered[len(ordered)-1].AssessedValue; last > 0 {
		rate = slope * msPerYear / last
	}

	return predicted, rate, models.PredictionModel{
		Method:     ModelTimeSeries,
		DataPoints: len(ordered),
		Slope:      &slope,
		Intercept:  &intercept,
		RSquared:   &rSquared,
	}
}

// linearTrendForecast averages the period-over-period annualized percentage
// changes and compounds that average rate forward from the latest valuation.
func linearTrendForecast(ordered []models.PropertyValuation, predictionDate time.Time) (float64, float64, models.PredictionModel) {
	rates := annualizedChanges(ordered)

	avg := 0.0
	for _, r := range rates {
		avg += r
	}
	if len(rates) > 0 {
		avg /= float64(len(rates))
	}

	last := ordered[len(ordered)-1]
	years := yearsBetween(last.AssessmentDate, predictionDate)
	predicted := compound(last.AssessedValue, avg, years)

	return predicted, avg, models.PredictionModel{
		Method:      ModelLinearTrend,
		DataPoints:  len(ordered),
		AnnualRates: rates,
	}
}

// extrapolationForecast compounds the single annualized rate between the two
// known points.
func extrapolationForecast(ordered []models.PropertyValuation, predictionDate time.Time) (float64, float64, models.PredictionModel) {
	first, last := ordered[0], ordered[1]
	rate := annualizedRate(first, last)

	years := yearsBetween(last.AssessmentDate, predictionDate)
	predicted := compound(last.AssessedValue, rate, years)

	return predicted, rate, models.PredictionModel{
		Method:     ModelExtrapolation,
		DataPoints: len(ordered),
		AnnualRate: &rate,
	}
}

// limitedDataForecast compounds the per-property-type default growth rate
// from the last known value. With no valuation at all, the property's last
// assessed value is the base; with neither, the base is zero and the caller
// sees a zero-value, minimum-confidence result.
func limitedDataForecast(property *models.Property, ordered []models.PropertyValuation, predictionDate time.Time) (float64, float64, models.PredictionModel) {
	rate, ok := defaultGrowthRates[property.PropertyType]
	if !ok {
		rate = fallbackGrowthRate
	}

	base := 0.0
	from := predictionDate
	if len(ordered) > 0 {
		base = ordered[len(ordered)-1].AssessedValue
		from = ordered[len(ordered)-1].AssessmentDate
	} else if property.LastAssessedValue != nil {
		base = *property.LastAssessedValue
	}

	years := yearsBetween(from, predictionDate)
	predicted := compound(base, rate, years)

	return predicted, rate, models.PredictionModel{
		Method:     ModelLimitedData,
		DataPoints: len(ordered),
		AnnualRate: &rate,
	}
}

// confidenceScore measures how much the history supports the prediction:
// volume of points, time span covered, distance being extrapolated, and
// consistency of year-over-year changes. Clamped to [0, 100].
func confidenceScore(ordered []models.PropertyValuation, predictionDate time.Time) float64 {
	n := len(ordered)

	score := math.Min(float64(n)*confidencePerPoint, confidenceVolumeCap)

	if n >= 2 {
		spanMonths := monthsBetween(ordered[0].AssessmentDate, ordered[n-1].AssessmentDate)
		score += math.Min(spanMonths/2, confidenceSpanCap)
	}

	if n >= 1 {
		ahead := monthsBetween(ordered[n-1].AssessmentDate, predictionDate)
		if ahead > 0 {
			score -= math.Min(ahead*confidenceDistancePen, confidenceDistanceCap)
		}
	}

	score += consistencyBonus(ordered)

	return clamp(score, 0, 100)
}

// consistencyBonus rewards stable year-over-year changes: a coefficient of
// variation near zero earns the full 20 points, scaling down to zero as the
// variation approaches the mean.
func consistencyBonus(ordered []models.PropertyValuation) float64 {
	if len(ordered) < minPointsLinearTrend {
		return 0
	}
	rates := annualizedChanges(ordered)
	if len(rates) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range rates {
		mean += r
	}
	mean /= float64(len(rates))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, r := range rates {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(rates)))

	cov := stdDev / math.Abs(mean)
	return confidenceConsistCap * (1 - math.Min(cov, 1))
}

// seasonalMultiplier builds a 12-bucket monthly index from the history:
// assessed values averaged per calendar month, empty months backfilled with
// the overall average, the whole index normalized to mean 1.0. Histories
// shorter than four points get no adjustment.
func seasonalMultiplier(ordered []models.PropertyValuation, month time.Month) float64 {
	if len(ordered) < minPointsSeasonal {
		return 1.0
	}

	var sums, counts [12]float64
	total := 0.0
	for _, v := range ordered {
		m := int(v.AssessmentDate.Month()) - 1
		sums[m] += v.AssessedValue
		counts[m]++
		total += v.AssessedValue
	}
	overall := total / float64(len(ordered))
	if overall == 0 {
		return 1.0
	}

	var index [12]float64
	indexMean := 0.0
	for m := 0; m < 12; m++ {
		if counts[m] > 0 {
			index[m] = sums[m] / counts[m]
		} else {
			index[m] = overall
		}
		indexMean += index[m]
	}
	indexMean /= 12
	if indexMean == 0 {
		return 1.0
	}

	return index[int(month)-1] / indexMean
}

// annualizedChanges returns the simple annualized percentage change of each
// consecutive valuation pair. Pairs with a non-positive earlier value or no
// measurable time between them are skipped.
func annualizedChanges(ordered []models.PropertyValuation) []float64 {
	rates := make([]float64, 0, len(ordered))
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		years := yearsBetween(prev.AssessmentDate, cur.AssessmentDate)
		if prev.AssessedValue <= 0 || years <= 0 {
			continue
		}
		change := (cur.AssessedValue - prev.AssessedValue) / prev.AssessedValue
		rates = append(rates, change/years)
	}
	return rates
}

// annualizedRate is the compound annual rate between two valuations.
func annualizedRate(first, last models.PropertyValuation) float64 {
	years := yearsBetween(first.AssessmentDate, last.AssessmentDate)
	if first.AssessedValue <= 0 || last.AssessedValue <= 0 || years <= 0 {
		return 0
	}
	return math.Pow(last.AssessedValue/first.AssessedValue, 1/years) - 1
}

// derivedValues reconstructs market and taxable values for the predicted
// assessed value, carrying forward the latest valuation's ratios when
// available.
func derivedValues(assessed float64, ordered []models.PropertyValuation, assessmentRatio float64) (market, taxable float64) {
	market = assessed
	taxable = assessed

	if assessmentRatio > 0 {
		market = assessed / assessmentRatio
	}

	if len(ordered) > 0 {
		last := ordered[len(ordered)-1]
		if last.AssessedValue > 0 {
			if last.MarketValue > 0 {
				market = assessed * (last.MarketValue / last.AssessedValue)
			}
			if last.TaxableValue > 0 {
				taxable = assessed * (last.TaxableValue / last.AssessedValue)
			}
		}
	}
	return market, taxable
}

func compound(base, annualRate, years float64) float64 {
	if base <= 0 {
		return 0
	}
	if years <= 0 {
		return base
	}
	return base * math.Pow(1+annualRate, years)
}

func yearsBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24 / daysPerYear
}

func monthsBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24 / avgDaysPerMonth
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// roundRate keeps annual-change rates at two decimal places so persisted
// predictions compare bit-for-bit.
func roundRate(pct float64) float64 {
	return math.Round(pct*100) / 100
}
