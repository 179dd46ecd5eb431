package domain

// Thresholds configures the rule-based classification.
type Thresholds struct {
	ConfirmVotes    int     // votes that confirm a flood
	PrecipitationMM float64 // precipitation (strictly above) that raises a weather alert
	ProbabilityPct  int     // hourly probability (at or above) that raises a watch
}

// DefaultThresholds returns the production thresholds: 5 votes, 10 mm, 80 %.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ConfirmVotes:    5,
		PrecipitationMM: 10.0,
		ProbabilityPct:  80,
	}
}

// Assessment is the transient output of RiskEngine.Classify.
type Assessment struct {
	Status    Status
	RiskLevel RiskLevel
	Score     int
	Severity  RiskLevel
}

// RiskEngine classifies zones. It holds no state besides its thresholds and
// is safe to copy and share.
type RiskEngine struct {
	thresholds Thresholds
}

// NewRiskEngine creates a RiskEngine with the given thresholds.
func NewRiskEngine(t Thresholds) RiskEngine {
	return RiskEngine{thresholds: t}
}

// Thresholds returns the engine's configured thresholds.
func (e RiskEngine) Thresholds() Thresholds {
	return e.thresholds
}

// Classify derives the rule-based status and the numeric score for a zone.
// A nil snapshot means no weather data: only the vote rules apply and the
// score is 0.
func (e RiskEngine) Classify(w *WeatherSnapshot, votes int) Assessment {
	status, level := e.applyRules(w, votes)
	score := Score(w)
	return Assessment{
		Status:    status,
		RiskLevel: level,
		Score:     score,
		Severity:  ScoreSeverity(score),
	}
}

// applyRules evaluates the precedence chain; crowd confirmation always wins.
func (e RiskEngine) applyRules(w *WeatherSnapshot, votes int) (Status, RiskLevel) {
	t := e.thresholds
	switch {
	case votes >= t.ConfirmVotes:
		return StatusConfirmedFlooded, RiskCritical
	case w != nil && max(w.PrecipitationMM, w.RainMM) > t.PrecipitationMM:
		return StatusWeatherRisk, RiskHigh
	case w != nil && w.HourlyProbabilityPct >= t.ProbabilityPct:
		return StatusAttention, RiskMedium
	case votes >= 1:
		return StatusAttention, RiskMedium
	default:
		return StatusNormal, RiskLow
	}
}

// Score computes the 0–100 severity index, clamped at 100. Each factor contributes only its
// first matching band:
//   - precipitation: >20mm 40, >10mm 30, >5mm 20, >0mm 10
//   - showers: >10mm 25, >5mm 15, >0mm 5
//   - weather code severity (0–5) × 5
//   - humidity: >90% 10, >80% 5
//   - daily max probability: >80% 10, >60% 5
func Score(w *WeatherSnapshot) int {
	if w == nil {
		return 0
	}

	score := 0

	switch {
	case w.PrecipitationMM > 20:
		score += 40
	case w.PrecipitationMM > 10:
		score += 30
	case w.PrecipitationMM > 5:
		score += 20
	case w.PrecipitationMM > 0:
		score += 10
	}

	switch {
	case w.ShowersMM > 10:
		score += 25
	case w.ShowersMM > 5:
		score += 15
	case w.ShowersMM > 0:
		score += 5
	}

	score += WeatherCodeSeverity(w.WeatherCode) * 5

	switch {
	case w.HumidityPct > 90:
		score += 10
	case w.HumidityPct > 80:
		score += 5
	}

	switch {
	case w.DailyMaxProbabilityPct > 80:
		score += 10
	case w.DailyMaxProbabilityPct > 60:
		score += 5
	}

	return min(score, 100)
}

// ScoreSeverity maps a score onto the four-level scale.
func ScoreSeverity(score int) RiskLevel {
	switch {
	case score >= 60:
		return RiskCritical
	case score >= 40:
		return RiskHigh
	case score >= 20:
		return RiskMedium
	default:
		return RiskLow
	}
}

// weatherCodeSeverity maps WMO present-weather codes to 0–5.
var weatherCodeSeverity = map[int]int{
	0: 0, 1: 0, 2: 0, 3: 0,
	45: 1, 48: 1,
	51: 1, 53: 1, 55: 2,
	56: 2, 57: 2,
	61: 2, 63: 3, 65: 4,
	66: 3, 67: 4,
	71: 1, 73: 1, 75: 2, 77: 1,
	80: 2, 81: 3, 82: 5,
	85: 2, 86: 3,
	95: 4, 96: 5, 99: 5,
}

// WeatherCodeSeverity returns the 0–5 severity of a provider condition code.
// Unknown codes are 0.
func WeatherCodeSeverity(code int) int {
	return weatherCodeSeverity[code]
}
