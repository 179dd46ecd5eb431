// Command validate checks a persisted zone file for integrity: structural
// invariants, classification consistency against the configured thresholds,
// weather value ranges, and (optionally) parity with the default zone list.
//
// Usage:
//
//	go run ./cmd/validate -zones zones.json
//	go run ./cmd/validate -zones zones.json -confirm-votes 5 -precip-mm 10 -prob-pct 80 -seed
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/flood-watch/internal/adapter/jsonfile"
	"github.com/couchcryptid/flood-watch/internal/domain"
	"github.com/couchcryptid/flood-watch/internal/zones"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	defaults := domain.DefaultThresholds()
	path := flag.String("zones", "", "path to the zone JSON file")
	confirm := flag.Int("confirm-votes", defaults.ConfirmVotes, "votes that confirm a flood")
	precip := flag.Float64("precip-mm", defaults.PrecipitationMM, "precipitation threshold in mm")
	prob := flag.Int("prob-pct", defaults.ProbabilityPct, "hourly probability threshold in percent")
	seed := flag.Bool("seed", false, "also check ids, names and coordinates against the default zone list")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		os.Exit(1)
	}

	t := domain.Thresholds{ConfirmVotes: *confirm, PrecipitationMM: *precip, ProbabilityPct: *prob}
	if code := run(*path, t, *seed); code != 0 {
		os.Exit(code)
	}
}

func run(path string, t domain.Thresholds, checkSeed bool) int {
	fmt.Println("=== Zone File Validation ===")
	fmt.Println()

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read zones: %v\n", err)
		return 1
	}
	zs, err := jsonfile.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := validate(zs, domain.NewRiskEngine(t), checkSeed)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Zones: %d\n", len(zs))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validate(zs []domain.Zone, engine domain.RiskEngine, checkSeed bool) []*phase {
	phases := []*phase{
		validateStructure(zs),
		validateClassification(zs, engine),
		validateWeather(zs),
	}
	if checkSeed {
		phases = append(phases, validateSeedParity(zs))
	}
	return phases
}

// ── Phase 1: Structure ──

func validateStructure(zs []domain.Zone) *phase {
	p := &phase{name: "Phase 1: Structure"}

	if len(zs) == 0 {
		p.errorf("file holds no zones")
	}
	seen := map[int]bool{}
	for i, z := range zs {
		if z.ID <= 0 {
			p.errorf("zone %d: id %d is not positive", i, z.ID)
		}
		if seen[z.ID] {
			p.errorf("zone %d: duplicate id %d", i, z.ID)
		}
		seen[z.ID] = true
		if z.Name == "" {
			p.errorf("zone id %d: name is empty", z.ID)
		}
		if z.Lat < -90 || z.Lat > 90 || z.Lon < -180 || z.Lon > 180 {
			p.errorf("zone id %d: coordinates (%g, %g) out of range", z.ID, z.Lat, z.Lon)
		}
		if z.Votes < 0 {
			p.errorf("zone id %d: negative votes %d", z.ID, z.Votes)
		}
		if i > 0 && zs[i-1].ID >= z.ID {
			p.errorf("zone id %d: not ordered by id", z.ID)
		}
	}
	return p
}

// ── Phase 2: Classification ──
// Re-derives status, level, score and severity from the stored inputs.

func validateClassification(zs []domain.Zone, engine domain.RiskEngine) *phase {
	p := &phase{name: "Phase 2: Classification consistency"}

	for _, z := range zs {
		want := z.Assess(engine)
		if z.Status != want.Status {
			p.errorf("zone id %d: status %q, expected %q", z.ID, z.Status, want.Status)
		}
		if z.RiskLevel != want.RiskLevel {
			p.errorf("zone id %d: risk_level %q, expected %q", z.ID, z.RiskLevel, want.RiskLevel)
		}
		if z.Score != want.Score {
			p.errorf("zone id %d: score %d, expected %d", z.ID, z.Score, want.Score)
		}
		if z.Severity != want.Severity {
			p.errorf("zone id %d: severity %q, expected %q", z.ID, z.Severity, want.Severity)
		}
	}
	return p
}

// ── Phase 3: Weather ranges ──

func validateWeather(zs []domain.Zone) *phase {
	p := &phase{name: "Phase 3: Weather value ranges"}

	for _, z := range zs {
		w := z.Weather
		if w == nil {
			continue
		}
		for name, v := range map[string]float64{
			"precipitation_mm":        w.PrecipitationMM,
			"rain_mm":                 w.RainMM,
			"showers_mm":              w.ShowersMM,
			"hourly_precipitation_mm": w.HourlyPrecipitationMM,
			"daily_precip_sum_mm":     w.DailyPrecipSumMM,
			"daily_precip_hours":      w.DailyPrecipHours,
		} {
			if v < 0 || math.IsNaN(v) {
				p.errorf("zone id %d: %s is %g", z.ID, name, v)
			}
		}
		if w.HumidityPct < 0 || w.HumidityPct > 100 {
			p.errorf("zone id %d: humidity_pct %g outside 0..100", z.ID, w.HumidityPct)
		}
		if w.HourlyProbabilityPct < 0 || w.HourlyProbabilityPct > 100 {
			p.errorf("zone id %d: hourly_probability_pct %d outside 0..100", z.ID, w.HourlyProbabilityPct)
		}
		if w.DailyMaxProbabilityPct < 0 || w.DailyMaxProbabilityPct > 100 {
			p.errorf("zone id %d: daily_max_probability_pct %d outside 0..100", z.ID, w.DailyMaxProbabilityPct)
		}
		if w.WeatherCode < 0 || w.WeatherCode > 99 {
			p.errorf("zone id %d: weather_code %d outside WMO range", z.ID, w.WeatherCode)
		}
		if w.FetchedAt.IsZero() {
			p.errorf("zone id %d: fetched_at is zero", z.ID)
		}
	}
	return p
}

// ── Phase 4: Seed parity ──

func validateSeedParity(zs []domain.Zone) *phase {
	p := &phase{name: "Phase 4: Default zone parity"}

	byID := map[int]domain.Zone{}
	for _, z := range zs {
		byID[z.ID] = z
	}
	for _, want := range zones.DefaultZones() {
		got, ok := byID[want.ID]
		if !ok {
			p.errorf("zone id %d (%s) missing", want.ID, want.Name)
			continue
		}
		if got.Name != want.Name {
			p.errorf("zone id %d: name %q, expected %q", want.ID, got.Name, want.Name)
		}
		if !floatEq(got.Lat, want.Lat) || !floatEq(got.Lon, want.Lon) {
			p.errorf("zone id %d: coordinates (%g, %g), expected (%g, %g)", want.ID, got.Lat, got.Lon, want.Lat, want.Lon)
		}
	}
	return p
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
