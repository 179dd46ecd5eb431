// Package domain models monitored flood zones and the rules that classify
// their risk.
//
// # Data Sources
//
// Weather readings come from the Open-Meteo forecast API
// (https://open-meteo.com/en/docs). Each zone is polled by coordinates and the
// provider response is normalized into a [WeatherSnapshot]. Community reports
// arrive as anonymous votes: one vote means "this zone is flooding now".
//
// # Units
//
//	precipitation, rain, showers   millimetres (current hour)
//	temperature                    degrees Celsius at 2 m
//	humidity, probabilities        percent, 0–100
//	precipitation_hours            hours with measurable precipitation today
//
// # Weather Codes
//
// Open-Meteo reports WMO 4677 "present weather" codes. Only the codes the
// provider actually emits are mapped; anything else has severity 0:
//
//	0–3        clear to overcast           0
//	45, 48     fog                         1
//	51–57      drizzle (freezing at 56/57) 1–2
//	61–67      rain (freezing at 66/67)    2–4
//	71–77      snow                        1–2
//	80–82      rain showers                2–5
//	85, 86     snow showers                2–3
//	95–99      thunderstorm (hail 96/99)   4–5
//
// # Classification
//
// A zone carries two parallel outputs that may disagree:
//
//	status / risk_level   rule-based, drives the displayed status text
//	score / severity      0–100 multi-factor index, drives the color gradient
//
// Rule precedence (first match wins):
//
//	1. votes >= 5                                  CONFIRMED_FLOODED  Critical
//	2. max(precipitation, rain) > 10.0 mm          WeatherRisk        High
//	3. hourly precipitation probability >= 80 %    Attention          Medium
//	4. votes >= 1                                  Attention          Medium
//	5. otherwise                                   Normal             Low
//
// Score bands: >=60 Critical, >=40 High, >=20 Medium, otherwise Low.
// See [RiskEngine.Classify] for the factor weights.
package domain
