// Package domain models monitored flood-risk areas and the scoring policy that
// classifies them.
//
// # Areas
//
// A monitored area is a point or polygon with static, risk-relevant attributes:
//
//	Hydrology      water body (sea, river, creek, none), slope, elevation in meters
//	Population     resident count, absent values are treated as 0
//	FloodFrequency rare | occasional | frequent | very-frequent
//	Landslide      low | medium | high (no data source exists, always low)
//
// Terrain is derived from hydrology with a fixed precedence, see [DeriveTerrain]:
//
//	water body "sea"            → coastal
//	water body "river"/"creek"  → river
//	slope "steep" or elev > 100 → mountain
//	otherwise                   → flat
//
// # Weather
//
// Each area carries its last-known [WeatherSample]. Rainfall is a rate in
// mm/hr, wind speed is in km/h, forecast rainfall is a 48-hour estimate in mm.
// A failed fetch never touches the stored sample.
//
// # Scoring
//
// [Classify] accumulates a score from the table below, buckets it into three
// tiers, then refines the tiers into five output levels:
//
//	rainfall24h (rate × 6)   >50 +30 | >20 +15 | else +5
//	forecast rain 48h        >80 +25 | >40 +15 | else +5
//	wind (km/h ÷ 3.6)        >15 m/s +10
//	terrain                  river/coastal +15 | mountain +10 | flat 0
//	flood history            high +20 | medium +10 | low 0
//	landslide history        high +20 | medium +10 | low 0
//	population               >1000 +10
//
//	score ≥ 70 → High tier   → ≥85 "Severe", else "High"
//	score ≥ 40 → Medium tier → "Moderate"
//	otherwise  → Low tier    → <20 "Very Low", else "Low"
//
// The Medium tier has no sub-threshold: every score in [40, 70) is "Moderate".
//
// # Representative coordinate
//
// Weather is looked up at one coordinate per area. Points use the point itself;
// polygons use the first vertex of the outer ring, not the centroid. See
// [Geometry.RepresentativePoint].
package domain
