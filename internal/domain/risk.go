package domain

// Terrain is the coarse landform classification used for scoring.
type Terrain string

const (
	TerrainCoastal  Terrain = "coastal"
	TerrainRiver    Terrain = "river"
	TerrainMountain Terrain = "mountain"
	TerrainFlat     Terrain = "flat"
)

// Bucket is a qualitative low/medium/high history bucket.
type Bucket string

const (
	BucketLow    Bucket = "low"
	BucketMedium Bucket = "medium"
	BucketHigh   Bucket = "high"
)

// Tier is the intermediate three-way classification of a raw score.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// RiskLevel is the five-level output scale.
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "Very Low"
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
	RiskSevere   RiskLevel = "Severe"
)

// RiskLevels lists every level in ascending severity.
var RiskLevels = []RiskLevel{RiskVeryLow, RiskLow, RiskModerate, RiskHigh, RiskSevere}

// Rank returns the 0-based severity of the level, or -1 if it is unknown.
func (l RiskLevel) Rank() int {
	for i, lvl := range RiskLevels {
		if lvl == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l is one of the five known levels.
func (l RiskLevel) Valid() bool { return l.Rank() >= 0 }

// Policy thresholds.
const (
	rainfallHoursEstimate = 6   // rainfall24h is estimated as 6 hours of the current rate
	windStrongMS          = 15  // m/s
	populationDense       = 1000
	mountainElevationM    = 100 // meters

	tierHighMin    = 70
	tierMediumMin  = 40
	levelLowMin    = 20 // Low tier only
	levelSevereMin = 85 // High tier only
)

// MaxScore is the highest score Classify can produce: every factor at its top
// band. Stored scores are validated against it.
const MaxScore = 30 + 25 + 10 + 15 + 20 + 20 + 10

// RiskAttributes is the static attribute snapshot the classifier consumes.
type RiskAttributes struct {
	Terrain          Terrain
	Population       int
	FloodHistory     Bucket
	LandslideHistory Bucket
}

// RiskAssessment is an immutable score/level pair produced by Classify.
type RiskAssessment struct {
	Score int       `json:"score"`
	Tier  Tier      `json:"tier,omitempty"`
	Level RiskLevel `json:"level"`
}

// Classify scores an area against a weather sample and maps the score onto the
// five-level scale. It is total and has no side effects.
func Classify(attrs RiskAttributes, w WeatherSample) RiskAssessment {
	score := 0
	score += rainfallPoints(w.RainfallMMPerHour * rainfallHoursEstimate)
	score += forecastPoints(w.ForecastRainMM)
	if w.WindSpeedKMH/3.6 > windStrongMS {
		score += 10
	}
	score += terrainPoints(attrs.Terrain)
	score += bucketPoints(attrs.FloodHistory)
	score += bucketPoints(attrs.LandslideHistory)
	if attrs.Population > populationDense {
		score += 10
	}

	tier := ScoreTier(score)
	return RiskAssessment{Score: score, Tier: tier, Level: LevelFor(tier, score)}
}

// ScoreTier buckets a raw score into the three intermediate tiers.
func ScoreTier(score int) Tier {
	switch {
	case score >= tierHighMin:
		return TierHigh
	case score >= tierMediumMin:
		return TierMedium
	default:
		return TierLow
	}
}

// LevelFor refines a tier into the five-level scale. The 20 and 85 thresholds
// only apply within the Low and High tiers; Medium always maps to Moderate.
func LevelFor(tier Tier, score int) RiskLevel {
	switch tier {
	case TierHigh:
		if score >= levelSevereMin {
			return RiskSevere
		}
		return RiskHigh
	case TierMedium:
		return RiskModerate
	default:
		if score < levelLowMin {
			return RiskVeryLow
		}
		return RiskLow
	}
}

// DeriveTerrain classifies hydrology into a terrain. The order of checks is
// fixed: sea, then river/creek, then steep slope or elevation, then flat.
func DeriveTerrain(h Hydrology) Terrain {
	switch {
	case h.WaterBody == "sea":
		return TerrainCoastal
	case h.WaterBody == "river" || h.WaterBody == "creek":
		return TerrainRiver
	case h.Slope == "steep" || h.ElevationM > mountainElevationM:
		return TerrainMountain
	default:
		return TerrainFlat
	}
}

func rainfallPoints(rainfall24h float64) int {
	switch {
	case rainfall24h > 50:
		return 30
	case rainfall24h > 20:
		return 15
	default:
		return 5
	}
}

func forecastPoints(forecast48h float64) int {
	switch {
	case forecast48h > 80:
		return 25
	case forecast48h > 40:
		return 15
	default:
		return 5
	}
}

func terrainPoints(t Terrain) int {
	switch t {
	case TerrainRiver, TerrainCoastal:
		return 15
	case TerrainMountain:
		return 10
	default:
		return 0
	}
}

func bucketPoints(b Bucket) int {
	switch b {
	case BucketHigh:
		return 20
	case BucketMedium:
		return 10
	default:
		return 0
	}
}
