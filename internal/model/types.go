package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Genome is one candidate configuration of the balance parameters. Base
// parameters are searched; Derived is recomputed from them and never mutated
// directly.
type Genome struct {
	VersionedRecord
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`

	Player    PlayerParams    `json:"player"`
	Enemy     EnemyParams     `json:"enemy"`
	Economy   EconomyParams   `json:"economy"`
	Loot      LootParams      `json:"loot"`
	Equipment EquipmentParams `json:"equipment"`

	Derived Derived `json:"derived"`
}

type PlayerParams struct {
	BaseHP             int `json:"base_hp"`
	HPPerLevel         int `json:"hp_per_level"`
	BaseSTR            int `json:"base_str"`
	BaseDEF            int `json:"base_def"`
	StatPointsPerLevel int `json:"stat_points_per_level"`
}

type EnemyParams struct {
	BaseHP        int     `json:"base_hp"`
	HPScaling     float64 `json:"hp_scaling"`
	BaseDamage    int     `json:"base_damage"`
	DamageScaling float64 `json:"damage_scaling"`
}

type EconomyParams struct {
	BaseGold    int     `json:"base_gold"`
	GoldScaling float64 `json:"gold_scaling"`
}

type LootParams struct {
	BaseTreasure      int `json:"base_treasure"`
	TreasurePerDepth  int `json:"treasure_per_depth"`
	EquipmentDropRate int `json:"equipment_drop_rate"`
}

// EquipmentParams shape the tier curves: bonus = tier^PowerGrowth and
// cost = tier^2 * CostFactor + 5.
type EquipmentParams struct {
	PowerGrowth float64 `json:"power_growth"`
	CostFactor  int     `json:"cost_factor"`
}

type Derived struct {
	Fingerprint string            `json:"fingerprint"`
	Weapons     []EquipmentTier   `json:"weapons"`
	Armor       []EquipmentTier   `json:"armor"`
	Economy     []EconomySnapshot `json:"economy"`
	Builds      []BuildViability  `json:"builds"`
}

type EquipmentTier struct {
	Tier          int     `json:"tier"`
	Name          string  `json:"name"`
	Bonus         float64 `json:"bonus"`
	BonusGain     float64 `json:"bonus_gain"`
	Cost          int     `json:"cost"`
	UnlockLevel   int     `json:"unlock_level"`
	PowerIncrease float64 `json:"power_increase"`
}

type EconomySnapshot struct {
	Level           int  `json:"level"`
	GoldEarned      int  `json:"gold_earned"`
	CumulativeGold  int  `json:"cumulative_gold"`
	GoldAfterSpend  int  `json:"gold_after_spend"`
	AffordableTier  int  `json:"affordable_tier"`
	RecommendedTier int  `json:"recommended_tier"`
	PurchasedTier   int  `json:"purchased_tier"`
	ItemsDropped    int  `json:"items_dropped"`
	ProgressHealthy bool `json:"progress_healthy"`
}

type BuildViability struct {
	Name          string  `json:"name"`
	StrengthRatio float64 `json:"strength_ratio"`
	DefenseRatio  float64 `json:"defense_ratio"`
	Score         float64 `json:"score"`
	Viable        bool    `json:"viable"`
}

type MetricResult struct {
	Name          string   `json:"name"`
	Score         float64  `json:"score"`
	Weight        float64  `json:"weight"`
	WeightedScore float64  `json:"weighted_score"`
	Critical      bool     `json:"critical"`
	Details       []string `json:"details,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

type FitnessResult struct {
	Total      float64        `json:"total"`
	Metrics    []MetricResult `json:"metrics"`
	Gated      bool           `json:"gated"`
	Difficulty float64        `json:"difficulty"`
	Error      string         `json:"error,omitempty"`
}

// Metric returns the named metric result.
func (r FitnessResult) Metric(name string) (MetricResult, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return MetricResult{}, false
}

// BestRecord is the persisted best-so-far configuration.
type BestRecord struct {
	VersionedRecord
	RunID      string        `json:"run_id"`
	Strategy   string        `json:"strategy"`
	Generation int           `json:"generation"`
	Fitness    float64       `json:"fitness"`
	Result     FitnessResult `json:"result"`
	Genome     Genome        `json:"genome"`
	SavedAtUTC string        `json:"saved_at_utc"`
}

// Champion is the best configuration observed across every reset of a run.
type Champion struct {
	VersionedRecord
	RunID         string  `json:"run_id"`
	Fitness       float64 `json:"fitness"`
	Generation    int     `json:"generation"`
	Resets        int     `json:"resets"`
	Genome        Genome  `json:"genome"`
	PromotedAtUTC string  `json:"promoted_at_utc"`
}

// FitnessSample is one improvement point on a run's fitness curve.
type FitnessSample struct {
	Generation int     `json:"generation"`
	Fitness    float64 `json:"fitness"`
}

type LeaderboardEntry struct {
	VersionedRecord
	Rank       int     `json:"rank"`
	Label      string  `json:"label,omitempty"`
	Fitness    float64 `json:"fitness"`
	Generation int     `json:"generation"`
	Genome     Genome  `json:"genome"`
}
