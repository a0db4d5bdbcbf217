package storage

import (
	"fmt"

	"github.com/tidwall/gjson"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
)

// legacyPaths maps the nested document written by earlier tuner builds onto
// the parameter table.
var legacyPaths = map[string]string{
	genotype.ParamBaseHP:             "PlayerProgression.BaseHP",
	genotype.ParamHPPerLevel:         "PlayerProgression.HPPerLevel",
	genotype.ParamBaseSTR:            "PlayerProgression.BaseSTR",
	genotype.ParamBaseDEF:            "PlayerProgression.BaseDEF",
	genotype.ParamStatPointsPerLevel: "PlayerProgression.StatPointsPerLevel",
	genotype.ParamEnemyBaseHP:        "EnemyProgression.BaseHP",
	genotype.ParamEnemyHPScaling:     "EnemyProgression.HPScalingCoefficient",
	genotype.ParamEnemyBaseDamage:    "EnemyProgression.BaseDamage",
	genotype.ParamEnemyDamageScaling: "EnemyProgression.DamageScalingCoefficient",
	genotype.ParamBaseGold:           "Economy.BaseGoldPerCombat",
	genotype.ParamGoldScaling:        "Economy.GoldScalingCoefficient",
	genotype.ParamBaseTreasure:       "Loot.BaseTreasureGold",
	genotype.ParamTreasurePerDepth:   "Loot.TreasurePerDungeonDepth",
	genotype.ParamEquipmentDropRate:  "Loot.EquipmentDropRate",
}

// IsLegacyDocument reports whether data looks like a legacy nested
// progression document rather than a versioned record.
func IsLegacyDocument(data []byte) bool {
	if !gjson.ValidBytes(data) {
		return false
	}
	doc := gjson.ParseBytes(data)
	return !doc.Get("schema_version").Exists() && doc.Get("PlayerProgression").IsObject()
}

// ImportLegacy converts a legacy document to a best record. Parameters the
// document omits keep their baseline values; the result is clamped and its
// derived tables regenerated.
func ImportLegacy(data []byte) (model.BestRecord, error) {
	if !IsLegacyDocument(data) {
		return model.BestRecord{}, fmt.Errorf("not a legacy progression document")
	}
	doc := gjson.ParseBytes(data)

	g := genotype.Baseline()
	g.ID = genotype.NewID()
	for _, p := range genotype.Params() {
		path, ok := legacyPaths[p.Name]
		if !ok {
			continue
		}
		v := doc.Get(path)
		if !v.Exists() {
			continue
		}
		p.Set(&g, v.Float())
	}
	genotype.Clamp(&g)
	genotype.Regenerate(&g)

	return model.BestRecord{
		VersionedRecord: Versioned(),
		Strategy:        "legacy",
		Generation:      int(doc.Get("Metadata.Generation").Int()),
		Fitness:         doc.Get("Metadata.OverallFitness").Float(),
		Genome:          g,
		SavedAtUTC:      doc.Get("Metadata.Timestamp").String(),
	}, nil
}
