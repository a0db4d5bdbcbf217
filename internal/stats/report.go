package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"equilibrium/internal/fitness"
	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
)

const (
	viableBuildScore = 60
	sparklineSamples = 20
)

var sparkBars = []rune("▁▂▃▄▅▆▇█")

// ProgressionReport is the human-facing export of one configuration.
type ProgressionReport struct {
	Genome   model.Genome
	Result   model.FitnessResult
	Quality  string
	Insights []string
	History  []model.FitnessSample
}

// BuildProgressionReport derives the report for g. Derived tables are
// regenerated when stale.
func BuildProgressionReport(g model.Genome, result model.FitnessResult) ProgressionReport {
	g = genotype.CloneGenome(g)
	genotype.EnsureFresh(&g)
	return ProgressionReport{
		Genome:   g,
		Result:   result,
		Quality:  fitness.Quality(result.Total),
		Insights: insights(g),
	}
}

func insights(g model.Genome) []string {
	healthy := len(g.Derived.Economy) > 0
	for _, snap := range g.Derived.Economy {
		if !snap.ProgressHealthy {
			healthy = false
			break
		}
	}
	economy := "broken, players cannot afford progression"
	if healthy {
		economy = "healthy, players can afford progression"
	}
	viable := 0
	for _, b := range g.Derived.Builds {
		if b.Score > viableBuildScore {
			viable++
		}
	}
	return []string{
		fmt.Sprintf("HP scales at +%d per level", g.Player.HPPerLevel),
		fmt.Sprintf("Enemy HP grows %.2fx player level", g.Enemy.HPScaling),
		fmt.Sprintf("Gold income: %dg + (%.2fx enemy level)", g.Economy.BaseGold, g.Economy.GoldScaling),
		"Economy status: " + economy,
		fmt.Sprintf("Viable builds: %d/%d", viable, len(g.Derived.Builds)),
	}
}

// Sparkline renders the last improvement samples as block characters.
func Sparkline(history []model.FitnessSample) string {
	if len(history) > sparklineSamples {
		history = history[len(history)-sparklineSamples:]
	}
	if len(history) == 0 {
		return ""
	}
	lo, hi := history[0].Fitness, history[0].Fitness
	for _, s := range history {
		lo = min(lo, s.Fitness)
		hi = max(hi, s.Fitness)
	}
	var b strings.Builder
	for _, s := range history {
		idx := len(sparkBars) - 1
		if hi > lo {
			idx = int((s.Fitness - lo) / (hi - lo) * float64(len(sparkBars)-1))
		}
		b.WriteRune(sparkBars[idx])
	}
	return b.String()
}

// WriteText renders the report as markdown.
func (r ProgressionReport) WriteText(w io.Writer) error {
	var b strings.Builder
	g := r.Genome

	b.WriteString("# Progression Framework\n\n")
	fmt.Fprintf(&b, "Fitness: %.2f (%s)\n", r.Result.Total, r.Quality)
	if spark := Sparkline(r.History); spark != "" {
		fmt.Fprintf(&b, "Recent improvements: %s\n", spark)
	}

	b.WriteString("\n## Insights\n\n")
	for _, line := range r.Insights {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	b.WriteString("\n## Parameters\n\n| parameter | value |\n|---|---|\n")
	for _, p := range genotype.Params() {
		fmt.Fprintf(&b, "| %s | %s |\n", p.Name, formatParam(p, p.Get(g)))
	}

	b.WriteString("\n## Economy\n\n| level | earned | cumulative | after spend | affordable | recommended | purchased | drops | healthy |\n|---|---|---|---|---|---|---|---|---|\n")
	for _, e := range g.Derived.Economy {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %d | %d | %d | %d | %t |\n",
			e.Level,
			humanize.Comma(int64(e.GoldEarned)),
			humanize.Comma(int64(e.CumulativeGold)),
			humanize.Comma(int64(e.GoldAfterSpend)),
			e.AffordableTier, e.RecommendedTier, e.PurchasedTier, e.ItemsDropped, e.ProgressHealthy)
	}

	writeTiers(&b, "Weapons", g.Derived.Weapons)
	writeTiers(&b, "Armor", g.Derived.Armor)

	b.WriteString("\n## Builds\n\n| build | str ratio | def ratio | score | viable |\n|---|---|---|---|---|\n")
	for _, v := range g.Derived.Builds {
		fmt.Fprintf(&b, "| %s | %.2f | %.2f | %.1f | %t |\n", v.Name, v.StrengthRatio, v.DefenseRatio, v.Score, v.Viable)
	}

	b.WriteString("\n## Fitness breakdown\n\n```\n")
	b.WriteString(fitness.Breakdown(r.Result))
	b.WriteString("```\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeTiers(b *strings.Builder, title string, tiers []model.EquipmentTier) {
	fmt.Fprintf(b, "\n## %s\n\n| tier | name | bonus | gain | power increase | cost | unlock level |\n|---|---|---|---|---|---|---|\n", title)
	for _, t := range tiers {
		fmt.Fprintf(b, "| %d | %s | %.1f | %.1f | %.0f%% | %s | %d |\n",
			t.Tier, t.Name, t.Bonus, t.BonusGain, t.PowerIncrease, humanize.Comma(int64(t.Cost)), t.UnlockLevel)
	}
}

func formatParam(p genotype.Param, v float64) string {
	if p.Integer {
		return strconv.Itoa(int(v))
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// WriteCSV renders every table as rows prefixed by the table name.
func (r ProgressionReport) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	g := r.Genome
	rows := [][]string{
		{"table", "key", "c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8"},
		{"summary", "fitness", ftoa(r.Result.Total), r.Quality},
	}
	for _, p := range genotype.Params() {
		rows = append(rows, []string{"parameter", p.Name, formatParam(p, p.Get(g))})
	}
	for _, e := range g.Derived.Economy {
		rows = append(rows, []string{"economy", strconv.Itoa(e.Level),
			strconv.Itoa(e.GoldEarned), strconv.Itoa(e.CumulativeGold), strconv.Itoa(e.GoldAfterSpend),
			strconv.Itoa(e.AffordableTier), strconv.Itoa(e.RecommendedTier), strconv.Itoa(e.PurchasedTier),
			strconv.Itoa(e.ItemsDropped), strconv.FormatBool(e.ProgressHealthy)})
	}
	for _, slot := range []struct {
		name  string
		tiers []model.EquipmentTier
	}{{"weapon", g.Derived.Weapons}, {"armor", g.Derived.Armor}} {
		for _, t := range slot.tiers {
			rows = append(rows, []string{slot.name, strconv.Itoa(t.Tier), t.Name,
				ftoa(t.Bonus), ftoa(t.BonusGain), ftoa(t.PowerIncrease), strconv.Itoa(t.Cost), strconv.Itoa(t.UnlockLevel)})
		}
	}
	for _, m := range r.Result.Metrics {
		rows = append(rows, []string{"metric", m.Name, ftoa(m.Score), ftoa(m.Weight), ftoa(m.WeightedScore), strconv.FormatBool(m.Critical)})
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteProgressionReportFiles writes the markdown and CSV renderings into dir.
func WriteProgressionReportFiles(dir string, report ProgressionReport) error {
	if err := writeWith(filepath.Join(dir, reportTextFile), report.WriteText); err != nil {
		return err
	}
	return writeWith(filepath.Join(dir, reportCSVFile), report.WriteCSV)
}

func writeWith(path string, render func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
