package services

import (
	"context"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
)

// ProgressReader is the read side of the local progress cache.
type ProgressReader interface {
	Read(ctx context.Context, category models.SkillCategory) models.ItemSet
}

// DefaultTotals is the number of practice items per skill: one per question
// of a listening or reading test, the two writing tasks and the three
// speaking parts.
var DefaultTotals = map[models.SkillCategory]int{
	models.SkillListening: 40,
	models.SkillReading:   40,
	models.SkillWriting:   2,
	models.SkillSpeaking:  3,
}

type SkillProgress struct {
	Category  models.SkillCategory
	Completed int
	Total     int
	Ratio     float64
}

type ProgressSummary struct {
	Skills []SkillProgress
	// Completed counts items up to each skill's total.
	Completed int
	Total     int
	Ratio     float64
}

// ProgressAggregator turns cached completion sets into ratios for display.
type ProgressAggregator struct {
	cache  ProgressReader
	totals map[models.SkillCategory]int
}

// NewProgressAggregator uses DefaultTotals when totals is nil.
func NewProgressAggregator(cache ProgressReader, totals map[models.SkillCategory]int) *ProgressAggregator {
	if totals == nil {
		totals = DefaultTotals
	}
	return &ProgressAggregator{cache: cache, totals: totals}
}

// Skill computes the progress of one category. The ratio is capped at 1 and
// is 0 for a category without items.
func (a *ProgressAggregator) Skill(ctx context.Context, category models.SkillCategory) SkillProgress {
	done := a.cache.Read(ctx, category).Len()
	total := a.totals[category]
	return SkillProgress{
		Category:  category,
		Completed: done,
		Total:     total,
		Ratio:     ratio(done, total),
	}
}

func (a *ProgressAggregator) Summary(ctx context.Context) ProgressSummary {
	var sum ProgressSummary
	for _, c := range models.SkillCategories {
		sp := a.Skill(ctx, c)
		sum.Skills = append(sum.Skills, sp)
		sum.Completed += min(sp.Completed, sp.Total)
		sum.Total += sp.Total
	}
	sum.Ratio = ratio(sum.Completed, sum.Total)
	return sum
}

func ratio(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	r := float64(done) / float64(total)
	if r > 1 {
		return 1
	}
	return r
}
