package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
)

const barWidth = 20

// ShowProgress prints completion per skill and overall.
func (a *App) ShowProgress(ctx context.Context) error {
	sum := a.core.Progress.Summary(ctx)
	for _, s := range sum.Skills {
		a.printf("%-10s %s %3d/%-3d %5.1f%%\n", s.Category, bar(s.Ratio), s.Completed, s.Total, s.Ratio*100)
	}
	a.printf("%-10s %s %3d/%-3d %5.1f%%\n", "overall", bar(sum.Ratio), sum.Completed, sum.Total, sum.Ratio*100)
	return nil
}

// Complete marks a practice item of a skill as done.
//
//	complete listening q12
func (a *App) Complete(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: complete <skill> <item>")
	}
	category, err := models.ParseSkillCategory(args[0])
	if err != nil {
		return err
	}
	if err := a.progress.Mark(ctx, category, args[1]); err != nil {
		return err
	}

	s := a.core.Progress.Skill(ctx, category)
	a.printf("%s: %d/%d done\n", category, s.Completed, s.Total)
	return nil
}

// ResetProgress forgets every completed item.
func (a *App) ResetProgress(ctx context.Context) error {
	answer, err := getSimpleText(a.reader, "Forget all local progress? [y/N]", a.out)
	if err != nil {
		return err
	}
	if ans := strings.ToLower(answer); ans != "y" && ans != "yes" {
		return nil
	}
	if err := a.progress.Clear(ctx); err != nil {
		return err
	}
	a.println("Progress cleared")
	return nil
}

func bar(ratio float64) string {
	filled := int(ratio*barWidth + 0.5)
	filled = max(0, min(filled, barWidth))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}
