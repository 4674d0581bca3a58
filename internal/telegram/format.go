package telegram

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/plan"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

func progressBar(step generation.Step) string {
	done := int(step)
	return strings.Repeat("▓", done) + strings.Repeat("░", generation.TotalSteps-done)
}

// formatStatus renders a run status as a progress message.
func formatStatus(st *generation.Status) string {
	var sb strings.Builder

	switch {
	case st.Outcome == generation.OutcomeCompleted:
		sb.WriteString("✅ *Your plan is ready!*\n")
		sb.WriteString(progressBar(st.CurrentStep))
		return sb.String()
	case st.Outcome == generation.OutcomeCancelled:
		return "🛑 *Plan generation was cancelled.*"
	case st.Outcome == generation.OutcomeFailed:
		fmt.Fprintf(&sb, "❌ *Generation failed at step %d/%d*\n", int(st.CurrentStep)+1, st.TotalSteps)
		fmt.Fprintf(&sb, "```\n%s\n```\n", strings.ReplaceAll(st.ErrorMessage, "`", "'"))
		sb.WriteString("Your progress is saved. Tap Retry or send /retry.")
		return sb.String()
	}

	fmt.Fprintf(&sb, "⏳ *Step %d/%d*: %s\n", int(st.CurrentStep)+1, st.TotalSteps, escape(st.StepMessage))
	sb.WriteString(progressBar(st.CurrentStep))
	if st.EstimatedSecondsRemaining > 0 {
		now := time.Now()
		eta := now.Add(time.Duration(st.EstimatedSecondsRemaining) * time.Second)
		fmt.Fprintf(&sb, "\n_about %s_", humanize.RelTime(now, eta, "left", ""))
	}
	if st.Stale {
		sb.WriteString("\n\n⚠️ No progress for a while. Send /cancel and start again.")
	}
	return sb.String()
}

// formatPlanMarkdownParts renders a finished plan as two messages: the plan
// itself and the shopping list.
func formatPlanMarkdownParts(acc *plan.Accumulated) (string, string) {
	var pb strings.Builder
	pb.WriteString("🏋️ *Your Weekly Plan*\n\n")

	if t := acc.NutritionData; t != nil {
		fmt.Fprintf(&pb, "🎯 *Daily targets*: %d kcal · P %dg · C %dg · F %dg · 💧 %.1f L\n\n",
			t.Calories, t.Protein, t.Carbs, t.Fat, float64(t.WaterMl)/1000)
	}

	if w := acc.WorkoutPlan; w != nil {
		pb.WriteString("*Training*\n")
		for _, d := range w.Days {
			if d.RestDay || len(d.Exercises) == 0 {
				fmt.Fprintf(&pb, "*%s*: rest\n", d.Day)
				continue
			}
			var ex []string
			for _, e := range d.Exercises {
				ex = append(ex, fmt.Sprintf("%s %d×%s", escape(e.Name), e.Sets, escape(e.Reps)))
			}
			fmt.Fprintf(&pb, "*%s*: %s", d.Day, escape(d.Focus))
			if d.DurationMinutes > 0 {
				fmt.Fprintf(&pb, " (%d min)", d.DurationMinutes)
			}
			fmt.Fprintf(&pb, "\n%s\n", strings.Join(ex, ", "))
		}
		if w.Notes != "" {
			fmt.Fprintf(&pb, "_%s_\n", escape(w.Notes))
		}
		pb.WriteString("\n")
	}

	if m := acc.MealPlan; m != nil {
		pb.WriteString("*Meals*\n")
		for _, d := range m.Days {
			if d.Missing {
				fmt.Fprintf(&pb, "*%s*: _%s_\n", d.Day, escape(d.Diagnostic))
				continue
			}
			var names []string
			for _, meal := range d.Meals {
				names = append(names, escape(meal.Name))
			}
			fmt.Fprintf(&pb, "*%s* (%.0f kcal): %s\n", d.Day, d.Totals.Calories, strings.Join(names, ", "))
		}
	}

	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List*\n")
	if l := acc.ShoppingList; l != nil {
		if l.Store != "" {
			fmt.Fprintf(&sb, "_%s_\n", escape(l.Store))
		}
		categories := make([]string, 0, len(l.Categories))
		for c := range l.Categories {
			categories = append(categories, c)
		}
		sort.Strings(categories)

		for _, c := range categories {
			fmt.Fprintf(&sb, "\n*%s*\n", escape(title(c)))
			for _, item := range l.Categories[c] {
				fmt.Fprintf(&sb, "• %s (%s %s) ~ %.2f", escape(item.Name), humanize.Ftoa(item.Quantity), escape(item.Unit), item.EstimatedPrice)
				if item.PriceEstimated {
					sb.WriteString("*")
				}
				sb.WriteString("\n")
			}
		}

		fmt.Fprintf(&sb, "\n💰 *Estimated total*: %.2f", l.TotalEstimatedCost)
		if l.Budget > 0 {
			fmt.Fprintf(&sb, " (budget %.2f)", l.Budget)
		}
		if l.OverBudget {
			sb.WriteString("\n⚠️ Over budget")
		}
	}

	return pb.String(), sb.String()
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
