package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true)

	headingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FFFF")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#777777"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	barDone  = lipgloss.Color("#00FF00")
	barEmpty = lipgloss.Color("#333333")
)

func renderBar(step generation.Step) string {
	done := int(step)
	return lipgloss.NewStyle().Foreground(barDone).Render(strings.Repeat("█", done)) +
		lipgloss.NewStyle().Foreground(barEmpty).Render(strings.Repeat("░", generation.TotalSteps-done))
}

// RenderStatus renders one line describing where a run stands.
func RenderStatus(st *generation.Status) string {
	counter := fmt.Sprintf("[%d/%d]", int(st.CurrentStep), st.TotalSteps)

	switch st.Outcome {
	case generation.OutcomeCompleted:
		return fmt.Sprintf("%s %s %s", renderBar(st.CurrentStep), counter, titleStyle.Render("Plan ready"))
	case generation.OutcomeCancelled:
		return warnStyle.Render("Generation was cancelled")
	case generation.OutcomeFailed:
		return fmt.Sprintf("%s %s %s %s", renderBar(st.CurrentStep), counter,
			errorStyle.Render("Failed:"), st.ErrorMessage)
	}

	line := fmt.Sprintf("%s %s %s", renderBar(st.CurrentStep), counter, st.StepMessage)
	if st.EstimatedSecondsRemaining > 0 {
		line += mutedStyle.Render(fmt.Sprintf(" (~%s left)", time.Duration(st.EstimatedSecondsRemaining)*time.Second))
	}
	if st.Stale {
		line += " " + warnStyle.Render("stale: no progress recently")
	}
	return line
}

// RenderPlan renders a finished plan for the terminal.
func RenderPlan(acc *plan.Accumulated) string {
	var sections []string

	if t := acc.NutritionData; t != nil {
		sections = append(sections, boxStyle.Render(fmt.Sprintf("%s\n%d kcal · protein %dg · carbs %dg · fat %dg · water %s ml",
			headingStyle.Render("Daily targets"), t.Calories, t.Protein, t.Carbs, t.Fat, humanize.Comma(int64(t.WaterMl)))))
	}

	if w := acc.WorkoutPlan; w != nil {
		var sb strings.Builder
		sb.WriteString(headingStyle.Render("Training"))
		for _, d := range w.Days {
			if d.RestDay {
				fmt.Fprintf(&sb, "\n%-10s %s", d.Day, mutedStyle.Render("rest"))
				continue
			}
			fmt.Fprintf(&sb, "\n%-10s %s (%d min)", d.Day, d.Focus, d.DurationMinutes)
			for _, e := range d.Exercises {
				fmt.Fprintf(&sb, "\n           - %s %dx%s", e.Name, e.Sets, e.Reps)
			}
		}
		if w.Notes != "" {
			sb.WriteString("\n" + mutedStyle.Render(w.Notes))
		}
		sections = append(sections, sb.String())
	}

	if m := acc.MealPlan; m != nil {
		var sb strings.Builder
		sb.WriteString(headingStyle.Render("Meals"))
		for _, d := range m.Days {
			if d.Missing {
				fmt.Fprintf(&sb, "\n%-10s %s", d.Day, warnStyle.Render(d.Diagnostic))
				continue
			}
			fmt.Fprintf(&sb, "\n%-10s %.0f kcal", d.Day, d.Totals.Calories)
			for _, meal := range d.Meals {
				fmt.Fprintf(&sb, "\n           - %s: %s", meal.Type, meal.Name)
			}
		}
		sections = append(sections, sb.String())
	}

	if l := acc.ShoppingList; l != nil {
		var sb strings.Builder
		sb.WriteString(headingStyle.Render("Shopping list"))
		if l.Store != "" {
			sb.WriteString(mutedStyle.Render(" @ " + l.Store))
		}
		categories := make([]string, 0, len(l.Categories))
		for c := range l.Categories {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			fmt.Fprintf(&sb, "\n%s", titleStyle.Render(c))
			for _, item := range l.Categories[c] {
				marker := ""
				if item.PriceEstimated {
					marker = "*"
				}
				fmt.Fprintf(&sb, "\n  - %s (%s %s) %.2f%s", item.Name, humanize.Ftoa(item.Quantity), item.Unit, item.EstimatedPrice, marker)
			}
		}
		fmt.Fprintf(&sb, "\nTotal: %.2f", l.TotalEstimatedCost)
		if l.Budget > 0 {
			fmt.Fprintf(&sb, " / budget %.2f", l.Budget)
		}
		if l.OverBudget {
			sb.WriteString(" " + errorStyle.Render("over budget"))
		}
		sections = append(sections, sb.String())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// RenderHistory lists stored plans, newest first.
func RenderHistory(plans []planner.Plan, now time.Time) string {
	if len(plans) == 0 {
		return mutedStyle.Render("No plans yet.")
	}
	var sb strings.Builder
	sb.WriteString(headingStyle.Render("Plans"))
	for _, p := range plans {
		active := ""
		if p.Active {
			active = titleStyle.Render(" active")
		}
		fmt.Fprintf(&sb, "\n%s  %s%s", p.ID, mutedStyle.Render(humanize.RelTime(p.CreatedAt, now, "ago", "from now")), active)
	}
	return sb.String()
}
