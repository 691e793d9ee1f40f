package services

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"bizdash/internal/core"
	"bizdash/internal/pipeline"
)

// OverviewService builds the landing page summary from four tables fetched
// concurrently.
type OverviewService struct {
	Projects *DatasetService[core.Project]
	Expenses *DatasetService[core.Expense]
	Income   *DatasetService[core.Income]
	Payroll  *DatasetService[core.Payroll]
}

// Overview totals income, expenses and payroll per month for years. With no
// years given every year present in the data is used.
func (s *OverviewService) Overview(ctx context.Context, years []int) (core.Overview, error) {
	var (
		projects Dataset[core.Project]
		expenses Dataset[core.Expense]
		income   Dataset[core.Income]
		payroll  Dataset[core.Payroll]
	)
	// A table that fails to load but has older data contributes that data.
	var stale [4]bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { projects, stale[0], err = s.Projects.GetOrCurrent(gctx); return })
	g.Go(func() (err error) { expenses, stale[1], err = s.Expenses.GetOrCurrent(gctx); return })
	g.Go(func() (err error) { income, stale[2], err = s.Income.GetOrCurrent(gctx); return })
	g.Go(func() (err error) { payroll, stale[3], err = s.Payroll.GetOrCurrent(gctx); return })
	if err := g.Wait(); err != nil {
		return core.Overview{}, err
	}

	available := slices.Concat(
		yearsOf(expenses.Records, core.FieldDate),
		yearsOf(income.Records, core.FieldDate),
		yearsOf(payroll.Records, core.FieldPeriod))
	slices.Sort(available)
	available = slices.Compact(available)
	if len(years) == 0 {
		years = available
	}
	ov := buildOverview(years, projects.Records, expenses.Records, income.Records, payroll.Records)
	ov.Available = available
	ov.Stale = slices.Contains(stale[:], true)
	return ov, nil
}

func buildOverview(years []int, projects []core.Project, expenses []core.Expense, income []core.Income, payroll []core.Payroll) core.Overview {
	ex := pipeline.AggregateByMonth(expenses, core.FieldDate, core.FieldAmount, years)
	in := pipeline.AggregateByMonth(income, core.FieldDate, core.FieldRevenue, years)
	pay := pipeline.AggregateByMonth(payroll, core.FieldPeriod, core.FieldNetPay, years)

	ov := core.Overview{Years: years, ProjectCount: len(projects)}
	for i := range ex {
		m := core.MonthTotals{
			Label:    ex[i].Label,
			Expenses: ex[i].TotalAmount,
			Income:   in[i].TotalAmount,
			Payroll:  pay[i].TotalAmount,
		}
		ov.Months = append(ov.Months, m)
	}
	ov.TotalExpenses = sumGroups(ex)
	ov.TotalIncome = sumGroups(in)
	ov.TotalPayroll = sumGroups(pay)
	for _, p := range projects {
		if isActiveStatus(p.Status) {
			ov.ActiveCount++
		}
	}
	return ov
}

func sumGroups(g pipeline.GroupStats) float64 {
	vals := make([]float64, len(g))
	for i, grp := range g {
		vals[i] = grp.TotalAmount
	}
	return core.SumAmounts(vals...)
}

func isActiveStatus(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "in progress", "ongoing", "open":
		return true
	}
	return false
}

func yearsOf[R core.Fielder](recs []R, field string) []int {
	var years []int
	for _, r := range recs {
		if v := r.Field(field); v.Kind() == core.KindDate {
			years = append(years, v.Time().Year())
		}
	}
	return years
}
