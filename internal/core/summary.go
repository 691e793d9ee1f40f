package core

// MonthTotals is one month of the overview: income against expenses.
type MonthTotals struct {
	Label    string
	Income   float64
	Expenses float64
	Payroll  float64
}

// Net is income minus expenses and payroll.
func (m MonthTotals) Net() float64 {
	return SumAmounts(m.Income, -m.Expenses, -m.Payroll)
}

// Overview is the dashboard landing summary for a set of selected years.
// Available lists every year present in the data.
type Overview struct {
	Years         []int
	Available     []int
	Months        []MonthTotals
	TotalIncome   float64
	TotalExpenses float64
	TotalPayroll  float64
	ProjectCount  int
	ActiveCount   int
	// Stale is set when some table could not be reloaded and older data is used.
	Stale         bool
}

// Net is the overall balance across the selected years.
func (o Overview) Net() float64 {
	return SumAmounts(o.TotalIncome, -o.TotalExpenses, -o.TotalPayroll)
}
