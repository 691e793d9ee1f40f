package pipeline

import (
	"time"

	"bizdash/internal/core"
)

func day0(y, m, d int) *time.Time {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return &t
}

func expense(id string, date *time.Time, category string, amount float64) core.Expense {
	return core.Expense{ID: id, Date: date, Category: category, Description: "item " + id, Amount: amount}
}

func ids(records []core.Expense) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

// valueRec exposes a single arbitrary value under the key "v".
type valueRec struct {
	id string
	v  core.Value
}

func (r valueRec) Field(key string) core.Value {
	switch key {
	case "v":
		return r.v
	case "id":
		return core.Text(r.id)
	}
	return core.Null()
}

func sampleExpenses() []core.Expense {
	return []core.Expense{
		{ID: "1", Date: day0(2024, 1, 10), Description: "Fuel card", Category: "Travel", Project: "North Road", PaidBy: "Anna", Amount: 120},
		{ID: "2", Date: day0(2024, 3, 5), Description: "Cement", Category: "Materials", Project: "Bridge", PaidBy: "Luca", Amount: 5000},
		{ID: "3", Date: nil, Description: "Unknown receipt", Category: "", Project: "Bridge", Amount: 15},
		{ID: "4", Date: day0(2023, 12, 31), Description: "Hotel", Category: "Travel", Project: "North Road", PaidBy: "Anna", Amount: 300},
		{ID: "5", Date: day0(2024, 1, 31), Description: "Steel beams", Category: "Materials", Project: "Bridge", PaidBy: "Marta", Amount: 8000},
		{ID: "6", Date: day0(2024, 7, 1), Description: "Team lunch", Category: "Meals", Project: "", PaidBy: "Anna", Amount: 80},
	}
}
