package core

import "time"

func idOf(r Row) string {
	return ParseString(r.Lookup(FieldID, "row_id", "_RowNumber"))
}

func NormalizeProject(r Row) Project {
	return Project{
		ID:        idOf(r),
		Code:      ParseString(r.Lookup(FieldCode, "project_code")),
		Name:      ParseString(r.Lookup(FieldName, "project_name")),
		Customer:  ParseString(r.Lookup(FieldCustomer, "client")),
		Region:    ParseString(r.Lookup(FieldRegion)),
		Status:    ParseString(r.Lookup(FieldStatus)),
		Manager:   ParseString(r.Lookup(FieldManager, "project_manager")),
		Budget:    ParseNumber(r.Lookup(FieldBudget, "contract_value")),
		StartDate: ParseDate(r.Lookup(FieldStartDate)),
		EndDate:   ParseDate(r.Lookup(FieldEndDate)),
	}
}

func NormalizeExpense(r Row) Expense {
	return Expense{
		ID:          idOf(r),
		Date:        ParseDate(r.Lookup(FieldDate, "expense_date")),
		Description: ParseString(r.Lookup(FieldDescription, "content")),
		Category:    ParseString(r.Lookup(FieldCategory, "expense_type")),
		Project:     ParseString(r.Lookup(FieldProject, "project_name")),
		PaidBy:      ParseString(r.Lookup(FieldPaidBy, "payer")),
		Amount:      ParseNumber(r.Lookup(FieldAmount)),
	}
}

func NormalizeIncome(r Row) Income {
	in := Income{
		ID:            idOf(r),
		Date:          ParseDate(r.Lookup(FieldDate, "income_date")),
		Description:   ParseString(r.Lookup(FieldDescription, "content")),
		Customer:      ParseString(r.Lookup(FieldCustomer, "client")),
		Project:       ParseString(r.Lookup(FieldProject, "project_name")),
		ContractValue: ParseNumber(r.Lookup(FieldContractValue)),
		ExtraRevenue:  ParseNumber(r.Lookup(FieldExtraRevenue, "additional_revenue")),
	}
	in.Revenue = in.ContractValue + in.ExtraRevenue
	return in
}

func NormalizePayroll(r Row) Payroll {
	p := Payroll{
		ID:         idOf(r),
		Employee:   ParseString(r.Lookup(FieldEmployee, "employee_name")),
		Department: ParseString(r.Lookup(FieldDepartment)),
		Period:     ParseDate(r.Lookup(FieldPeriod, "pay_date")),
		BaseSalary: ParseNumber(r.Lookup(FieldBaseSalary, "salary")),
		Allowance:  ParseNumber(r.Lookup(FieldAllowance)),
		Bonus:      ParseNumber(r.Lookup(FieldBonus)),
		Deductions: ParseNumber(r.Lookup(FieldDeductions)),
	}
	p.NetPay = p.BaseSalary + p.Allowance + p.Bonus - p.Deductions
	return p
}

func NormalizeUser(r Row) User {
	return User{
		ID:         idOf(r),
		Username:   ParseString(r.Lookup(FieldUsername, "login")),
		FullName:   ParseString(r.Lookup(FieldFullName, "name")),
		Email:      ParseString(r.Lookup(FieldEmail)),
		Role:       ParseString(r.Lookup(FieldRole)),
		Department: ParseString(r.Lookup(FieldDepartment)),
		CreatedAt:  ParseDate(r.Lookup(FieldCreatedAt)),
		Active:     ParseBool(r.Lookup(FieldActive)),
		Password:   ParseString(r.Lookup(FieldPassword)),
	}
}

func formatDate(t *time.Time) any {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

func withID(row Row, id string) Row {
	if id != "" {
		row[FieldID] = id
	}
	return row
}

// ToRow converts the record to the payload sent on Add and Edit.
func (p Project) ToRow() Row {
	return withID(Row{
		FieldCode:      p.Code,
		FieldName:      p.Name,
		FieldCustomer:  p.Customer,
		FieldRegion:    p.Region,
		FieldStatus:    p.Status,
		FieldManager:   p.Manager,
		FieldBudget:    p.Budget,
		FieldStartDate: formatDate(p.StartDate),
		FieldEndDate:   formatDate(p.EndDate),
	}, p.ID)
}

func (e Expense) ToRow() Row {
	return withID(Row{
		FieldDate:        formatDate(e.Date),
		FieldDescription: e.Description,
		FieldCategory:    e.Category,
		FieldProject:     e.Project,
		FieldPaidBy:      e.PaidBy,
		FieldAmount:      e.Amount,
	}, e.ID)
}

// Derived revenue is recomputed on read and never sent.
func (i Income) ToRow() Row {
	return withID(Row{
		FieldDate:          formatDate(i.Date),
		FieldDescription:   i.Description,
		FieldCustomer:      i.Customer,
		FieldProject:       i.Project,
		FieldContractValue: i.ContractValue,
		FieldExtraRevenue:  i.ExtraRevenue,
	}, i.ID)
}

func (p Payroll) ToRow() Row {
	return withID(Row{
		FieldEmployee:   p.Employee,
		FieldDepartment: p.Department,
		FieldPeriod:     formatDate(p.Period),
		FieldBaseSalary: p.BaseSalary,
		FieldAllowance:  p.Allowance,
		FieldBonus:      p.Bonus,
		FieldDeductions: p.Deductions,
	}, p.ID)
}
