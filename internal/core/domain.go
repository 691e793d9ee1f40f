package core

import (
	"errors"
	"strings"
	"time"
)

// Field keys shared by page records.
const (
	FieldID            = "id"
	FieldDate          = "date"
	FieldDescription   = "description"
	FieldCategory      = "category"
	FieldProject       = "project"
	FieldPaidBy        = "paid_by"
	FieldAmount        = "amount"
	FieldMonth         = "month"
	FieldYear          = "year"
	FieldCustomer      = "customer"
	FieldContractValue = "contract_value"
	FieldExtraRevenue  = "extra_revenue"
	FieldRevenue       = "revenue"
	FieldCode          = "code"
	FieldName          = "name"
	FieldRegion        = "region"
	FieldStatus        = "status"
	FieldManager       = "manager"
	FieldBudget        = "budget"
	FieldStartDate     = "start_date"
	FieldEndDate       = "end_date"
	FieldEmployee      = "employee"
	FieldDepartment    = "department"
	FieldPeriod        = "period"
	FieldBaseSalary    = "base_salary"
	FieldAllowance     = "allowance"
	FieldBonus         = "bonus"
	FieldDeductions    = "deductions"
	FieldNetPay        = "net_pay"
	FieldUsername      = "username"
	FieldFullName      = "full_name"
	FieldEmail         = "email"
	FieldRole          = "role"
	FieldCreatedAt     = "created_at"
	FieldActive        = "active"
	FieldPassword      = "password"
)

const maxDescriptionLen = 200

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyCustomer      = errors.New("empty customer")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyEmployee      = errors.New("empty employee")
	ErrEndBeforeStart     = errors.New("end date must not be before start date")
	ErrMissingID          = errors.New("missing record id")
)

type (
	// Project is a row of the Projects table.
	Project struct {
		ID        string
		Code      string
		Name      string
		Customer  string
		Region    string
		Status    string
		Manager   string
		Budget    float64
		StartDate *time.Time
		EndDate   *time.Time
	}

	// Expense is a row of the Expenses table.
	Expense struct {
		ID          string
		Date        *time.Time
		Description string
		Category    string
		Project     string
		PaidBy      string
		Amount      float64
	}

	// Income is a row of the Income table. Revenue is derived.
	Income struct {
		ID            string
		Date          *time.Time
		Description   string
		Customer      string
		Project       string
		ContractValue float64
		ExtraRevenue  float64
		Revenue       float64
	}

	// Payroll is a row of the Payroll table. NetPay is derived.
	Payroll struct {
		ID         string
		Employee   string
		Department string
		Period     *time.Time
		BaseSalary float64
		Allowance  float64
		Bonus      float64
		Deductions float64
		NetPay     float64
	}

	// User is a row of the Users table.
	User struct {
		ID         string
		Username   string
		FullName   string
		Email      string
		Role       string
		Department string
		CreatedAt  *time.Time
		Active     bool
		Password   string
	}
)

func monthOf(t *time.Time) Value {
	if t == nil {
		return Null()
	}
	return Number(float64(t.Month()))
}

func yearOf(t *time.Time) Value {
	if t == nil {
		return Null()
	}
	return Number(float64(t.Year()))
}

func (p Project) Field(key string) Value {
	switch key {
	case FieldID:
		return Text(p.ID)
	case FieldCode:
		return Text(p.Code)
	case FieldName:
		return Text(p.Name)
	case FieldCustomer:
		return Text(p.Customer)
	case FieldRegion:
		return Text(p.Region)
	case FieldStatus:
		return Text(p.Status)
	case FieldManager:
		return Text(p.Manager)
	case FieldBudget:
		return Number(p.Budget)
	case FieldStartDate:
		return DateOf(p.StartDate)
	case FieldEndDate:
		return DateOf(p.EndDate)
	case FieldYear:
		return yearOf(p.StartDate)
	}
	return Null()
}

func (e Expense) Field(key string) Value {
	switch key {
	case FieldID:
		return Text(e.ID)
	case FieldDate:
		return DateOf(e.Date)
	case FieldDescription:
		return Text(e.Description)
	case FieldCategory:
		return Text(e.Category)
	case FieldProject:
		return Text(e.Project)
	case FieldPaidBy:
		return Text(e.PaidBy)
	case FieldAmount:
		return Number(e.Amount)
	case FieldMonth:
		return monthOf(e.Date)
	case FieldYear:
		return yearOf(e.Date)
	}
	return Null()
}

func (i Income) Field(key string) Value {
	switch key {
	case FieldID:
		return Text(i.ID)
	case FieldDate:
		return DateOf(i.Date)
	case FieldDescription:
		return Text(i.Description)
	case FieldCustomer:
		return Text(i.Customer)
	case FieldProject:
		return Text(i.Project)
	case FieldContractValue:
		return Number(i.ContractValue)
	case FieldExtraRevenue:
		return Number(i.ExtraRevenue)
	case FieldRevenue:
		return Number(i.Revenue)
	case FieldMonth:
		return monthOf(i.Date)
	case FieldYear:
		return yearOf(i.Date)
	}
	return Null()
}

func (p Payroll) Field(key string) Value {
	switch key {
	case FieldID:
		return Text(p.ID)
	case FieldEmployee:
		return Text(p.Employee)
	case FieldDepartment:
		return Text(p.Department)
	case FieldPeriod:
		return DateOf(p.Period)
	case FieldBaseSalary:
		return Number(p.BaseSalary)
	case FieldAllowance:
		return Number(p.Allowance)
	case FieldBonus:
		return Number(p.Bonus)
	case FieldDeductions:
		return Number(p.Deductions)
	case FieldNetPay:
		return Number(p.NetPay)
	case FieldMonth:
		return monthOf(p.Period)
	case FieldYear:
		return yearOf(p.Period)
	}
	return Null()
}

// Field never exposes the password.
func (u User) Field(key string) Value {
	switch key {
	case FieldID:
		return Text(u.ID)
	case FieldUsername:
		return Text(u.Username)
	case FieldFullName:
		return Text(u.FullName)
	case FieldEmail:
		return Text(u.Email)
	case FieldRole:
		return Text(u.Role)
	case FieldDepartment:
		return Text(u.Department)
	case FieldCreatedAt:
		return DateOf(u.CreatedAt)
	case FieldActive:
		return Bool(u.Active)
	case FieldYear:
		return yearOf(u.CreatedAt)
	}
	return Null()
}

func validateDescription(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyDescription
	}
	if len(s) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (e Expense) Validate() error {
	if e.Date == nil {
		return ErrInvalidDate
	}
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (i Income) Validate() error {
	if i.Date == nil {
		return ErrInvalidDate
	}
	if strings.TrimSpace(i.Customer) == "" {
		return ErrEmptyCustomer
	}
	if i.ContractValue < 0 || i.ExtraRevenue < 0 || i.ContractValue+i.ExtraRevenue <= 0 {
		return ErrInvalidAmount
	}
	if i.Description != "" && len(i.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(p.Customer) == "" {
		return ErrEmptyCustomer
	}
	if p.Budget < 0 {
		return ErrInvalidAmount
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return ErrEndBeforeStart
	}
	return nil
}

func (p Payroll) Validate() error {
	if strings.TrimSpace(p.Employee) == "" {
		return ErrEmptyEmployee
	}
	if p.Period == nil {
		return ErrInvalidDate
	}
	if p.BaseSalary < 0 || p.Allowance < 0 || p.Bonus < 0 || p.Deductions < 0 {
		return ErrInvalidAmount
	}
	return nil
}
