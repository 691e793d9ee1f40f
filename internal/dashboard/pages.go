package dashboard

import (
	"fmt"
	"time"

	"golang.org/x/text/language"

	"bizdash/internal/core"
	"bizdash/internal/log"
	"bizdash/internal/pipeline"
	"bizdash/internal/records"
	"bizdash/internal/services"
)

// Page slugs.
const (
	SlugProjects = "projects"
	SlugExpenses = "expenses"
	SlugIncome   = "income"
	SlugPayroll  = "payroll"
	SlugUsers    = "users"
)

func monthGroup(field string) GroupOption {
	return GroupOption{Mode: pipeline.GroupByMonth, Field: field, Label: "Month"}
}

func categoryGroup(field, label string) GroupOption {
	return GroupOption{Mode: pipeline.GroupByCategory, Field: field, Label: label}
}

var ProjectsMeta = Meta{
	Slug:  SlugProjects,
	Title: "Projects",
	Table: records.TableProjects,
	Columns: []pipeline.Column{
		{Key: core.FieldCode, Label: "Code", Sortable: true},
		{Key: core.FieldName, Label: "Name", Sortable: true},
		{Key: core.FieldCustomer, Label: "Customer", Sortable: true},
		{Key: core.FieldRegion, Label: "Region", Sortable: true},
		{Key: core.FieldStatus, Label: "Status", Sortable: true},
		{Key: core.FieldManager, Label: "Manager"},
		{Key: core.FieldBudget, Label: "Budget", Format: pipeline.FormatShort, Sortable: true},
		{Key: core.FieldStartDate, Label: "Start", Format: pipeline.FormatDate, Sortable: true},
		{Key: core.FieldEndDate, Label: "End", Format: pipeline.FormatDate, Sortable: true},
	},
	SearchFields: []string{core.FieldCode, core.FieldName, core.FieldCustomer, core.FieldManager},
	Selects: []Select{
		{Field: core.FieldRegion, Label: "Region"},
		{Field: core.FieldCustomer, Label: "Customer"},
	},
	Toggles: []Toggle{
		{Field: core.FieldStatus, Label: "Status", Options: []string{"Active", "Completed", "On hold", "Cancelled"}},
	},
	DateField:   core.FieldStartDate,
	AmountField: core.FieldBudget,
	RangeField:  core.FieldBudget,
	Ranges:      pipeline.BudgetRanges,
	Groupings: []GroupOption{
		{Mode: pipeline.GroupByRange, Field: core.FieldBudget, Label: "Budget range"},
		categoryGroup(core.FieldRegion, "Region"),
		categoryGroup(core.FieldStatus, "Status"),
		monthGroup(core.FieldStartDate),
	},
	DefaultSort: pipeline.SortSpec{Field: core.FieldStartDate, Direction: pipeline.Desc},
	Form:        "projects",
}

var ExpensesMeta = Meta{
	Slug:  SlugExpenses,
	Title: "Expenses",
	Table: records.TableExpenses,
	Columns: []pipeline.Column{
		{Key: core.FieldDate, Label: "Date", Format: pipeline.FormatDate, Sortable: true},
		{Key: core.FieldDescription, Label: "Description", Sortable: true},
		{Key: core.FieldCategory, Label: "Category", Sortable: true},
		{Key: core.FieldProject, Label: "Project", Sortable: true},
		{Key: core.FieldPaidBy, Label: "Paid by", Sortable: true},
		{Key: core.FieldAmount, Label: "Amount", Format: pipeline.FormatMoney, Sortable: true},
	},
	SearchFields: []string{core.FieldDescription, core.FieldCategory, core.FieldProject, core.FieldPaidBy},
	Selects: []Select{
		{Field: core.FieldCategory, Label: "Category"},
		{Field: core.FieldProject, Label: "Project"},
		{Field: core.FieldPaidBy, Label: "Paid by"},
	},
	DateField:   core.FieldDate,
	AmountField: core.FieldAmount,
	Groupings: []GroupOption{
		monthGroup(core.FieldDate),
		categoryGroup(core.FieldCategory, "Category"),
		categoryGroup(core.FieldProject, "Project"),
	},
	DefaultSort: pipeline.SortSpec{Field: core.FieldDate, Direction: pipeline.Desc},
	Form:        "expenses",
}

var IncomeMeta = Meta{
	Slug:  SlugIncome,
	Title: "Income",
	Table: records.TableIncome,
	Columns: []pipeline.Column{
		{Key: core.FieldDate, Label: "Date", Format: pipeline.FormatDate, Sortable: true},
		{Key: core.FieldDescription, Label: "Description"},
		{Key: core.FieldCustomer, Label: "Customer", Sortable: true},
		{Key: core.FieldProject, Label: "Project", Sortable: true},
		{Key: core.FieldContractValue, Label: "Contract", Format: pipeline.FormatMoney, Sortable: true},
		{Key: core.FieldExtraRevenue, Label: "Extra", Format: pipeline.FormatMoney, Sortable: true},
		{Key: core.FieldRevenue, Label: "Revenue", Format: pipeline.FormatMoney, Sortable: true},
	},
	SearchFields: []string{core.FieldDescription, core.FieldCustomer, core.FieldProject},
	Selects: []Select{
		{Field: core.FieldCustomer, Label: "Customer"},
		{Field: core.FieldProject, Label: "Project"},
	},
	DateField:   core.FieldDate,
	AmountField: core.FieldRevenue,
	Groupings: []GroupOption{
		monthGroup(core.FieldDate),
		categoryGroup(core.FieldCustomer, "Customer"),
		categoryGroup(core.FieldProject, "Project"),
	},
	DefaultSort: pipeline.SortSpec{Field: core.FieldDate, Direction: pipeline.Desc},
	Form:        "income",
}

var PayrollMeta = Meta{
	Slug:  SlugPayroll,
	Title: "Payroll",
	Table: records.TablePayroll,
	Columns: []pipeline.Column{
		{Key: core.FieldPeriod, Label: "Period", Format: pipeline.FormatDate, Sortable: true},
		{Key: core.FieldEmployee, Label: "Employee", Sortable: true},
		{Key: core.FieldDepartment, Label: "Department", Sortable: true},
		{Key: core.FieldBaseSalary, Label: "Base", Format: pipeline.FormatMoney, Sortable: true},
		{Key: core.FieldAllowance, Label: "Allowance", Format: pipeline.FormatMoney},
		{Key: core.FieldBonus, Label: "Bonus", Format: pipeline.FormatMoney},
		{Key: core.FieldDeductions, Label: "Deductions", Format: pipeline.FormatMoney},
		{Key: core.FieldNetPay, Label: "Net pay", Format: pipeline.FormatMoney, Sortable: true},
	},
	SearchFields: []string{core.FieldEmployee, core.FieldDepartment},
	Selects: []Select{
		{Field: core.FieldDepartment, Label: "Department"},
	},
	DateField:   core.FieldPeriod,
	AmountField: core.FieldNetPay,
	Groupings: []GroupOption{
		monthGroup(core.FieldPeriod),
		categoryGroup(core.FieldDepartment, "Department"),
	},
	DefaultSort: pipeline.SortSpec{Field: core.FieldPeriod, Direction: pipeline.Desc},
	Form:        "payroll",
}

var UsersMeta = Meta{
	Slug:  SlugUsers,
	Title: "Users",
	Table: records.TableUsers,
	Columns: []pipeline.Column{
		{Key: core.FieldUsername, Label: "Username", Sortable: true},
		{Key: core.FieldFullName, Label: "Name", Sortable: true},
		{Key: core.FieldEmail, Label: "Email"},
		{Key: core.FieldRole, Label: "Role", Sortable: true},
		{Key: core.FieldDepartment, Label: "Department", Sortable: true},
		{Key: core.FieldCreatedAt, Label: "Created", Format: pipeline.FormatDate, Sortable: true},
		{Key: core.FieldActive, Label: "Active", Format: pipeline.FormatBool, Sortable: true},
	},
	SearchFields: []string{core.FieldUsername, core.FieldFullName, core.FieldEmail},
	Selects: []Select{
		{Field: core.FieldRole, Label: "Role"},
		{Field: core.FieldDepartment, Label: "Department"},
	},
	Toggles: []Toggle{
		{Field: core.FieldActive, Label: "Active", Options: []string{"true", "false"}},
	},
	DateField: core.FieldCreatedAt,
	Groupings: []GroupOption{
		categoryGroup(core.FieldRole, "Role"),
		categoryGroup(core.FieldDepartment, "Department"),
		monthGroup(core.FieldCreatedAt),
	},
	DefaultSort: pipeline.SortSpec{Field: core.FieldUsername, Direction: pipeline.Asc},
}

// Datasets holds one dataset service per table.
type Datasets struct {
	Projects *services.DatasetService[core.Project]
	Expenses *services.DatasetService[core.Expense]
	Income   *services.DatasetService[core.Income]
	Payroll  *services.DatasetService[core.Payroll]
	Users    *services.DatasetService[core.User]
}

var _ services.Invalidator = (*Datasets)(nil)

func NewDatasets(finder records.Finder, logger *log.Logger) *Datasets {
	return &Datasets{
		Projects: services.NewDatasetService(finder, records.TableProjects, core.NormalizeProject, logger),
		Expenses: services.NewDatasetService(finder, records.TableExpenses, core.NormalizeExpense, logger),
		Income:   services.NewDatasetService(finder, records.TableIncome, core.NormalizeIncome, logger),
		Payroll:  services.NewDatasetService(finder, records.TablePayroll, core.NormalizePayroll, logger),
		Users:    services.NewDatasetService(finder, records.TableUsers, core.NormalizeUser, logger),
	}
}

// Invalidate marks the dataset of table stale. Unknown tables are ignored.
func (d *Datasets) Invalidate(table string) {
	switch table {
	case records.TableProjects:
		d.Projects.Invalidate()
	case records.TableExpenses:
		d.Expenses.Invalidate()
	case records.TableIncome:
		d.Income.Invalidate()
	case records.TablePayroll:
		d.Payroll.Invalidate()
	case records.TableUsers:
		d.Users.Invalidate()
	}
}

// Overview returns the overview service over these datasets.
func (d *Datasets) Overview() *services.OverviewService {
	return &services.OverviewService{
		Projects: d.Projects,
		Expenses: d.Expenses,
		Income:   d.Income,
		Payroll:  d.Payroll,
	}
}

// Registry is the ordered set of pages.
type Registry struct {
	pages  []Page
	bySlug map[string]Page
}

// NewRegistry binds every page to its dataset.
func NewRegistry(d *Datasets, lang language.Tag, logger *log.Logger) *Registry {
	return newRegistry(
		NewBoard(ProjectsMeta, d.Projects, lang, logger),
		NewBoard(ExpensesMeta, d.Expenses, lang, logger),
		NewBoard(IncomeMeta, d.Income, lang, logger),
		NewBoard(PayrollMeta, d.Payroll, lang, logger),
		NewBoard(UsersMeta, d.Users, lang, logger),
	)
}

func newRegistry(pages ...Page) *Registry {
	r := &Registry{pages: pages, bySlug: make(map[string]Page, len(pages))}
	for _, p := range pages {
		r.bySlug[p.Meta().Slug] = p
	}
	return r
}

// WithViewTTL sets the idle expiry of per-viewer view state on every page.
func (r *Registry) WithViewTTL(ttl time.Duration) *Registry {
	for _, p := range r.pages {
		if b, ok := p.(interface{ setViewTTL(time.Duration) }); ok {
			b.setViewTTL(ttl)
		}
	}
	return r
}

// Get returns the page with slug.
func (r *Registry) Get(slug string) (Page, error) {
	p, ok := r.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("page %q: %w", slug, ErrUnknownPage)
	}
	return p, nil
}

// All returns the pages in navigation order.
func (r *Registry) All() []Page { return r.pages }
