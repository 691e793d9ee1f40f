// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// a body parser accepting both JSON (hx-ext json-enc) and form-encoded posts,
// and the record decoders used by the create and edit handlers.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bizdash/internal/core"
)

const maxBodyBytes = 1 << 20

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body of r once, up to 1 MiB.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if strings.Contains(p.contentType, "application/json") || p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = fmt.Errorf("decode json body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// formDate parses an HTML date input. Empty input is nil; anything that is
// not YYYY-MM-DD is ErrInvalidDate.
func formDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return nil, core.ErrInvalidDate
	}
	return &t, nil
}

// formAmount parses a required positive amount.
func formAmount(s string) (float64, error) {
	return core.ParseAmount(s)
}

// formOptionalAmount is formAmount that treats empty and zero as 0.
func formOptionalAmount(s string) (float64, error) {
	if strings.Trim(s, "0.,") == "" {
		return 0, nil
	}
	return core.ParseAmount(s)
}

// fieldError pairs a decoding failure with the form field it came from.
type fieldError struct {
	Field string
	Err   error
}

func (e *fieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *fieldError) Unwrap() error { return e.Err }

// decoder collects the first failure across several field parses.
type decoder struct {
	p   *RequestBodyParser
	err error
}

func (d *decoder) str(key string) string { return d.p.Get(key) }

func (d *decoder) date(key string) *time.Time {
	t, err := formDate(d.p.Get(key))
	d.fail(key, err)
	return t
}

func (d *decoder) amount(key string) float64 {
	v, err := formAmount(d.p.Get(key))
	d.fail(key, err)
	return v
}

func (d *decoder) optionalAmount(key string) float64 {
	v, err := formOptionalAmount(d.p.Get(key))
	d.fail(key, err)
	return v
}

func (d *decoder) fail(key string, err error) {
	if err != nil && d.err == nil {
		d.err = &fieldError{Field: key, Err: err}
	}
}

// DecodeExpense reads an expense from a create form.
func DecodeExpense(p *RequestBodyParser) (core.Expense, error) {
	d := decoder{p: p}
	e := core.Expense{
		Date:        d.date(core.FieldDate),
		Description: d.str(core.FieldDescription),
		Category:    d.str(core.FieldCategory),
		Project:     d.str(core.FieldProject),
		PaidBy:      d.str(core.FieldPaidBy),
		Amount:      d.amount(core.FieldAmount),
	}
	return e, d.err
}

// DecodeIncome reads an income entry from a create form.
func DecodeIncome(p *RequestBodyParser) (core.Income, error) {
	d := decoder{p: p}
	in := core.Income{
		Date:          d.date(core.FieldDate),
		Description:   d.str(core.FieldDescription),
		Customer:      d.str(core.FieldCustomer),
		Project:       d.str(core.FieldProject),
		ContractValue: d.optionalAmount(core.FieldContractValue),
		ExtraRevenue:  d.optionalAmount(core.FieldExtraRevenue),
	}
	return in, d.err
}

// DecodeProject reads a project from a create or edit form.
func DecodeProject(p *RequestBodyParser) (core.Project, error) {
	d := decoder{p: p}
	pr := core.Project{
		Code:      d.str(core.FieldCode),
		Name:      d.str(core.FieldName),
		Customer:  d.str(core.FieldCustomer),
		Region:    d.str(core.FieldRegion),
		Status:    d.str(core.FieldStatus),
		Manager:   d.str(core.FieldManager),
		Budget:    d.optionalAmount(core.FieldBudget),
		StartDate: d.date(core.FieldStartDate),
		EndDate:   d.date(core.FieldEndDate),
	}
	return pr, d.err
}

// DecodePayroll reads a payroll entry from a create form.
func DecodePayroll(p *RequestBodyParser) (core.Payroll, error) {
	d := decoder{p: p}
	pr := core.Payroll{
		Employee:   d.str(core.FieldEmployee),
		Department: d.str(core.FieldDepartment),
		Period:     d.date(core.FieldPeriod),
		BaseSalary: d.optionalAmount(core.FieldBaseSalary),
		Allowance:  d.optionalAmount(core.FieldAllowance),
		Bonus:      d.optionalAmount(core.FieldBonus),
		Deductions: d.optionalAmount(core.FieldDeductions),
	}
	return pr, d.err
}

// validationMessage turns a decode or Validate error into text for the user.
func validationMessage(err error) string {
	var fe *fieldError
	if errors.As(err, &fe) {
		return fmt.Sprintf("Invalid %s: %v", strings.ReplaceAll(fe.Field, "_", " "), fe.Err)
	}
	return "Invalid data: " + err.Error()
}
