package factory

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// BATCH INPUT FILES
// =============================================================================
//
// A batch file carries one period's worth of collaborator data:
//
//   period: {start: 2025-01-06, end: 2025-01-12, pay_date: 2025-01-17}
//   employees:
//     - employee: {id: emp-1, pay_type: hourly, pay_rate: 20, ...}
//       hours: {regular_hours: 40, overtime_hours: 5}
//     - employee: {id: emp-2, ...}
//       time_entries:            # aggregated when hours are omitted
//         - {date: 2025-01-06, total_hours: 9, status: approved}
//       leave_requests:
//         - {type: unpaid, start: 2025-01-09, end: 2025-01-09, status: approved}
//       enrollments:
//         - {id: e1, benefit_type: 401k, employee_contribution: 200, ...}

// BatchYAML is the document layout of a batch input file.
type BatchYAML struct {
	Period    PeriodYAML      `yaml:"period"`
	Employees []BatchEmployee `yaml:"employees"`
}

type PeriodYAML struct {
	Start   generic.TimePoint `yaml:"start"`
	End     generic.TimePoint `yaml:"end"`
	PayDate generic.TimePoint `yaml:"pay_date,omitempty"`
}

// BatchEmployee is one employee's entry. Raw time entries and leave
// requests are optional; when Hours is absent they are aggregated. The API
// accepts the same shape as JSON.
type BatchEmployee struct {
	Employee      payroll.Employee            `json:"employee" yaml:"employee"`
	Hours         *payroll.HoursSummary       `json:"hours,omitempty" yaml:"hours,omitempty"`
	Bonuses       decimal.Decimal             `json:"bonuses" yaml:"bonuses,omitempty"`
	Commissions   decimal.Decimal             `json:"commissions" yaml:"commissions,omitempty"`
	Enrollments   []payroll.BenefitEnrollment `json:"enrollments,omitempty" yaml:"enrollments,omitempty"`
	TimeEntries   []payroll.TimeEntry         `json:"time_entries,omitempty" yaml:"time_entries,omitempty"`
	LeaveRequests []payroll.LeaveRequest      `json:"leave_requests,omitempty" yaml:"leave_requests,omitempty"`
}

// Input converts the entry into engine input for period r.
func (e BatchEmployee) Input(r generic.Period, settings payroll.CompanySettings) (payroll.EmployeeInput, error) {
	in := payroll.EmployeeInput{
		Employee:    e.Employee,
		Bonuses:     e.Bonuses,
		Commissions: e.Commissions,
		Enrollments: e.Enrollments,
	}
	if in.Employee.ID == "" {
		return payroll.EmployeeInput{}, &payroll.InvalidInputError{Field: "employee.id", Reason: "required"}
	}
	switch {
	case e.Hours != nil:
		in.Hours = *e.Hours
	case len(e.TimeEntries) > 0 || len(e.LeaveRequests) > 0:
		in.Hours = payroll.AggregateHours(
			forEmployee(e.TimeEntries, in.Employee.ID),
			leavesFor(e.LeaveRequests, in.Employee.ID),
			r, settings.OvertimeThreshold)
	}
	for j := range in.Enrollments {
		if in.Enrollments[j].EmployeeID == "" {
			in.Enrollments[j].EmployeeID = in.Employee.ID
		}
	}
	return in, nil
}

// Inputs converts a list of entries, failing on the first malformed one.
func Inputs(entries []BatchEmployee, r generic.Period, settings payroll.CompanySettings) ([]payroll.EmployeeInput, error) {
	out := make([]payroll.EmployeeInput, 0, len(entries))
	for i, e := range entries {
		in, err := e.Input(r, settings)
		if err != nil {
			return nil, fmt.Errorf("employees[%d]: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}

// Batch is a parsed batch file.
type Batch struct {
	Period  generic.Period
	PayDate generic.TimePoint
	Inputs  []payroll.EmployeeInput
}

// LoadBatch reads and parses a batch input file.
func LoadBatch(path string, settings payroll.CompanySettings) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	b, err := ParseBatch(data, settings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// ParseBatch converts a batch document. settings supply the overtime
// threshold for aggregation and the default pay-date offset.
func ParseBatch(data []byte, settings payroll.CompanySettings) (*Batch, error) {
	var doc BatchYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid batch YAML: %w", err)
	}

	r := generic.Period{Start: doc.Period.Start, End: doc.Period.End}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("period: %w", err)
	}
	payDate := doc.Period.PayDate
	if payDate.IsZero() {
		payDate = r.End.AddDays(settings.DefaultPayDateOffset)
	}

	inputs, err := Inputs(doc.Employees, r, settings)
	if err != nil {
		return nil, err
	}
	return &Batch{Period: r, PayDate: payDate, Inputs: inputs}, nil
}

// forEmployee stamps entries written without an employee id and drops
// entries that belong to someone else.
func forEmployee(entries []payroll.TimeEntry, id string) []payroll.TimeEntry {
	out := make([]payroll.TimeEntry, 0, len(entries))
	for _, te := range entries {
		if te.EmployeeID == "" {
			te.EmployeeID = id
		}
		if te.EmployeeID == id {
			out = append(out, te)
		}
	}
	return out
}

func leavesFor(leaves []payroll.LeaveRequest, id string) []payroll.LeaveRequest {
	out := make([]payroll.LeaveRequest, 0, len(leaves))
	for _, lr := range leaves {
		if lr.EmployeeID == "" {
			lr.EmployeeID = id
		}
		if lr.EmployeeID == id {
			out = append(out, lr)
		}
	}
	return out
}
