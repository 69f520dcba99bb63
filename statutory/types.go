// Package statutory provides the concrete obligation catalog: named
// obligation kinds and preset blueprints with realistic deadline formulas
// and penalty schedules. The engine package stays rule-driven and generic;
// this package is where the statutory specifics live.
package statutory

// =============================================================================
// OBLIGATION KINDS
// =============================================================================

// Kind identifies a family of statutory obligations.
type Kind string

const (
	KindTaxReturn       Kind = "tax_return"
	KindWithholding     Kind = "withholding"
	KindAdvanceTax      Kind = "advance_tax"
	KindAnnualFiling    Kind = "annual_filing"
	KindLicenseRenewal  Kind = "license_renewal"
	KindPayrollDeposit  Kind = "payroll_deposit"
)

func (k Kind) String() string { return string(k) }
