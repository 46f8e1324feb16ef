package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Audit flag severities, ordered by weight.
const (
	SeverityBlocker = "BLOCKER"
	SeverityWarning = "WARNING"
	SeverityInfo    = "INFO"
)

// MissingEvidenceSeverity is the severity of an evidence field that is
// filled without citations. A value the applicant typed by hand is
// reviewable, not unsubmittable, so it warns instead of blocking.
const MissingEvidenceSeverity = SeverityWarning

// Risk scoring weights. Risk is capped at 100.
const (
	RiskWeightBlocker   = 20
	RiskWeightWarning   = 10
	RiskWeightInfo      = 3
	RiskPenaltyNoDocs   = 15
	MaxRisk             = 100
	MinAccommodationLen = 120
	MaxHouseholdSize    = 20
	MaxRentToIncome     = 0.8
)

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// AuditFlag is one deterministic finding against the form.
type AuditFlag struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	FieldID  string `json:"field_id"`
	Message  string `json:"message"`
	Fix      string `json:"fix"`
}

// FieldAuditMeta carries the per-field grounding the client accumulated
// from accepted suggestions.
type FieldAuditMeta struct {
	Citations []Citation `json:"citations"`
}

// AuditResponse is the full deterministic audit result.
type AuditResponse struct {
	Flags       []AuditFlag `json:"flags"`
	Blockers    int         `json:"blockers"`
	Warnings    int         `json:"warnings"`
	Infos       int         `json:"infos"`
	Risk        int         `json:"risk"`
	CoveragePct int         `json:"coverage_pct"`
}

// RunAudit applies every rule to the form and scores the result. It is a
// pure function of its inputs: the same form, meta, and document count
// always produce the same flags in the same order.
func RunAudit(formData map[string]string, fieldMeta map[string]FieldAuditMeta, readyDocCount int) AuditResponse {
	flags := []AuditFlag{}

	// Required fields
	for _, f := range FormSchema {
		val := strings.TrimSpace(formData[f.ID])
		if f.Required && val == "" {
			flags = append(flags, AuditFlag{
				Severity: SeverityBlocker,
				Code:     "REQUIRED_MISSING",
				FieldID:  f.ID,
				Message:  fmt.Sprintf("%s is required.", f.Label),
				Fix:      "Fill this field (use Suggest if evidence is available).",
			})
		}
	}

	// Household size plausibility
	if hh := strings.TrimSpace(formData["household_size"]); hh != "" {
		n, err := strconv.Atoi(hh)
		switch {
		case err != nil:
			flags = append(flags, AuditFlag{
				Severity: SeverityWarning,
				Code:     "INVALID_HOUSEHOLD_SIZE",
				FieldID:  "household_size",
				Message:  "Household size must be a whole number.",
				Fix:      "Enter the number of people in the household.",
			})
		case n < 1:
			flags = append(flags, AuditFlag{
				Severity: SeverityBlocker,
				Code:     "INVALID_HOUSEHOLD_SIZE",
				FieldID:  "household_size",
				Message:  "Household size must be at least 1.",
				Fix:      "Enter the number of people in the household.",
			})
		case n > MaxHouseholdSize:
			flags = append(flags, AuditFlag{
				Severity: SeverityWarning,
				Code:     "HOUSEHOLD_SIZE_UNUSUAL",
				FieldID:  "household_size",
				Message:  "Household size looks unusually large.",
				Fix:      "Double-check the number of people in the household.",
			})
		}
	}

	// State format
	if state := strings.TrimSpace(formData["state"]); state != "" && len(state) != 2 {
		flags = append(flags, AuditFlag{
			Severity: SeverityWarning,
			Code:     "INVALID_STATE",
			FieldID:  "state",
			Message:  "State should be 2 letters.",
			Fix:      "Use 2-letter state code.",
		})
	}

	// ZIP format
	if zip := strings.TrimSpace(formData["zip"]); zip != "" && !zipPattern.MatchString(zip) {
		flags = append(flags, AuditFlag{
			Severity: SeverityWarning,
			Code:     "INVALID_ZIP",
			FieldID:  "zip",
			Message:  "ZIP code format looks wrong.",
			Fix:      "Use 5-digit ZIP (or ZIP+4).",
		})
	}

	// Evidence coverage
	grounded := 0
	evidenceFields := 0
	for _, f := range FormSchema {
		if !f.Evidence {
			continue
		}
		evidenceFields++
		hasCites := len(fieldMeta[f.ID].Citations) > 0
		if hasCites {
			grounded++
		}
		filled := strings.TrimSpace(formData[f.ID]) != ""
		if filled && !hasCites {
			flags = append(flags, AuditFlag{
				Severity: MissingEvidenceSeverity,
				Code:     "MISSING_EVIDENCE_REQUIRED",
				FieldID:  f.ID,
				Message:  fmt.Sprintf("%s filled but has no evidence.", f.Label),
				Fix:      fmt.Sprintf("Upload docs (%s) then re-run Suggest.", strings.Join(f.DocTypes, ", ")),
			})
		}
	}

	// Accommodation length
	if acc := strings.TrimSpace(formData["requested_accommodation"]); acc != "" && len([]rune(acc)) < MinAccommodationLen {
		flags = append(flags, AuditFlag{
			Severity: SeverityWarning,
			Code:     "ACCOMMODATION_TOO_SHORT",
			FieldID:  "requested_accommodation",
			Message:  "Description may be too brief.",
			Fix:      "Add what you need, why, and how it impacts housing access.",
		})
	}

	// Rent/income ratio
	rent, rentOK := parseMoney(formData["monthly_rent"])
	income, incomeOK := parseMoney(formData["monthly_gross_income"])
	if rentOK && incomeOK && income > 0 && rent/income > MaxRentToIncome {
		flags = append(flags, AuditFlag{
			Severity: SeverityInfo,
			Code:     "RENT_TO_INCOME_HIGH",
			FieldID:  "monthly_rent",
			Message:  "Rent-to-income ratio appears high.",
			Fix:      "Ensure values are correct and supported by docs.",
		})
	}

	blockers, warnings, infos := 0, 0, 0
	for _, f := range flags {
		switch f.Severity {
		case SeverityBlocker:
			blockers++
		case SeverityWarning:
			warnings++
		case SeverityInfo:
			infos++
		}
	}

	risk := blockers*RiskWeightBlocker + warnings*RiskWeightWarning + infos*RiskWeightInfo
	if readyDocCount == 0 {
		risk += RiskPenaltyNoDocs
	}
	if risk > MaxRisk {
		risk = MaxRisk
	}

	coverage := 0
	if evidenceFields > 0 {
		coverage = int(math.Round(float64(grounded) / float64(evidenceFields) * 100))
	}

	return AuditResponse{
		Flags:       flags,
		Blockers:    blockers,
		Warnings:    warnings,
		Infos:       infos,
		Risk:        risk,
		CoveragePct: coverage,
	}
}

// parseMoney reads a currency amount, tolerating "$" and thousands commas.
func parseMoney(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
