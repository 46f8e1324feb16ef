package services

// FormField describes one field of the fixed application form schema.
type FormField struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Evidence bool     `json:"evidence"`
	DocTypes []string `json:"doc_types,omitempty"`
}

// FormSchema is the fixed 15-field application form the frontend knows
// about. Field ids are stable API identifiers; do not rename them.
var FormSchema = []FormField{
	{ID: "full_name", Label: "Full legal name", Required: true, Evidence: true, DocTypes: []string{"lease", "id"}},
	{ID: "dob", Label: "Date of birth", Required: true, Evidence: true, DocTypes: []string{"id"}},
	{ID: "phone", Label: "Phone number", Required: true},
	{ID: "email", Label: "Email", Required: true},
	{ID: "address_line1", Label: "Street address", Required: true, Evidence: true, DocTypes: []string{"lease", "utility_bill"}},
	{ID: "city", Label: "City", Required: true, Evidence: true, DocTypes: []string{"lease", "utility_bill"}},
	{ID: "state", Label: "State (2-letter)", Required: true, Evidence: true, DocTypes: []string{"lease", "utility_bill"}},
	{ID: "zip", Label: "ZIP code", Required: true, Evidence: true, DocTypes: []string{"lease", "utility_bill"}},
	{ID: "household_size", Label: "Household size", Required: true},
	{ID: "landlord_name", Label: "Landlord name", Required: true, Evidence: true, DocTypes: []string{"lease", "landlord_letter"}},
	{ID: "landlord_contact", Label: "Landlord contact", Required: true, Evidence: true, DocTypes: []string{"lease", "landlord_letter"}},
	{ID: "monthly_rent", Label: "Monthly rent (USD)", Required: true, Evidence: true, DocTypes: []string{"lease", "rent_ledger"}},
	{ID: "employer_name", Label: "Employer name", Required: false, Evidence: true, DocTypes: []string{"paystub", "income_verification"}},
	{ID: "monthly_gross_income", Label: "Monthly gross income (USD)", Required: true, Evidence: true, DocTypes: []string{"paystub", "income_verification"}},
	{ID: "requested_accommodation", Label: "Requested accommodation", Required: true, Evidence: true, DocTypes: []string{"provider_letter"}},
}

// FieldByID returns the schema field for the given id.
func FieldByID(id string) (FormField, bool) {
	for _, f := range FormSchema {
		if f.ID == id {
			return f, true
		}
	}
	return FormField{}, false
}
