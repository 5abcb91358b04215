package orcid

// record is the ORCID public API record model, limited to the fields the
// identity resolution stage consumes.
type record struct {
	Person     person     `json:"person"`
	Activities activities `json:"activities-summary"`
}

type person struct {
	Name *personName `json:"name"`
}

// personName carries the name variants ORCID stores. CreditName is the
// researcher's chosen display form and takes precedence when present.
type personName struct {
	GivenNames *value `json:"given-names"`
	FamilyName *value `json:"family-name"`
	CreditName *value `json:"credit-name"`
}

type value struct {
	Value string `json:"value"`
}

type activities struct {
	Employments employments `json:"employments"`
}

// employments groups employment summaries by organization, ordered most
// recent first by the API.
type employments struct {
	AffiliationGroups []affiliationGroup `json:"affiliation-group"`
}

type affiliationGroup struct {
	Summaries []affiliationSummary `json:"summaries"`
}

type affiliationSummary struct {
	EmploymentSummary *employmentSummary `json:"employment-summary"`
}

type employmentSummary struct {
	Organization organization `json:"organization"`
}

type organization struct {
	Name string `json:"name"`
}
