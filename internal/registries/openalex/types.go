package openalex

// Work is the OpenAlex work model, limited to the fields the enrichment
// pipeline consumes.
type Work struct {
	// ID is the full OpenAlex URL identifier (https://openalex.org/W...).
	ID string `json:"id"`

	// DOI is the full resolver URL form (https://doi.org/10....).
	DOI string `json:"doi"`

	// DisplayName is the cleaned title; Title is the raw variant.
	DisplayName string `json:"display_name"`
	Title       string `json:"title"`

	PublicationYear int `json:"publication_year"`

	PrimaryLocation *Location `json:"primary_location"`

	Biblio Biblio `json:"biblio"`
}

// Location describes where a work is hosted.
type Location struct {
	Source      *Source `json:"source"`
	LandingPage string  `json:"landing_page_url"`
}

// Source is the hosting venue of a location.
type Source struct {
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// Biblio carries the volume/issue/page coordinates of a work.
type Biblio struct {
	Volume    string `json:"volume"`
	Issue     string `json:"issue"`
	FirstPage string `json:"first_page"`
	LastPage  string `json:"last_page"`
}
