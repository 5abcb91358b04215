package crossref

// worksResponse is the envelope Crossref wraps every /works/{doi} response in.
type worksResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// Work is the Crossref work metadata model, limited to the fields the
// enrichment pipeline consumes.
type Work struct {
	// DOI is the registered DOI, already lowercase in Crossref responses.
	DOI string `json:"DOI"`

	// Title and ContainerTitle are arrays per the Crossref schema; only the
	// first element is meaningful for our purposes.
	Title          []string `json:"title"`
	ContainerTitle []string `json:"container-title"`

	Volume string `json:"volume"`
	Issue  string `json:"issue"`

	// Page is the page range in "first-last" form.
	Page string `json:"page"`

	// Issued carries the publication date as nested date-parts
	// ([[year, month, day]], trailing parts optional).
	Issued DateParts `json:"issued"`

	URL string `json:"URL"`
}

// DateParts is Crossref's partial-date representation.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year component, or 0 when the date is absent.
func (d DateParts) Year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}
