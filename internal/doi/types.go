package doi

// workResponse is the envelope of GET /works/{doi}.
type workResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// Work is the subset of a Crossref work record mapped onto documents.
type Work struct {
	DOI            string     `json:"DOI"`
	Type           string     `json:"type"`
	Title          []string   `json:"title"`
	ContainerTitle []string   `json:"container-title"`
	Volume         string     `json:"volume"`
	Issue          string     `json:"issue"`
	Page           string     `json:"page"`
	Publisher      string     `json:"publisher"`
	Abstract       string     `json:"abstract"`
	ISSN           []string   `json:"ISSN"`
	ISBN           []string   `json:"ISBN"`
	URL            string     `json:"URL"`
	Subject        []string   `json:"subject"`
	Edition        string     `json:"edition-number"`
	Author         []Person   `json:"author"`
	Published      *DateParts `json:"published"`
	PublishedPrint *DateParts `json:"published-print"`
	Issued         *DateParts `json:"issued"`
}

// Person is a Crossref contributor.
type Person struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"` // Organizations
}

// DateParts is a partial date: [[year, month, day]] with trailing parts
// optional.
type DateParts struct {
	Parts [][]int `json:"date-parts"`
}

// ymd returns the year, month and day, zero when absent.
func (d *DateParts) ymd() (int, int, int) {
	if d == nil || len(d.Parts) == 0 {
		return 0, 0, 0
	}
	p := d.Parts[0]
	var y, m, day int
	if len(p) > 0 {
		y = p[0]
	}
	if len(p) > 1 {
		m = p[1]
	}
	if len(p) > 2 {
		day = p[2]
	}
	return y, m, day
}
