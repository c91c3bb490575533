package failure

// Failed describes one entity that could not be saved.
type Failed struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail"`
}

// Report summarizes a save. A save never fails as a whole; per-entity
// failures are collected here.
type Report struct {
	Saved   int      `json:"saved"`
	Failed  []Failed `json:"failed"`
	Skipped bool     `json:"skipped,omitempty"` // Another save was in flight
}

// Add records a failure for id.
func (r *Report) Add(id string, err error) {
	r.Failed = append(r.Failed, Failed{ID: id, Kind: KindOf(err), Detail: err.Error()})
}

// OK reports whether nothing failed.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}
