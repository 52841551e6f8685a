package models

// RunStatus classifies a finished run. A partial run still finalizes the job as completed.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
)

// EntityStatus is the outcome of one entity within a phase
type EntityStatus string

const (
	EntitySucceeded EntityStatus = "success"
	EntityFailed    EntityStatus = "failed"
)

// EntityOutcome records what happened to one brand, property or campaign
type EntityOutcome struct {
	Phase      string         `json:"phase"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Name       string         `json:"name,omitempty"`
	Status     EntityStatus   `json:"status"`
	Records    int            `json:"records"`
	Counts     map[string]int `json:"counts,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Failed reports whether the entity recorded an error
func (o EntityOutcome) Failed() bool {
	return o.Status == EntityFailed
}

// ResultSummary aggregates entity outcomes
type ResultSummary struct {
	Attempted     int `json:"attempted"`
	Succeeded     int `json:"succeeded"`
	Failed        int `json:"failed"`
	RecordsSynced int `json:"records_synced"`
}

// SyncAllTotals is the result body of a sync_all job
type SyncAllTotals struct {
	Brands          int      `json:"brands"`
	Prompts         int      `json:"prompts"`
	Responses       int      `json:"responses"`
	TrafficRows     int      `json:"traffic_rows"`
	KeywordRankings int      `json:"keyword_rankings"`
	SkippedSources  []string `json:"skipped_sources,omitempty"`
}

// GA4Totals is the result body of a sync_ga4 job
type GA4Totals struct {
	Properties int    `json:"properties"`
	Rows       int    `json:"rows"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// AgencyAnalyticsTotals is the result body of a sync_agency_analytics job
type AgencyAnalyticsTotals struct {
	Campaigns int `json:"campaigns"`
	Rankings  int `json:"rankings"`
}

// JobResult is the final payload of a completed job. Kind selects which of the
// typed bodies is set.
type JobResult struct {
	Kind            SyncType               `json:"kind"`
	Status          RunStatus              `json:"status"`
	Summary         ResultSummary          `json:"summary"`
	Entities        []EntityOutcome        `json:"entities"`
	SyncAll         *SyncAllTotals         `json:"sync_all,omitempty"`
	GA4             *GA4Totals             `json:"ga4,omitempty"`
	AgencyAnalytics *AgencyAnalyticsTotals `json:"agency_analytics,omitempty"`
	Details         map[string]interface{} `json:"details,omitempty"`
}

// NewJobResult returns an empty result with the typed body for kind allocated
func NewJobResult(kind SyncType) *JobResult {
	r := &JobResult{Kind: kind, Status: RunStatusCompleted, Entities: []EntityOutcome{}}
	switch kind {
	case SyncTypeAll:
		r.SyncAll = &SyncAllTotals{}
	case SyncTypeGA4:
		r.GA4 = &GA4Totals{}
	case SyncTypeAgencyAnalytics:
		r.AgencyAnalytics = &AgencyAnalyticsTotals{}
	}
	return r
}

// Record appends an entity outcome and updates the summary
func (r *JobResult) Record(o EntityOutcome) {
	r.Entities = append(r.Entities, o)
	r.Summary.Attempted++
	if o.Failed() {
		r.Summary.Failed++
	} else {
		r.Summary.Succeeded++
	}
	r.Summary.RecordsSynced += o.Records
}

// Classify sets Status to partial if any entity failed
func (r *JobResult) Classify() {
	r.Status = RunStatusCompleted
	for _, o := range r.Entities {
		if o.Failed() {
			r.Status = RunStatusPartial
			return
		}
	}
}

// SetDetail stores a source-specific extra
func (r *JobResult) SetDetail(key string, value interface{}) {
	if r.Details == nil {
		r.Details = make(map[string]interface{})
	}
	r.Details[key] = value
}

// Clone returns a deep copy of the result
func (r *JobResult) Clone() *JobResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Entities = make([]EntityOutcome, len(r.Entities))
	for i, o := range r.Entities {
		if o.Counts != nil {
			counts := make(map[string]int, len(o.Counts))
			for k, v := range o.Counts {
				counts[k] = v
			}
			o.Counts = counts
		}
		c.Entities[i] = o
	}
	if r.SyncAll != nil {
		all := *r.SyncAll
		all.SkippedSources = append([]string(nil), r.SyncAll.SkippedSources...)
		c.SyncAll = &all
	}
	if r.GA4 != nil {
		ga4 := *r.GA4
		c.GA4 = &ga4
	}
	if r.AgencyAnalytics != nil {
		aa := *r.AgencyAnalytics
		c.AgencyAnalytics = &aa
	}
	if r.Details != nil {
		c.Details = make(map[string]interface{}, len(r.Details))
		for k, v := range r.Details {
			c.Details[k] = v
		}
	}
	return &c
}
