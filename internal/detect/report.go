package detect

// Report summarizes one analysis run: totals by severity and kind plus the
// full findings list.
type Report struct {
	Summary struct {
		Frames   int  `json:"frames"`
		Total    int  `json:"total"`
		Errors   int  `json:"errors"`
		Warnings int  `json:"warnings"`
		Pass     bool `json:"pass"`
	} `json:"summary"`
	Counts   map[Kind]int `json:"counts"`
	Findings []Alert      `json:"findings,omitempty"`
}

// MakeReport builds the report for everything processed so far. A run passes
// when no ERROR-severity alert was raised.
func (e *Engine) MakeReport() Report {
	var rep Report
	rep.Counts = make(map[Kind]int)
	var errs, warns int
	for _, a := range e.alerts {
		rep.Counts[a.Kind]++
		switch a.Severity {
		case ERROR:
			errs++
		case WARN:
			warns++
		}
	}
	rep.Summary.Frames = e.frames
	rep.Summary.Total = len(e.alerts)
	rep.Summary.Errors = errs
	rep.Summary.Warnings = warns
	rep.Summary.Pass = errs == 0
	rep.Findings = e.alerts
	return rep
}
