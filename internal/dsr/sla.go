package dsr

import "time"

// regulationSLADays maps each regulation to its business-day completion budget.
var regulationSLADays = map[Regulation]int{
	RegulationGDPR:   30,
	RegulationCCPA:   45,
	RegulationLGPD:   15,
	RegulationUKGDPR: 30,
	RegulationPIPEDA: 30,
	RegulationPOPIA:  30,
}

// SLADays returns the business-day budget for a regulation.
func SLADays(reg Regulation) int {
	return regulationSLADays[reg]
}

// DueDate computes the SLA deadline by advancing start one calendar day at a
// time and counting only Monday through Friday against the budget. The time
// of day is preserved. Pure and deterministic for a given (start, regulation).
func DueDate(start time.Time, reg Regulation) time.Time {
	remaining := regulationSLADays[reg]
	d := start
	for remaining > 0 {
		d = d.AddDate(0, 0, 1)
		if isBusinessDay(d) {
			remaining--
		}
	}
	return d
}

// BusinessDaysBetween counts the business days in (start, end]. It is the
// inverse of DueDate: BusinessDaysBetween(start, DueDate(start, reg)) equals
// the regulation's budget.
func BusinessDaysBetween(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	count := 0
	d := start
	for d.Before(end) {
		d = d.AddDate(0, 0, 1)
		if !d.After(end) && isBusinessDay(d) {
			count++
		}
	}
	return count
}

func isBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
