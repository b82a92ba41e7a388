package application

import "github.com/trezcool/ptahub/core"

// Stages an applicant sees on their progress tracker, in order.
var Stages = []string{"Submitted", "Under Review", "Demo Scheduled", "Completed"}

// StatusCounts counts records per status by full scan; cheap at PTA scale.
func StatusCounts(apps []Application) map[Status]int {
	counts := make(map[Status]int, len(AllStatuses()))
	for _, app := range apps {
		counts[app.Status]++
	}
	return counts
}

// PassRate returns passCount / (passCount + failCount) among completed
// applications; 0 when none have been scored.
func PassRate(apps []Application) float64 {
	var pass, fail int
	for _, app := range apps {
		switch app.Result {
		case ResultPass:
			pass++
		case ResultFail:
			fail++
		}
	}
	if pass+fail == 0 {
		return 0
	}
	return core.Round2(float64(pass) / float64(pass+fail))
}

// StageIndex maps an application to its position on the progress tracker:
// PENDING -> 0, APPROVED without schedule -> 1, APPROVED with schedule -> 2,
// COMPLETED -> 3. A DRAFT has not entered the tracker (-1); a REJECTED
// application stopped at review (1).
func StageIndex(app Application) int {
	switch app.Status {
	case StatusPending:
		return 0
	case StatusApproved:
		if app.HasDemoSchedule() {
			return 2
		}
		return 1
	case StatusCompleted:
		return 3
	case StatusRejected:
		return 1
	default:
		return -1
	}
}

// ProgressPercentage returns (stageIndex + 1) / totalStages × 100, rounded to
// one decimal; 0 for a DRAFT.
func ProgressPercentage(app Application) float64 {
	idx := StageIndex(app)
	if idx < 0 {
		return 0
	}
	return core.Round1(float64(idx+1) / float64(len(Stages)) * 100)
}

// Stats is the HR dashboard aggregate, recomputed on demand.
type Stats struct {
	StatusCounts map[Status]int `json:"status_counts"`
	PassRate     float64        `json:"pass_rate"`
	Total        int            `json:"total"`
}

func ComputeStats(apps []Application) Stats {
	return Stats{
		StatusCounts: StatusCounts(apps),
		PassRate:     PassRate(apps),
		Total:        len(apps),
	}
}
