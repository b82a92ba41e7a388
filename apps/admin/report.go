package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/trezcool/ptahub/core"
	"github.com/trezcool/ptahub/core/attendance"
	"github.com/trezcool/ptahub/core/contribution"
)

var reportTitleColor = color.New(color.Bold, color.FgCyan)

func (cli *commandLine) report(kind string, w io.Writer) error {
	switch kind {
	case "attendance":
		return cli.attendanceReport(w)
	case "contributions":
		return cli.contributionReport(w)
	default:
		return fmt.Errorf("%q: no such report", kind)
	}
}

type attendanceRow struct {
	parent    string
	present   int
	absent    int
	excused   int
	penalties float64 // pending only
}

// attendanceReport prints per-parent presence counts and outstanding penalty
// totals across all meetings.
func (cli *commandLine) attendanceReport(w io.Writer) error {
	meetings, err := cli.attRepo.QueryAllMeetings()
	if err != nil {
		return err
	}

	rows := make(map[string]*attendanceRow)
	for _, m := range meetings {
		recs, err := cli.attRepo.QueryRecordsByMeeting(m.ID)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			row, ok := rows[rec.ParentID]
			if !ok {
				row = &attendanceRow{parent: cli.userDisplay(rec.ParentID)}
				rows[rec.ParentID] = row
			}
			switch rec.Status {
			case attendance.StatusPresent:
				row.present++
			case attendance.StatusAbsent:
				row.absent++
			case attendance.StatusExcused:
				row.excused++
			}
			if rec.Penalty != nil && rec.Penalty.Status == attendance.PenaltyPending {
				row.penalties += rec.Penalty.Amount
			}
		}
	}

	sorted := make([]*attendanceRow, 0, len(rows))
	for _, row := range rows {
		sorted = append(sorted, row)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].parent < sorted[j].parent })

	reportTitleColor.Fprintf(w, "Attendance report (%d meetings)\n", len(meetings))
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Parent", "Present", "Absent", "Excused", "Rate %", "Pending Penalties"})
	for _, row := range sorted {
		recorded := row.present + row.absent + row.excused
		var rate float64
		if recorded > 0 {
			rate = core.Round2(float64(row.present) / float64(recorded) * 100)
		}
		table.Append([]string{
			row.parent,
			fmt.Sprintf("%d", row.present),
			fmt.Sprintf("%d", row.absent),
			fmt.Sprintf("%d", row.excused),
			fmt.Sprintf("%.2f", rate),
			fmt.Sprintf("%.2f", row.penalties),
		})
	}
	table.Render()
	return nil
}

// contributionReport prints per-parent balances followed by the overall fund
// summary.
func (cli *commandLine) contributionReport(w io.Writer) error {
	contribs, err := cli.contribRepo.QueryAllContributions()
	if err != nil {
		return err
	}

	byParent := make(map[string][]contribution.Contribution)
	for _, c := range contribs {
		byParent[c.ParentID] = append(byParent[c.ParentID], c)
	}
	parentIDs := make([]string, 0, len(byParent))
	for id := range byParent {
		parentIDs = append(parentIDs, id)
	}
	sort.Strings(parentIDs)

	reportTitleColor.Fprintln(w, "Contributions report")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Parent", "Verified Total", "Pending", "Pending Total"})
	for _, id := range parentIDs {
		balance := contribution.BalanceOf(id, byParent[id])
		table.Append([]string{
			cli.userDisplay(id),
			fmt.Sprintf("%.2f", balance.VerifiedTotal),
			fmt.Sprintf("%d", balance.PendingCount),
			fmt.Sprintf("%.2f", balance.PendingTotal),
		})
	}
	summary := contribution.ComputeSummary(contribs)
	table.SetFooter([]string{
		fmt.Sprintf("%d total", summary.Total),
		fmt.Sprintf("%.2f", summary.VerifiedTotal),
		fmt.Sprintf("%d", summary.StatusCounts[contribution.StatusPending]),
		fmt.Sprintf("%.2f", summary.PendingTotal),
	})
	table.Render()
	return nil
}

func (cli *commandLine) userDisplay(id string) string {
	usr, err := cli.usrRepo.GetUserByID(id)
	if err != nil {
		return id
	}
	if usr.Name != "" {
		return usr.Name
	}
	return usr.Username
}
