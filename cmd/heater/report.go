package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"

	"github.com/catherinevee/prodflow/pkg/heater"
)

// newRunProgressBar renders a terminal progress bar across total
// accounts, matching the teacher's progressbar.NewOptions texture
// (colored description, fixed width, completion message).
func newRunProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]heating accounts[reset]"),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)
}

// printReport renders the batch's account-by-account outcomes as a
// table, in the same tablewriter shape the teacher's
// displayPerspectiveTable uses for its summary tables.
func printReport(report heater.Report) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Account", "Releases", "PRs", "Deployments", "Status"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, o := range report.Outcomes {
		status := color.GreenString("ok")
		if o.Err != nil {
			status = color.RedString("failed: %v", o.Err)
		}
		table.Append([]string{
			fmt.Sprintf("%d", o.AccountID),
			fmt.Sprintf("%d", o.ReleasesMined),
			fmt.Sprintf("%d", o.PRsMined),
			fmt.Sprintf("%d", o.DeploymentsSeen),
			status,
		})
	}
	table.Render()

	failures := len(report.Failures())
	if failures == 0 {
		fmt.Println(color.GreenString("%d account(s) heated successfully", len(report.Outcomes)))
		return
	}
	fmt.Println(color.RedString("%d of %d account(s) failed", failures, len(report.Outcomes)))
}
