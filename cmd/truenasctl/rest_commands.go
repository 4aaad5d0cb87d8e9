package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/truecharts/truenas-go/pkg/apps"
	"github.com/truecharts/truenas-go/pkg/dashboard"
	"github.com/truecharts/truenas-go/pkg/reporting"
	"github.com/truecharts/truenas-go/pkg/rest"
	"github.com/truecharts/truenas-go/pkg/storage"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

func newJobsCommand(a *app) *cobra.Command {
	var state string

	command := &cobra.Command{
		Use:   "jobs [id]",
		Short: "List middleware jobs or show a single job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.restClient()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("job id must be a number: %w", err)
				}
				job, err := client.GetJob(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), job)
			}

			query := url.Values{}
			if state != "" {
				query.Set("state", strings.ToUpper(state))
			}
			jobs, err := client.GetJobs(ctx, query)
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout())
			fmt.Fprintln(table, "ID\tMETHOD\tSTATE\tPROGRESS\tSTARTED")
			for _, job := range jobs {
				progress := "-"
				if job.Progress.Percent != nil {
					progress = fmt.Sprintf("%.0f%%", *job.Progress.Percent)
				}
				started := "-"
				if job.TimeStarted != nil {
					started = job.TimeStarted.Local().Format(time.RFC3339)
				}
				fmt.Fprintf(table, "%d\t%s\t%s\t%s\t%s\n", job.ID, job.Method, job.State, progress, started)
			}
			return table.Flush()
		},
	}

	command.Flags().StringVar(&state, "state", "", "only list jobs in this state")
	return command
}

func newDashboardCommand(a *app) *cobra.Command {
	var samples int

	command := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the system overview with live realtime samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			restClient, err := a.restClient()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			if samples < 1 {
				samples = 1
			}

			info, err := restClient.SystemInfo(ctx)
			if err != nil {
				return err
			}

			client, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Disconnect()

			updates := make(chan *dashboard.Realtime, samples)
			closed := make(chan error, 1)
			watcher := dashboard.NewWatcher(a.logger, client,
				func(rt *dashboard.Realtime) {
					select {
					case updates <- rt:
					default:
					}
				},
				func(err error) {
					select {
					case closed <- err:
					default:
					}
				},
			)

			id, err := watcher.Start(ctx)
			if err != nil {
				return err
			}
			defer watcher.Stop(id)

			out := cmd.OutOrStdout()
			for i := 0; i < samples; i++ {
				select {
				case rt := <-updates:
					if err := printDashboard(out, dashboard.Build(info, rt)); err != nil {
						return err
					}
				case err := <-closed:
					return err
				case <-ctx.Done():
					return nil
				}
			}
			return nil
		},
	}

	command.Flags().IntVarP(&samples, "samples", "n", 1, "number of realtime samples to print")
	return command
}

func printDashboard(w io.Writer, d dashboard.Dashboard) error {
	table := newTable(w)
	fmt.Fprintf(table, "Host\t%s (%s)\n", d.Hostname, d.Version)
	fmt.Fprintf(table, "Uptime\t%s\n", d.Uptime.Round(time.Second))
	fmt.Fprintf(table, "CPU\t%.1f%% of %d cores, %.1f°C\n", d.CPUUsage, d.Cores, d.CPUTemperature)
	fmt.Fprintf(table, "Memory\t%s / %s (%.1f%%)\n", formatBytes(d.Memory.Used), formatBytes(d.Memory.Total), d.Memory.Percent)
	fmt.Fprintf(table, "ZFS ARC\t%s (%.1f%%)\n", formatBytes(d.ARCSize), d.ARCPercent)
	for _, iface := range d.Interfaces {
		state := "down"
		if iface.LinkUp {
			state = "up"
		}
		fmt.Fprintf(table, "%s\t%s rx %s/s tx %s/s\n", iface.Name, state,
			formatBytes(int64(iface.ReceivedBytesRate)), formatBytes(int64(iface.SentBytesRate)))
	}
	fmt.Fprintln(table)
	return table.Flush()
}

func newPoolsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pools",
		Short: "Show pool capacity and vdev topology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.restClient()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			data, err := client.PoolsJSON(ctx)
			if err != nil {
				return err
			}
			pools, err := storage.ParsePools(data)
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout())
			for _, pool := range pools {
				fmt.Fprintf(table, "%s\t%s\t%s used of %s (%.1f%%)\terrors %d\n", pool.Name, pool.Status,
					formatBytes(pool.Allocated), formatBytes(pool.Size), pool.UsedPercent, pool.Errors.Total())
				for _, vdev := range pool.VDevs {
					fmt.Fprintf(table, "  %s\t%s %s\t%s\terrors %d\n", vdev.Group, vdev.Type, vdev.Name, vdev.Status, vdev.Errors.Total())
					for _, disk := range vdev.Disks {
						fmt.Fprintf(table, "    %s\t%s\t%s\terrors %d\n", disk.Disk, disk.Name, disk.Status, disk.Errors.Total())
					}
				}
			}
			return table.Flush()
		},
	}
}

func newAppsCommand(a *app) *cobra.Command {
	var updatesOnly bool

	command := &cobra.Command{
		Use:   "apps",
		Short: "List installed chart releases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.restClient()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			releases, err := client.ChartReleases(ctx)
			if err != nil {
				return err
			}

			summaries := apps.Summarize(releases)
			if updatesOnly {
				summaries = apps.UpdatesAvailable(summaries)
			}
			groups := apps.GroupByStatus(summaries)

			table := newTable(cmd.OutOrStdout())
			fmt.Fprintln(table, "STATUS\tNAME\tCHART\tVERSION\tPODS\tUPDATE")
			for _, status := range []apps.Status{apps.StatusActive, apps.StatusDeploying, apps.StatusStopped, apps.StatusUnknown} {
				for _, summary := range groups[status] {
					update := ""
					if summary.UpdateAvailable {
						update = summary.LatestVersion
						if update == "" {
							update = "yes"
						}
					}
					fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%d/%d\t%s\n", summary.Status, summary.Name, summary.Chart,
						summary.Version, summary.PodsAvailable, summary.PodsDesired, update)
				}
			}
			return table.Flush()
		},
	}

	command.Flags().BoolVar(&updatesOnly, "updates", false, "only list releases with an update available")
	return command
}

func newGraphCommand(a *app) *cobra.Command {
	var unit string

	command := &cobra.Command{
		Use:   "graph <name>",
		Short: "Print the series of a reporting graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.restClient()
			if err != nil {
				return err
			}
			service, err := reporting.NewService(a.logger, client, reporting.DefaultGraphCacheSize)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			graphs, err := service.Series(ctx, args[0], &rest.ReportingQuery{Unit: strings.ToUpper(unit), Aggregate: true})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), graphs)
		},
	}

	command.Flags().StringVar(&unit, "unit", "hour", "time range: hour, day, week, month or year")
	return command
}
