package apps

import (
	"sort"
	"strings"

	"github.com/truecharts/truenas-go/pkg/rest"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusDeploying Status = "DEPLOYING"
	StatusStopped   Status = "STOPPED"
	StatusUnknown   Status = "UNKNOWN"
)

// Summary is the list view of a chart release.
type Summary struct {
	Name            string
	Chart           string
	Catalog         string
	Train           string
	Version         string
	LatestVersion   string
	Status          Status
	UpdateAvailable bool
	PodsAvailable   int
	PodsDesired     int
	Icon            string
	Portals         []string
}

func normalizeStatus(status string) Status {
	switch Status(strings.ToUpper(status)) {
	case StatusActive:
		return StatusActive
	case StatusDeploying:
		return StatusDeploying
	case StatusStopped:
		return StatusStopped
	}
	return StatusUnknown
}

// Summarize maps releases to summaries sorted by name. An image update counts as an update.
func Summarize(releases []rest.ChartRelease) []Summary {
	summaries := make([]Summary, 0, len(releases))
	for _, release := range releases {
		version := release.HumanVersion
		if version == "" {
			version = release.ChartMetadata.Version
		}

		var portals []string
		for _, name := range sortedKeys(release.Portals) {
			portals = append(portals, release.Portals[name]...)
		}

		summaries = append(summaries, Summary{
			Name:            release.Name,
			Chart:           release.ChartMetadata.Name,
			Catalog:         release.Catalog,
			Train:           release.CatalogTrain,
			Version:         version,
			LatestVersion:   release.HumanLatestVersion,
			Status:          normalizeStatus(release.Status),
			UpdateAvailable: release.UpdateAvailable || release.ContainerImagesUpdateAvailable,
			PodsAvailable:   release.PodStatus.Available,
			PodsDesired:     release.PodStatus.Desired,
			Icon:            release.ChartMetadata.Icon,
			Portals:         portals,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries
}

// GroupByStatus buckets summaries by status, keeping their order.
func GroupByStatus(summaries []Summary) map[Status][]Summary {
	groups := make(map[Status][]Summary)
	for _, summary := range summaries {
		groups[summary.Status] = append(groups[summary.Status], summary)
	}
	return groups
}

// UpdatesAvailable returns the summaries that have a chart or image update.
func UpdatesAvailable(summaries []Summary) []Summary {
	var updates []Summary
	for _, summary := range summaries {
		if summary.UpdateAvailable {
			updates = append(updates, summary)
		}
	}
	return updates
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
