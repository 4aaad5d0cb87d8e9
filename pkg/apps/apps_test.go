package apps

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/truecharts/truenas-go/pkg/rest"
)

func testReleases() []rest.ChartRelease {
	return []rest.ChartRelease{
		{
			Name:               "plex",
			Catalog:            "TRUECHARTS",
			CatalogTrain:       "stable",
			Status:             "ACTIVE",
			HumanVersion:       "1.32.5_15.0.1",
			HumanLatestVersion: "1.32.6_15.1.0",
			UpdateAvailable:    true,
			ChartMetadata:      rest.ChartMetadata{Name: "plex", Version: "15.0.1", Icon: "https://example.org/plex.png"},
			PodStatus:          rest.PodStatus{Available: 1, Desired: 1},
			Portals:            map[string][]string{"web_portal": {"http://10.0.0.2:32400/web"}},
		},
		{
			Name:                           "home-assistant",
			Catalog:                        "TRUECHARTS",
			CatalogTrain:                   "stable",
			Status:                         "stopped",
			ChartMetadata:                  rest.ChartMetadata{Name: "home-assistant", Version: "21.0.3"},
			ContainerImagesUpdateAvailable: true,
			PodStatus:                      rest.PodStatus{Available: 0, Desired: 0},
		},
		{
			Name:          "nextcloud",
			Status:        "CRASHED",
			HumanVersion:  "27.1.2_25.0.0",
			ChartMetadata: rest.ChartMetadata{Name: "nextcloud"},
			PodStatus:     rest.PodStatus{Available: 0, Desired: 2},
			Portals: map[string][]string{
				"web_portal": {"https://cloud.local"},
				"admin":      {"https://cloud.local/settings"},
			},
		},
	}
}

func TestSummarize(t *testing.T) {
	summaries := Summarize(testReleases())

	expected := []Summary{
		{
			Name: "home-assistant", Chart: "home-assistant", Catalog: "TRUECHARTS", Train: "stable",
			Version: "21.0.3", Status: StatusStopped, UpdateAvailable: true,
		},
		{
			Name: "nextcloud", Chart: "nextcloud", Version: "27.1.2_25.0.0", Status: StatusUnknown,
			PodsDesired: 2, Portals: []string{"https://cloud.local/settings", "https://cloud.local"},
		},
		{
			Name: "plex", Chart: "plex", Catalog: "TRUECHARTS", Train: "stable",
			Version: "1.32.5_15.0.1", LatestVersion: "1.32.6_15.1.0", Status: StatusActive, UpdateAvailable: true,
			PodsAvailable: 1, PodsDesired: 1, Icon: "https://example.org/plex.png",
			Portals: []string{"http://10.0.0.2:32400/web"},
		},
	}
	if diff := cmp.Diff(expected, summaries); diff != "" {
		t.Errorf("unexpected summaries (-want +got):\n%s", diff)
	}
}

func TestGroupByStatus(t *testing.T) {
	groups := GroupByStatus(Summarize(testReleases()))

	assert.Len(t, groups, 3)
	assert.Equal(t, "plex", groups[StatusActive][0].Name)
	assert.Equal(t, "home-assistant", groups[StatusStopped][0].Name)
	assert.Equal(t, "nextcloud", groups[StatusUnknown][0].Name)
	assert.Empty(t, groups[StatusDeploying])
}

func TestUpdatesAvailable(t *testing.T) {
	updates := UpdatesAvailable(Summarize(testReleases()))

	names := make([]string, 0, len(updates))
	for _, update := range updates {
		names = append(names, update.Name)
	}
	assert.Equal(t, []string{"home-assistant", "plex"}, names)
	assert.Empty(t, UpdatesAvailable(nil))
}
