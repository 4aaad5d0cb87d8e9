package rest

import (
	"bytes"
	"encoding/json"
	"time"
)

type JobState string

const (
	JobStateWaiting JobState = "WAITING"
	JobStateRunning JobState = "RUNNING"
	JobStateSuccess JobState = "SUCCESS"
	JobStateFailed  JobState = "FAILED"
	JobStateAborted JobState = "ABORTED"
)

// Finished reports whether the job reached a terminal state.
func (s JobState) Finished() bool {
	return s == JobStateSuccess || s == JobStateFailed || s == JobStateAborted
}

// Timestamp decodes the middleware date encoding {"$date": <unix millis>}.
type Timestamp struct {
	time.Time
}

type timestampJSON struct {
	Date int64 `json:"$date"`
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var value timestampJSON
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	t.Time = time.Unix(0, value.Date*int64(time.Millisecond)).UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(timestampJSON{Date: t.UnixNano() / int64(time.Millisecond)})
}

type JobProgress struct {
	Percent     *float64        `json:"percent"`
	Description *string         `json:"description"`
	Extra       json.RawMessage `json:"extra,omitempty"`
}

type Job struct {
	ID           int64           `json:"id"`
	Method       string          `json:"method"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`
	Description  *string         `json:"description"`
	Abortable    bool            `json:"abortable"`
	LogsPath     *string         `json:"logs_path"`
	LogsExcerpt  *string         `json:"logs_excerpt"`
	Progress     JobProgress     `json:"progress"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        *string         `json:"error"`
	Exception    *string         `json:"exception"`
	ExcInfo      json.RawMessage `json:"exc_info,omitempty"`
	State        JobState        `json:"state"`
	TimeStarted  *Timestamp      `json:"time_started"`
	TimeFinished *Timestamp      `json:"time_finished"`
}

type SystemInfo struct {
	Version            string     `json:"version"`
	BuildTime          *Timestamp `json:"buildtime"`
	Hostname           string     `json:"hostname"`
	PhysMem            int64      `json:"physmem"`
	Model              string     `json:"model"`
	Cores              int        `json:"cores"`
	PhysicalCores      int        `json:"physical_cores"`
	LoadAvg            []float64  `json:"loadavg"`
	Uptime             string     `json:"uptime"`
	UptimeSeconds      float64    `json:"uptime_seconds"`
	SystemSerial       string     `json:"system_serial"`
	SystemProduct      string     `json:"system_product"`
	SystemManufacturer string     `json:"system_manufacturer"`
	BootTime           *Timestamp `json:"boottime"`
	Datetime           *Timestamp `json:"datetime"`
	Timezone           string     `json:"timezone"`
	EccMemory          bool       `json:"ecc_memory"`
	// License has no documented shape.
	License json.RawMessage `json:"license,omitempty"`
}

type ChartMetadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	AppVersion  string `json:"appVersion"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type PodStatus struct {
	Available int `json:"available"`
	Desired   int `json:"desired"`
}

type ChartRelease struct {
	ID                             string              `json:"id"`
	Name                           string              `json:"name"`
	Catalog                        string              `json:"catalog"`
	CatalogTrain                   string              `json:"catalog_train"`
	Path                           string              `json:"path"`
	Dataset                        string              `json:"dataset"`
	Status                         string              `json:"status"`
	Version                        string              `json:"version"`
	HumanVersion                   string              `json:"human_version"`
	HumanLatestVersion             string              `json:"human_latest_version"`
	UpdateAvailable                bool                `json:"update_available"`
	ContainerImagesUpdateAvailable bool                `json:"container_images_update_available"`
	ChartMetadata                  ChartMetadata       `json:"chart_metadata"`
	PodStatus                      PodStatus           `json:"pod_status"`
	Portals                        map[string][]string `json:"portals"`
	UsedPorts                      json.RawMessage     `json:"used_ports,omitempty"`
	// Config and History are passed through untouched, their shape depends on the chart.
	Config  json.RawMessage `json:"config,omitempty"`
	History json.RawMessage `json:"history,omitempty"`
}

type Graph struct {
	Name             string   `json:"name"`
	Title            string   `json:"title"`
	VerticalLabel    string   `json:"vertical_label"`
	Identifiers      []string `json:"identifiers"`
	Stacked          bool     `json:"stacked"`
	StackedShowTotal bool     `json:"stacked_show_total"`
}

type GraphQuery struct {
	Name       string  `json:"name"`
	Identifier *string `json:"identifier,omitempty"`
}

type ReportingQuery struct {
	Unit      string `json:"unit,omitempty"`
	Page      int    `json:"page,omitempty"`
	Start     int64  `json:"start,omitempty"`
	End       int64  `json:"end,omitempty"`
	Aggregate bool   `json:"aggregate"`
}

type ReportingDataRequest struct {
	Graphs []GraphQuery    `json:"graphs"`
	Query  *ReportingQuery `json:"reporting_query,omitempty"`
}

// GraphData is one entry of the reporting/get_data response. Rows hold nullable samples in legend order.
type GraphData struct {
	Name         string                     `json:"name"`
	Identifier   *string                    `json:"identifier"`
	Legend       []string                   `json:"legend"`
	Data         [][]*float64               `json:"data"`
	Start        int64                      `json:"start"`
	End          int64                      `json:"end"`
	Step         int64                      `json:"step"`
	Aggregations map[string]json.RawMessage `json:"aggregations,omitempty"`
}
