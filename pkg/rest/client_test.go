package rest

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errors "golang.org/x/xerrors"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, WithAPIKey("1-secret"))
	require.NoError(t, err)
	return client, server
}

const twoJobs = `[
	{"id": 4, "method": "pool.scrub", "state": "SUCCESS", "progress": {"percent": 100, "description": "done"},
	 "time_started": {"$date": 1700000000000}, "time_finished": {"$date": 1700000060000}},
	{"id": 5, "method": "chart.release.upgrade", "state": "RUNNING", "progress": {"percent": 40, "description": null},
	 "time_started": {"$date": 1700000100000}, "time_finished": null}
]`

func TestClient_GetJob(t *testing.T) {
	t.Run("should filter the returned jobs to the requested id", func(t *testing.T) {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v2.0/core/get_jobs", r.URL.Path)
			assert.Equal(t, "5", r.URL.Query().Get("id"))
			assert.Equal(t, "Bearer 1-secret", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(twoJobs))
		})

		job, err := client.GetJob(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), job.ID)
		assert.Equal(t, "chart.release.upgrade", job.Method)
		assert.Equal(t, JobStateRunning, job.State)
		assert.False(t, job.State.Finished())
		require.NotNil(t, job.Progress.Percent)
		assert.Equal(t, 40.0, *job.Progress.Percent)
		assert.Nil(t, job.Progress.Description)
		require.NotNil(t, job.TimeStarted)
		assert.Equal(t, time.Unix(1700000100, 0).UTC(), job.TimeStarted.Time)
		assert.Nil(t, job.TimeFinished)
	})

	t.Run("should fail with job not found when no id matches", func(t *testing.T) {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(twoJobs))
		})

		_, err := client.GetJob(context.Background(), 7)
		var notFound *JobNotFoundError
		require.True(t, errors.As(err, &notFound))
		assert.Equal(t, int64(7), notFound.ID)
		assert.Equal(t, "rest: job 7 not found", err.Error())
	})
}

func TestClient_GetJobs(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "SUCCESS", r.URL.Query().Get("state"))
		_, _ = w.Write([]byte(twoJobs))
	})

	jobs, err := client.GetJobs(context.Background(), url.Values{"state": []string{"SUCCESS"}})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.True(t, jobs[0].State.Finished())
	assert.Equal(t, time.Unix(1700000060, 0).UTC(), jobs[0].TimeFinished.Time)
}

func TestClient_Errors(t *testing.T) {
	t.Run("should return not ok error with body", func(t *testing.T) {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid API key"}`))
		})

		_, err := client.SystemInfo(context.Background())
		var notOk *NotOkError
		require.True(t, errors.As(err, &notOk))
		assert.Equal(t, http.StatusUnauthorized, notOk.StatusCode)
		assert.Equal(t, "system/info", notOk.Path)
		assert.Equal(t, []byte(`{"message":"Invalid API key"}`), notOk.Body)
	})

	t.Run("should return deserialize error with raw body", func(t *testing.T) {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"cores":"many"}`))
		})

		_, err := client.SystemInfo(context.Background())
		var deserializeErr *DeserializeError
		require.True(t, errors.As(err, &deserializeErr))
		assert.Equal(t, []byte(`{"cores":"many"}`), deserializeErr.Body)
	})

	t.Run("should report bodies over the size limit instead of decoding them", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"hostname":"nas01","version":"TrueNAS-SCALE-23.10"}`))
		}))
		defer server.Close()

		client, err := NewClient(server.URL, WithMaxResponseSize(16))
		require.NoError(t, err)

		_, err = client.SystemInfo(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrResponseTooLarge))
		var deserializeErr *DeserializeError
		assert.False(t, errors.As(err, &deserializeErr))
	})

	t.Run("should accept a body of exactly the size limit", func(t *testing.T) {
		body := `{"hostname":"nas01"}`
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		defer server.Close()

		client, err := NewClient(server.URL, WithMaxResponseSize(int64(len(body))))
		require.NoError(t, err)

		info, err := client.SystemInfo(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "nas01", info.Hostname)
	})

	t.Run("should reject pool responses that are not arrays", func(t *testing.T) {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":1}`))
		})

		_, err := client.PoolsJSON(context.Background())
		var deserializeErr *DeserializeError
		assert.True(t, errors.As(err, &deserializeErr))
	})

	t.Run("should reject invalid base urls", func(t *testing.T) {
		_, err := NewClient("truenas.local")
		assert.Equal(t, ErrInvalidBaseURL, err)
	})
}

func TestClient_SystemInfo(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2.0/system/info", r.URL.Path)
		_, _ = w.Write([]byte(`{"version":"TrueNAS-SCALE-23.10.1","hostname":"nas01","physmem":16777216000,"cores":8,
			"physical_cores":4,"uptime_seconds":3600.5,"loadavg":[0.1,0.2,0.3],"boottime":{"$date":1700000000000}}`))
	})

	info, err := client.SystemInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nas01", info.Hostname)
	assert.Equal(t, int64(16777216000), info.PhysMem)
	assert.Equal(t, 8, info.Cores)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, info.LoadAvg)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), info.BootTime.Time)
}

func TestClient_BasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "root", username)
		assert.Equal(t, "pw", password)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/", WithBasicAuth("root", "pw"))
	require.NoError(t, err)

	releases, err := client.ChartReleases(context.Background())
	require.NoError(t, err)
	assert.Empty(t, releases)
}

func TestClient_ReportingData(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2.0/reporting/get_data", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := ioutil.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"graphs":[{"name":"cpu"}],"reporting_query":{"unit":"HOUR","aggregate":true}}`, string(body))

		_, _ = w.Write([]byte(`[{"name":"cpu","identifier":null,"legend":["time","user","system"],
			"data":[[1700000000,1.5,null],[1700000010,2,0.5]],"start":1700000000,"end":1700000010,"step":10,
			"aggregations":{"min":{"user":1.5}}}]`))
	})

	data, err := client.ReportingData(context.Background(), ReportingDataRequest{
		Graphs: []GraphQuery{{Name: "cpu"}},
		Query:  &ReportingQuery{Unit: "HOUR", Aggregate: true},
	})
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, []string{"time", "user", "system"}, data[0].Legend)
	assert.Nil(t, data[0].Data[0][2])
	assert.Equal(t, 0.5, *data[0].Data[1][2])
	assert.Equal(t, int64(10), data[0].Step)
	assert.JSONEq(t, `{"user":1.5}`, string(data[0].Aggregations["min"]))
}

func TestTimestamp_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Timestamp{Time: time.Unix(1700000000, 0)})
	require.NoError(t, err)
	assert.Equal(t, `{"$date":1700000000000}`, string(data))
}
