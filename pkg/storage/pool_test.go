package storage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const poolList = `[
	{
		"id": 1, "name": "tank", "guid": "1234", "path": "/mnt/tank", "status": "ONLINE", "healthy": true,
		"size": 1000, "allocated": 250, "free": 750,
		"scan": {"function": "SCRUB", "state": "FINISHED", "percentage": 100, "errors": 0},
		"topology": {
			"data": [{
				"name": "mirror-0", "type": "MIRROR", "status": "ONLINE",
				"stats": {"read_errors": 0, "write_errors": 0, "checksum_errors": 1, "size": 1000, "allocated": 250},
				"children": [
					{"name": "sda2", "disk": "sda", "path": "/dev/sda2", "type": "DISK", "status": "ONLINE",
					 "stats": {"read_errors": 2, "write_errors": 0, "checksum_errors": 0}, "children": []},
					{"name": "sdb2", "disk": "sdb", "path": "/dev/sdb2", "type": "DISK", "status": "ONLINE",
					 "stats": {"read_errors": 0, "write_errors": 3, "checksum_errors": 0}, "children": []}
				]
			}],
			"log": [],
			"cache": [{"name": "nvme0n1p1", "disk": "nvme0n1", "path": "/dev/nvme0n1p1", "type": "DISK", "status": "ONLINE",
			           "stats": {"read_errors": 0, "write_errors": 0, "checksum_errors": 0}, "children": []}],
			"spare": [], "special": [], "dedup": []
		}
	},
	{
		"id": 2, "name": "boot", "status": "DEGRADED", "healthy": false, "scan": null,
		"topology": {
			"data": [{"name": "sdc3", "disk": "sdc", "type": "DISK", "status": "DEGRADED",
			          "stats": {"read_errors": 0, "write_errors": 0, "checksum_errors": 0, "size": 200, "allocated": 50},
			          "children": []}]
		}
	}
]`

func TestParsePools(t *testing.T) {
	t.Run("should flatten topology and aggregate errors", func(t *testing.T) {
		pools, err := ParsePools([]byte(poolList))
		require.NoError(t, err)
		require.Len(t, pools, 2)

		expected := Pool{
			ID: 1, Name: "tank", GUID: "1234", Path: "/mnt/tank", Status: "ONLINE", Healthy: true,
			Size: 1000, Allocated: 250, Free: 750, UsedPercent: 25,
			VDevs: []VDev{
				{
					Group: VDevGroupData, Name: "mirror-0", Type: "MIRROR", Status: "ONLINE", Size: 1000, Allocated: 250,
					Disks: []Disk{
						{Name: "sda2", Disk: "sda", Path: "/dev/sda2", Status: "ONLINE", Errors: ErrorCounts{Read: 2}},
						{Name: "sdb2", Disk: "sdb", Path: "/dev/sdb2", Status: "ONLINE", Errors: ErrorCounts{Write: 3}},
					},
					Errors: ErrorCounts{Read: 2, Write: 3, Checksum: 1},
				},
				{
					Group: VDevGroupCache, Name: "nvme0n1p1", Type: "DISK", Status: "ONLINE",
					Disks: []Disk{{Name: "nvme0n1p1", Disk: "nvme0n1", Path: "/dev/nvme0n1p1", Status: "ONLINE"}},
				},
			},
			Errors: ErrorCounts{Read: 2, Write: 3, Checksum: 1},
			Scan:   &Scan{Function: "SCRUB", State: "FINISHED", Percentage: 100},
		}
		if diff := cmp.Diff(expected, pools[0]); diff != "" {
			t.Errorf("unexpected pool (-want +got):\n%s", diff)
		}
		assert.Equal(t, int64(6), pools[0].Errors.Total())
	})

	t.Run("should compute capacity from data vdevs when the pool has none", func(t *testing.T) {
		pools, err := ParsePools([]byte(poolList))
		require.NoError(t, err)

		boot := pools[1]
		assert.Equal(t, "boot", boot.Name)
		assert.False(t, boot.Healthy)
		assert.Equal(t, int64(200), boot.Size)
		assert.Equal(t, int64(50), boot.Allocated)
		assert.Equal(t, int64(150), boot.Free)
		assert.Equal(t, 25.0, boot.UsedPercent)
		assert.Nil(t, boot.Scan)
		require.Len(t, boot.VDevs, 1)
		assert.Len(t, boot.VDevs[0].Disks, 1)
	})

	t.Run("should return an empty list", func(t *testing.T) {
		pools, err := ParsePools([]byte(`[]`))
		require.NoError(t, err)
		assert.Empty(t, pools)
	})

	t.Run("should reject anything but an array", func(t *testing.T) {
		_, err := ParsePools([]byte(`{"id":1}`))
		assert.Equal(t, ErrInvalidPoolList, err)

		_, err = ParsePools([]byte(`[{`))
		assert.Equal(t, ErrInvalidPoolList, err)
	})
}
