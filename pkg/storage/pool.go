package storage

import (
	"errors"

	"github.com/tidwall/gjson"
)

var ErrInvalidPoolList = errors.New("pool list must be a json array")

type VDevGroup string

const (
	VDevGroupData    VDevGroup = "data"
	VDevGroupCache   VDevGroup = "cache"
	VDevGroupLog     VDevGroup = "log"
	VDevGroupSpare   VDevGroup = "spare"
	VDevGroupSpecial VDevGroup = "special"
	VDevGroupDedup   VDevGroup = "dedup"
)

// VDevGroups is the order groups are listed in.
var VDevGroups = []VDevGroup{
	VDevGroupData,
	VDevGroupLog,
	VDevGroupCache,
	VDevGroupSpare,
	VDevGroupSpecial,
	VDevGroupDedup,
}

const vdevTypeDisk = "DISK"

type ErrorCounts struct {
	Read     int64
	Write    int64
	Checksum int64
}

func (e ErrorCounts) Total() int64 {
	return e.Read + e.Write + e.Checksum
}

func (e *ErrorCounts) add(other ErrorCounts) {
	e.Read += other.Read
	e.Write += other.Write
	e.Checksum += other.Checksum
}

type Disk struct {
	Name   string
	Disk   string
	Path   string
	Status string
	Errors ErrorCounts
}

type VDev struct {
	Group     VDevGroup
	Name      string
	Type      string
	Status    string
	Size      int64
	Allocated int64
	Disks     []Disk
	// Errors sums the vdev's own counters and those of its disks.
	Errors ErrorCounts
}

type Scan struct {
	Function   string
	State      string
	Percentage float64
	Errors     int64
}

type Pool struct {
	ID          int64
	Name        string
	GUID        string
	Path        string
	Status      string
	Healthy     bool
	Size        int64
	Allocated   int64
	Free        int64
	UsedPercent float64
	VDevs       []VDev
	Errors      ErrorCounts
	Scan        *Scan
}

// ParsePools flattens the pool list returned by the pool endpoint.
func ParsePools(data []byte) ([]Pool, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidPoolList
	}
	result := gjson.ParseBytes(data)
	if !result.IsArray() {
		return nil, ErrInvalidPoolList
	}

	pools := make([]Pool, 0, len(result.Array()))
	result.ForEach(func(_, value gjson.Result) bool {
		pools = append(pools, parsePool(value))
		return true
	})
	return pools, nil
}

func parsePool(value gjson.Result) Pool {
	pool := Pool{
		ID:      value.Get("id").Int(),
		Name:    value.Get("name").String(),
		GUID:    value.Get("guid").String(),
		Path:    value.Get("path").String(),
		Status:  value.Get("status").String(),
		Healthy: value.Get("healthy").Bool(),
	}

	topology := value.Get("topology")
	for _, group := range VDevGroups {
		topology.Get(string(group)).ForEach(func(_, vdevValue gjson.Result) bool {
			vdev := parseVDev(group, vdevValue)
			pool.Errors.add(vdev.Errors)
			pool.VDevs = append(pool.VDevs, vdev)
			return true
		})
	}

	if value.Get("size").Exists() {
		pool.Size = value.Get("size").Int()
		pool.Allocated = value.Get("allocated").Int()
		pool.Free = value.Get("free").Int()
	} else {
		// Older servers only report capacity on the data vdevs.
		for _, vdev := range pool.VDevs {
			if vdev.Group != VDevGroupData {
				continue
			}
			pool.Size += vdev.Size
			pool.Allocated += vdev.Allocated
		}
		pool.Free = pool.Size - pool.Allocated
	}
	if pool.Size > 0 {
		pool.UsedPercent = float64(pool.Allocated) / float64(pool.Size) * 100
	}

	if scan := value.Get("scan"); scan.IsObject() {
		pool.Scan = &Scan{
			Function:   scan.Get("function").String(),
			State:      scan.Get("state").String(),
			Percentage: scan.Get("percentage").Float(),
			Errors:     scan.Get("errors").Int(),
		}
	}

	return pool
}

func parseErrors(stats gjson.Result) ErrorCounts {
	return ErrorCounts{
		Read:     stats.Get("read_errors").Int(),
		Write:    stats.Get("write_errors").Int(),
		Checksum: stats.Get("checksum_errors").Int(),
	}
}

func parseVDev(group VDevGroup, value gjson.Result) VDev {
	stats := value.Get("stats")
	vdev := VDev{
		Group:     group,
		Name:      value.Get("name").String(),
		Type:      value.Get("type").String(),
		Status:    value.Get("status").String(),
		Size:      stats.Get("size").Int(),
		Allocated: stats.Get("allocated").Int(),
		Errors:    parseErrors(stats),
	}

	children := value.Get("children").Array()
	if len(children) == 0 && vdev.Type == vdevTypeDisk {
		// A single disk stripe is its own only member.
		vdev.Disks = []Disk{parseDisk(value)}
		return vdev
	}

	for _, child := range children {
		disk := parseDisk(child)
		vdev.Errors.add(disk.Errors)
		vdev.Disks = append(vdev.Disks, disk)
	}
	return vdev
}

func parseDisk(value gjson.Result) Disk {
	return Disk{
		Name:   value.Get("name").String(),
		Disk:   value.Get("disk").String(),
		Path:   value.Get("path").String(),
		Status: value.Get("status").String(),
		Errors: parseErrors(value.Get("stats")),
	}
}
