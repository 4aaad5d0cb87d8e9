package dashboard

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/buger/jsonparser"
)

const (
	RealtimeCollection = "reporting.realtime"

	LinkStateUp = "LINK_STATE_UP"
)

var ErrInvalidRealtimeFields = errors.New("realtime fields must be a json object")

type Memory struct {
	Total     int64
	Available int64
	Used      int64
	Percent   float64
}

type Interface struct {
	Name              string
	LinkUp            bool
	Speed             int64
	ReceivedBytesRate float64
	SentBytesRate     float64
}

// Realtime is one reporting.realtime sample. Sections missing from the event stay zero.
type Realtime struct {
	CPUUsage        float64
	CPUTemperatures []float64
	Memory          Memory
	Interfaces      []Interface
	ARCSize         int64
	ARCMaxSize      int64
}

// ParseRealtime extracts a sample from the fields of a reporting.realtime event.
func ParseRealtime(fields []byte) (*Realtime, error) {
	_, dataType, _, err := jsonparser.Get(fields)
	if err != nil {
		return nil, err
	}
	if dataType != jsonparser.Object {
		return nil, ErrInvalidRealtimeFields
	}

	realtime := &Realtime{}
	realtime.CPUUsage = extractCPUUsage(fields)

	realtime.CPUTemperatures, err = extractTemperatures(fields)
	if err != nil {
		return nil, fmt.Errorf("cpu temperatures: %w", err)
	}

	realtime.Memory = extractMemory(fields)

	realtime.Interfaces, err = extractInterfaces(fields)
	if err != nil {
		return nil, fmt.Errorf("interfaces: %w", err)
	}

	realtime.ARCSize = extractInt(fields, "zfs", "arc_size")
	realtime.ARCMaxSize = extractInt(fields, "zfs", "arc_max_size")

	return realtime, nil
}

func extractFloat(data []byte, keys ...string) (float64, bool) {
	value, err := jsonparser.GetFloat(data, keys...)
	if err != nil {
		return 0, false
	}
	return value, true
}

func extractInt(data []byte, keys ...string) int64 {
	value, _ := extractFloat(data, keys...)
	return int64(value)
}

func extractCPUUsage(data []byte) float64 {
	if usage, ok := extractFloat(data, "cpu", "average", "usage"); ok {
		return usage
	}
	if idle, ok := extractFloat(data, "cpu", "average", "idle"); ok {
		return 100 - idle
	}
	return 0
}

// extractTemperatures reads cpu.temperature_celsius, which is either an array or an object keyed by core.
func extractTemperatures(data []byte) ([]float64, error) {
	value, dataType, _, err := jsonparser.Get(data, "cpu", "temperature_celsius")
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	switch dataType {
	case jsonparser.Array:
		var temperatures []float64
		_, err = jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
			if itemType != jsonparser.Number {
				return
			}
			if temperature, parseErr := jsonparser.ParseFloat(item); parseErr == nil {
				temperatures = append(temperatures, temperature)
			}
		})
		return temperatures, err
	case jsonparser.Object:
		type coreTemperature struct {
			core        int
			temperature float64
		}
		var cores []coreTemperature
		err = jsonparser.ObjectEach(value, func(key []byte, item []byte, itemType jsonparser.ValueType, _ int) error {
			if itemType != jsonparser.Number {
				return nil
			}
			core, convErr := strconv.Atoi(string(key))
			if convErr != nil {
				return nil
			}
			temperature, parseErr := jsonparser.ParseFloat(item)
			if parseErr != nil {
				return parseErr
			}
			cores = append(cores, coreTemperature{core: core, temperature: temperature})
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Slice(cores, func(i, j int) bool {
			return cores[i].core < cores[j].core
		})
		temperatures := make([]float64, 0, len(cores))
		for _, core := range cores {
			temperatures = append(temperatures, core.temperature)
		}
		return temperatures, nil
	case jsonparser.Null:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected type %s", dataType)
}

func extractMemory(data []byte) Memory {
	var memory Memory

	if total, ok := extractFloat(data, "virtual_memory", "total"); ok {
		memory.Total = int64(total)
		memory.Available = extractInt(data, "virtual_memory", "available")
		if used, ok := extractFloat(data, "virtual_memory", "used"); ok {
			memory.Used = int64(used)
		} else {
			memory.Used = memory.Total - memory.Available
		}
		if percent, ok := extractFloat(data, "virtual_memory", "percent"); ok {
			memory.Percent = percent
			return memory
		}
	} else {
		memory.Total = extractInt(data, "memory", "physical_memory_total")
		memory.Available = extractInt(data, "memory", "physical_memory_available")
		memory.Used = memory.Total - memory.Available
	}

	if memory.Total > 0 {
		memory.Percent = float64(memory.Used) / float64(memory.Total) * 100
	}
	return memory
}

func extractInterfaces(data []byte) ([]Interface, error) {
	value, dataType, _, err := jsonparser.Get(data, "interfaces")
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if dataType != jsonparser.Object {
		return nil, fmt.Errorf("unexpected type %s", dataType)
	}

	var interfaces []Interface
	err = jsonparser.ObjectEach(value, func(key []byte, item []byte, itemType jsonparser.ValueType, _ int) error {
		if itemType != jsonparser.Object {
			return nil
		}
		iface := Interface{Name: string(key)}
		iface.ReceivedBytesRate, _ = extractFloat(item, "received_bytes_rate")
		iface.SentBytesRate, _ = extractFloat(item, "sent_bytes_rate")
		iface.Speed = extractInt(item, "speed")
		if linkState, getErr := jsonparser.GetString(item, "link_state"); getErr == nil {
			iface.LinkUp = linkState == LinkStateUp
		}
		interfaces = append(interfaces, iface)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(interfaces, func(i, j int) bool {
		return interfaces[i].Name < interfaces[j].Name
	})
	return interfaces, nil
}
