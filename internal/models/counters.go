package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// DocCounters maps a year ("2025") to the last sequence used per document type.
type DocCounters map[string]map[DocumentType]int

func (c DocCounters) Get(year int, t DocumentType) int {
	return c[strconv.Itoa(year)][t]
}

func (c DocCounters) Set(year int, t DocumentType, seq int) {
	key := strconv.Itoa(year)
	if c[key] == nil {
		c[key] = make(map[DocumentType]int)
	}
	c[key][t] = seq
}

// MergeMax raises each bucket in c to at least the value in other.
func (c DocCounters) MergeMax(other DocCounters) {
	for year, byType := range other {
		for t, seq := range byType {
			if c[year] == nil {
				c[year] = make(map[DocumentType]int)
			}
			if seq > c[year][t] {
				c[year][t] = seq
			}
		}
	}
}

func (c DocCounters) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

func (c *DocCounters) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = DocCounters{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan doc counters: unsupported type %T", src)
	}

	counters := DocCounters{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &counters); err != nil {
			return fmt.Errorf("scan doc counters: %w", err)
		}
	}
	*c = counters
	return nil
}
