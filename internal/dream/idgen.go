package dream

import (
	"fmt"
	"time"
)

// nextUnitID builds a deterministic unit identifier from {profile, mode,
// algorithm id, date, sequence} and reserves the first one free against both
// the store and the ids already created in this invocation. Repeated
// same-day runs get a bumped sequence instead of silently overwriting a
// prior unit.
func (c *Consolidator) nextUnitID(profile, mode, algorithmID string) (string, error) {
	date := time.Now().Format("20060102")
	base := fmt.Sprintf("%s_%s_%s_%s", profile, mode, algorithmID, date)

	for seq := 1; ; seq++ {
		id := base
		if seq > 1 {
			id = fmt.Sprintf("%s_%d", base, seq)
		}
		if c.createdIDs[id] {
			continue
		}

		// Dual-tier runs also claim the doubled sibling; both must be free.
		exists, err := c.units.Exists(id)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}
		if mode == "dual" {
			taken, err := c.units.Exists(id + doubledSuffix)
			if err != nil {
				return "", err
			}
			if taken || c.createdIDs[id+doubledSuffix] {
				continue
			}
			c.createdIDs[id+doubledSuffix] = true
		}

		c.createdIDs[id] = true
		return id, nil
	}
}
