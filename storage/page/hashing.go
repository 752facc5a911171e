// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package page

import (
	"sync"
	"sync/atomic"

	"github.com/0xsoniclabs/tracy"
)

// hashRecords computes the hash of each record in place. With more than one
// worker, large batches are spread over that many goroutines; the result
// does not depend on the number of workers.
func hashRecords(store *Store, records []Record, workers int) {
	// Cut-off for a small number of pages, in which case we run sequentially.
	if workers <= 1 || len(records) < 16 {
		for i := range records {
			records[i].Hash = store.ComputeHash(records[i].Index, records[i].Data)
		}
		return
	}

	pos := atomic.Int32{}

	processRecords := func() {
		zone := tracy.ZoneBegin("page::hash_worker")
		defer zone.End()
		for {
			next := int(pos.Add(1) - 1)
			if next >= len(records) {
				return
			}
			record := &records[next]
			record.Hash = store.ComputeHash(record.Index, record.Data)
		}
	}

	var wg sync.WaitGroup
	for range workers - 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processRecords()
		}()
	}

	// This thread also helps with hashing.
	processRecords()
	wg.Wait()
}
