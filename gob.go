package swcache

import (
	"context"
	"encoding/gob"
	"io"
)

// dumpRecord is a single stream element of a storage dump.
type dumpRecord struct {
	Store string
	Key   string
	Resp  *Response
}

// Dump saves all stores with their entries and returns a number of processed entries.
//
// Stores are written in creation order, so that Restore preserves the order of Keys.
func (s *MemoryStorage) Dump(w io.Writer) (int, error) {
	encoder := gob.NewEncoder(w)
	ctx := context.Background()
	n := 0

	names, err := s.Keys(ctx)
	if err != nil {
		return 0, err
	}

	for _, name := range names {
		ms := s.open(ctx, name)

		keys, err := ms.Keys(ctx)
		if err != nil {
			return n, err
		}

		// Empty stores are kept as a record without response.
		if len(keys) == 0 {
			if err := encoder.Encode(dumpRecord{Store: name}); err != nil {
				return n, err
			}

			continue
		}

		for _, k := range keys {
			ms.RLock()
			e, ok := ms.data[k]
			ms.RUnlock()

			if !ok {
				continue
			}

			if err := encoder.Encode(dumpRecord{Store: name, Key: k, Resp: e.R}); err != nil {
				return n, err
			}

			n++
		}
	}

	return n, nil
}

// Restore loads stores and entries from a dump and returns number of processed entries.
func (s *MemoryStorage) Restore(r io.Reader) (int, error) {
	decoder := gob.NewDecoder(r)
	ctx := context.Background()
	n := 0

	for {
		var rec dumpRecord

		err := decoder.Decode(&rec)
		if err == io.EOF {
			break
		}

		if err != nil {
			return n, err
		}

		ms := s.open(ctx, rec.Store)

		if rec.Resp == nil {
			continue
		}

		ms.Lock()
		if prev, ok := ms.data[rec.Key]; ok {
			ms.bytes -= int64(len(prev.R.Body))
		}

		ms.writes++
		ms.data[rec.Key] = entry{K: rec.Key, R: rec.Resp, N: ms.writes}
		ms.bytes += int64(len(rec.Resp.Body))
		ms.Unlock()

		n++
	}

	return n, nil
}
