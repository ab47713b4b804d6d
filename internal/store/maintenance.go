package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/obiverse/beewallet-core/internal/nineerr"
)

// defaultRetention is the fallback patch-retention window when no anchor
// exists to anchor a compaction threshold to.
const defaultRetention = 100

// HistoryStats summarizes a key's patch/anchor history.
type HistoryStats struct {
	PatchCount int
	AnchorCount int
	TotalBytes  int64
	OldestSeq   uint64
	NewestSeq   uint64
}

// ShouldCompact reports whether this key's history has grown past the
// maintenance thresholds (more than 200 patches, or more than 1MB of
// patch+anchor bytes).
func (h HistoryStats) ShouldCompact() bool {
	return h.PatchCount > 200 || h.TotalBytes > 1_000_000
}

// AutoRetentionThreshold returns the seq below which patches are eligible
// for compaction: the minimum anchor version if any anchors exist for key,
// else the latest seq minus defaultRetention (floored at 0).
func (s *Store) AutoRetentionThreshold(key string) (uint64, error) {
	anchors, err := s.Anchors(key)
	if err != nil {
		return 0, err
	}
	if len(anchors) > 0 {
		min := anchors[0].Scroll.Metadata.Version
		for _, a := range anchors[1:] {
			if a.Scroll.Metadata.Version < min {
				min = a.Scroll.Metadata.Version
			}
		}
		return min, nil
	}

	history, err := s.History(key)
	if err != nil {
		return 0, err
	}
	var newest uint64
	for _, p := range history {
		if p.Seq > newest {
			newest = p.Seq
		}
	}
	if newest <= defaultRetention {
		return 0, nil
	}
	return newest - defaultRetention, nil
}

// Compact deletes all patches for key with seq below threshold (caller's
// keepSinceSeq, or AutoRetentionThreshold if nil), and returns the count
// removed.
func (s *Store) Compact(key string, keepSinceSeq *uint64) (int, error) {
	threshold := uint64(0)
	if keepSinceSeq != nil {
		threshold = *keepSinceSeq
	} else {
		t, err := s.AutoRetentionThreshold(key)
		if err != nil {
			return 0, err
		}
		threshold = t
	}

	dir := s.patchesDir(key)
	history, err := s.History(key)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, p := range history {
		if p.Seq < threshold {
			file := filepath.Join(dir, fmt.Sprintf("%08d.json", p.Seq))
			if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("%w: remove patch file: %v", nineerr.ErrInternal, err)
			}
			removed++
		}
	}
	return removed, nil
}

// CompactAll applies Compact to every key currently listed under prefix.
func (s *Store) CompactAll(prefix string) (int, error) {
	keys, err := s.List(prefix)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, k := range keys {
		n, err := s.Compact(k, nil)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// HistoryStatsFor returns patch count, anchor count, total bytes, and
// oldest/newest seq for key.
func (s *Store) HistoryStatsFor(key string) (HistoryStats, error) {
	history, err := s.History(key)
	if err != nil {
		return HistoryStats{}, err
	}
	anchors, err := s.Anchors(key)
	if err != nil {
		return HistoryStats{}, err
	}

	stats := HistoryStats{PatchCount: len(history), AnchorCount: len(anchors)}
	for i, p := range history {
		if i == 0 || p.Seq < stats.OldestSeq {
			stats.OldestSeq = p.Seq
		}
		if p.Seq > stats.NewestSeq {
			stats.NewestSeq = p.Seq
		}
	}

	stats.TotalBytes += dirSize(s.patchesDir(key))
	stats.TotalBytes += dirSize(s.anchorsDir(key))
	return stats, nil
}

func dirSize(dir string) int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total
}

// Delete removes a key's current scroll and its entire history
// (patches + anchors).
func (s *Store) Delete(key string) error {
	if err := s.fb.Delete(key); err != nil {
		return err
	}
	if err := os.RemoveAll(s.historyDir(key)); err != nil {
		return fmt.Errorf("%w: remove history dir: %v", nineerr.ErrInternal, err)
	}
	return nil
}

// PrefixStats aggregates HistoryStats across every key under prefix.
type PrefixStats struct {
	KeyCount    int
	TotalPatch  int
	TotalAnchor int
	TotalBytes  int64
}

// PrefixStatsFor aggregates history stats over every key currently listed
// under prefix.
func (s *Store) PrefixStatsFor(prefix string) (PrefixStats, error) {
	keys, err := s.List(prefix)
	if err != nil {
		return PrefixStats{}, err
	}
	var out PrefixStats
	out.KeyCount = len(keys)
	for _, k := range keys {
		st, err := s.HistoryStatsFor(k)
		if err != nil {
			return PrefixStats{}, err
		}
		out.TotalPatch += st.PatchCount
		out.TotalAnchor += st.AnchorCount
		out.TotalBytes += st.TotalBytes
	}
	return out, nil
}

// Prune lists keys under prefix, ranks them by updated_at/created_at
// (oldest first), and deletes the oldest until at most keepCount remain.
func (s *Store) Prune(prefix string, keepCount int) (int, error) {
	keys, err := s.List(prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) <= keepCount {
		return 0, nil
	}

	type ranked struct {
		key string
		at  time.Time
	}
	rankedKeys := make([]ranked, 0, len(keys))
	for _, k := range keys {
		sc, ok, err := s.Read(k)
		if err != nil {
			return 0, err
		}
		var at time.Time
		if ok {
			if sc.Metadata.UpdatedAt != nil {
				at = *sc.Metadata.UpdatedAt
			} else if sc.Metadata.CreatedAt != nil {
				at = *sc.Metadata.CreatedAt
			}
		}
		rankedKeys = append(rankedKeys, ranked{key: k, at: at})
	}
	sort.Slice(rankedKeys, func(i, j int) bool { return rankedKeys[i].at.Before(rankedKeys[j].at) })

	toRemove := len(rankedKeys) - keepCount
	removed := 0
	for i := 0; i < toRemove; i++ {
		if err := s.Delete(rankedKeys[i].key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// PruneOlderThan deletes every key under prefix whose timestamp is older
// than now-maxAge; keys with no timestamp are always kept.
func (s *Store) PruneOlderThan(prefix string, maxAge time.Duration) (int, error) {
	keys, err := s.List(prefix)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for _, k := range keys {
		sc, ok, err := s.Read(k)
		if err != nil {
			return removed, err
		}
		if !ok {
			continue
		}
		var at *time.Time
		if sc.Metadata.UpdatedAt != nil {
			at = sc.Metadata.UpdatedAt
		} else if sc.Metadata.CreatedAt != nil {
			at = sc.Metadata.CreatedAt
		}
		if at == nil {
			continue
		}
		if at.Before(cutoff) {
			if err := s.Delete(k); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// MaintenanceReport tallies the work done by AutoMaintenance.
type MaintenanceReport struct {
	TaskFailurePruned int
	LnEventsPruned    int
	HiveEventsPruned  int
	WalletCompacted   int
}

// AutoMaintenance applies the fixed retention policy every store runs on a
// schedule: keep the newest 100 /signals/task-failure scrolls, the newest
// 1000 /ln/events, the newest 500 /hive/events, and compact all patch
// history under /wallet.
func (s *Store) AutoMaintenance() (MaintenanceReport, error) {
	var report MaintenanceReport
	var err error

	report.TaskFailurePruned, err = s.Prune("/signals/task-failure", 100)
	if err != nil {
		return report, err
	}
	report.LnEventsPruned, err = s.Prune("/ln/events", 1000)
	if err != nil {
		return report, err
	}
	report.HiveEventsPruned, err = s.Prune("/hive/events", 500)
	if err != nil {
		return report, err
	}
	report.WalletCompacted, err = s.CompactAll("/wallet")
	if err != nil {
		return report, err
	}
	return report, nil
}
