package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/keyhound/keyhound/internal/engine"
	"github.com/keyhound/keyhound/internal/logging"
	"github.com/keyhound/keyhound/internal/types"
)

const (
	KindDiscover = "discover"
	KindValidate = "validate"

	fileName = "keyhound_audit.jsonl"
	topN     = 10
)

// RunRecord is one line of the ledger. It never holds a raw candidate value.
type RunRecord struct {
	Timestamp   time.Time      `json:"timestamp"`
	RunID       string         `json:"run_id"`
	Kind        string         `json:"kind"`
	Term        string         `json:"term,omitempty"`
	ShardsRun   int            `json:"shards_run,omitempty"`
	ShardsTotal int            `json:"shards_total,omitempty"`
	Candidates  int            `json:"candidates"`
	NewCount    int            `json:"new_candidates,omitempty"`
	Statuses    map[string]int `json:"status_counts,omitempty"`
	Duration    string         `json:"duration"`
	Interrupted bool           `json:"interrupted,omitempty"`
	Aborted     string         `json:"aborted,omitempty"`
	Top         []Summary      `json:"top,omitempty"`
}

// Summary identifies a candidate by masked form and fingerprint only.
type Summary struct {
	Masked      string `json:"masked"`
	Fingerprint string `json:"fingerprint"`
	Shard       string `json:"shard,omitempty"`
	Status      string `json:"status,omitempty"`
}

type AuditLog struct {
	logPath string
}

// NewAuditLog returns a ledger stored in dir.
func NewAuditLog(dir string) *AuditLog {
	return &AuditLog{logPath: filepath.Join(dir, fileName)}
}

func (a *AuditLog) Path() string { return a.logPath }

// LoadHistory returns every readable record, newest first. Lines that fail
// to decode are skipped. A missing ledger yields no records.
func (a *AuditLog) LoadHistory() ([]RunRecord, error) {
	f, err := os.Open(a.logPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []RunRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var record RunRecord
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// LogRun appends record to the ledger.
func (a *AuditLog) LogRun(record RunRecord) error {
	if record.RunID == "" {
		record.RunID = fmt.Sprintf("run_%d", time.Now().Unix())
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if err := os.MkdirAll(filepath.Dir(a.logPath), 0o700); err != nil {
		return fmt.Errorf("failed to create audit dir: %w", err)
	}

	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// DeleteRecord removes the record at index, counted newest first as
// returned by LoadHistory.
func (a *AuditLog) DeleteRecord(index int) error {
	records, err := a.LoadHistory()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(records) {
		return fmt.Errorf("invalid index: %d", index)
	}
	records = append(records[:index], records[index+1:]...)

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to rewrite audit log: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to write audit record: %w", err)
		}
	}
	return nil
}

// DiscoverRecord summarizes a discovery run. newCount is the number of
// candidates not present in the baseline (equal to the total without one).
func DiscoverRecord(res engine.DiscoverResult, newCount int) RunRecord {
	rec := RunRecord{
		Timestamp:   res.FinishedAt,
		RunID:       res.RunID,
		Kind:        KindDiscover,
		Term:        res.Term,
		ShardsRun:   len(res.Stats),
		ShardsTotal: len(res.Shards),
		Candidates:  len(res.Candidates),
		NewCount:    newCount,
		Duration:    res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).String(),
		Interrupted: res.Interrupted,
		Aborted:     res.Aborted,
	}
	cands := append([]types.Candidate(nil), res.Candidates...)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].OccurrenceCount > cands[j].OccurrenceCount })
	for i, c := range cands {
		if i >= topN {
			break
		}
		rec.Top = append(rec.Top, Summary{
			Masked:      logging.Mask(c.Value),
			Fingerprint: logging.Fingerprint(c.Value),
			Shard:       c.FirstSeenShard,
		})
	}
	return rec
}

// ValidateRecord summarizes a validation run; Top lists the live keys.
func ValidateRecord(res engine.ValidateResult) RunRecord {
	rec := RunRecord{
		Timestamp:   res.FinishedAt,
		RunID:       res.RunID,
		Kind:        KindValidate,
		Candidates:  res.Total,
		Statuses:    map[string]int{},
		Duration:    res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).String(),
		Interrupted: res.Interrupted,
	}
	for s, n := range res.Counts() {
		rec.Statuses[string(s)] = n
	}
	for _, o := range res.Outcomes {
		if o.Status != types.StatusValid || len(rec.Top) >= topN {
			continue
		}
		rec.Top = append(rec.Top, Summary{
			Masked:      logging.Mask(o.CandidateValue),
			Fingerprint: logging.Fingerprint(o.CandidateValue),
			Status:      string(o.Status),
		})
	}
	return rec
}
