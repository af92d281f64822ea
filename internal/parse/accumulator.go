package parse

import (
	"sort"
	"time"
)

// accumulator is the mutable metadata of one parse pass. A fresh value is
// made per ParseReader call and frozen into Metadata at end of file.
type accumulator struct {
	meta         Metadata
	models       map[string]struct{}
	serviceTiers map[string]struct{}
	filesRead    map[string]struct{}
	filesWritten map[string]struct{}
	filesCreated map[string]struct{}
}

func newAccumulator(sessionID string) *accumulator {
	return &accumulator{
		meta: Metadata{
			SessionID:      sessionID,
			ToolCallCounts: map[string]int{},
			StopReasons:    map[string]int{},
			EntryCounts:    map[string]int{},
		},
		models:       map[string]struct{}{},
		serviceTiers: map[string]struct{}{},
		filesRead:    map[string]struct{}{},
		filesWritten: map[string]struct{}{},
		filesCreated: map[string]struct{}{},
	}
}

func (a *accumulator) countEntry(entryType string) {
	a.meta.EntryCounts[entryType]++
}

func (a *accumulator) observeTimestamp(ts string) {
	if ts == "" {
		return
	}
	if a.meta.FirstTimestamp == "" {
		a.meta.FirstTimestamp = ts
	}
	a.meta.LastTimestamp = ts
}

// captureSessionFields fills the session-scoped fields that are still
// empty. A value seen first is never overwritten.
func (a *accumulator) captureSessionFields(rec Record) {
	setOnce(&a.meta.Version, rec.Str("version"))
	setOnce(&a.meta.Cwd, rec.Str("cwd"))
	setOnce(&a.meta.GitBranch, rec.Str("gitBranch"))
	setOnce(&a.meta.PermissionMode, rec.Str("permissionMode"))
}

func setOnce(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func (a *accumulator) addUsage(model string, u *Usage) {
	if model != "" {
		a.models[model] = struct{}{}
	}
	if u == nil {
		return
	}
	a.meta.TotalInputTokens += u.InputTokens
	a.meta.TotalOutputTokens += u.OutputTokens
	a.meta.TotalCacheReadTokens += u.CacheRead
	a.meta.TotalCacheCreationTokens += u.CacheCreation
	a.meta.TotalEphemeral5mTokens += u.Ephemeral5m
	a.meta.TotalEphemeral1hTokens += u.Ephemeral1h
	if u.ServiceTier != "" {
		a.serviceTiers[u.ServiceTier] = struct{}{}
	}
}

func (a *accumulator) addToolCall(name string) {
	a.meta.TotalToolCalls++
	a.meta.ToolCallCounts[name]++
}

func (a *accumulator) markRead(path string) {
	if path != "" {
		a.filesRead[path] = struct{}{}
	}
}

func (a *accumulator) markWritten(path string) {
	if path != "" {
		a.filesWritten[path] = struct{}{}
	}
}

// markWrite records a whole-file write: an overwrite of a file the session
// already knows about, or the creation of a new one.
func (a *accumulator) markWrite(path string) {
	if path == "" {
		return
	}
	_, read := a.filesRead[path]
	_, written := a.filesWritten[path]
	if read || written {
		a.filesWritten[path] = struct{}{}
		return
	}
	a.filesCreated[path] = struct{}{}
}

func (a *accumulator) addBash(cmd BashCommand) {
	a.meta.BashCommands = append(a.meta.BashCommands, cmd)
}

func (a *accumulator) addWeb(w WebAccess) {
	if w.Target != "" {
		a.meta.WebFetches = append(a.meta.WebFetches, w)
	}
}

func (a *accumulator) addStopReason(reason string) {
	if reason != "" {
		a.meta.StopReasons[reason]++
	}
}

func (a *accumulator) addCompaction(b CompactBoundary) {
	a.meta.Compactions++
	a.meta.CompactBoundaries = append(a.meta.CompactBoundaries, b)
}

// freeze converts the sets to sorted slices, derives the wall-clock
// duration and returns the finished metadata.
func (a *accumulator) freeze() Metadata {
	m := a.meta
	m.ModelsUsed = sortedKeys(a.models)
	m.ServiceTiers = sortedKeys(a.serviceTiers)
	m.FilesRead = sortedKeys(a.filesRead)
	m.FilesWritten = sortedKeys(a.filesWritten)
	m.FilesCreated = sortedKeys(a.filesCreated)
	if m.BashCommands == nil {
		m.BashCommands = []BashCommand{}
	}
	if m.WebFetches == nil {
		m.WebFetches = []WebAccess{}
	}
	if m.CompactBoundaries == nil {
		m.CompactBoundaries = []CompactBoundary{}
	}
	m.WallTimeSeconds = wallTime(m.FirstTimestamp, m.LastTimestamp)
	return m
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func wallTime(first, last string) *float64 {
	t0, ok0 := ParseTimestamp(first)
	t1, ok1 := ParseTimestamp(last)
	if !ok0 || !ok1 {
		return nil
	}
	secs := t1.Sub(t0).Seconds()
	if secs < 0 {
		secs = 0
	}
	return &secs
}

// ParseTimestamp parses the ISO-8601 forms the producer writes.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
