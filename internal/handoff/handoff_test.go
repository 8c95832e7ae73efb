package handoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twistedxcom/agentsync/internal/store"
)

func validRecord() Record {
	return Record{
		FromAgent: "Claude",
		ToAgents:  []string{"Codex"},
		OwnerMode: OwnerSingle,
		Status:    StatusQueued,
		Summary:   "continue the login fix",
		CreatedAt: "2025-03-01T10:00:00.000Z",
	}
}

func TestValidateAcceptsValidRecord(t *testing.T) {
	assert.Empty(t, Validate(validRecord()))
}

func TestValidateCollectsAllViolations(t *testing.T) {
	errs := Validate(Record{})

	// Every missing field is reported, not just the first.
	assert.GreaterOrEqual(t, len(errs), 4)
}

func TestValidateOwnerModes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
		valid  bool
	}{
		{"single with one target", func(r *Record) {}, true},
		{"single with two targets", func(r *Record) { r.ToAgents = []string{"A", "B"} }, false},
		{"single with no target", func(r *Record) { r.ToAgents = nil }, false},
		{"shared with two targets", func(r *Record) {
			r.OwnerMode = OwnerShared
			r.ToAgents = []string{"A", "B"}
		}, true},
		{"shared with one target", func(r *Record) { r.OwnerMode = OwnerShared }, false},
		{"auto with capabilities", func(r *Record) {
			r.OwnerMode = OwnerAuto
			r.ToAgents = nil
			r.RequiredCapabilities = []string{"go", "sql"}
		}, true},
		{"auto without capabilities", func(r *Record) {
			r.OwnerMode = OwnerAuto
			r.ToAgents = nil
		}, false},
		{"auto with explicit targets", func(r *Record) {
			r.OwnerMode = OwnerAuto
			r.RequiredCapabilities = []string{"go"}
		}, false},
		{"unknown mode", func(r *Record) { r.OwnerMode = "committee" }, false},
		{"bad created_at", func(r *Record) { r.CreatedAt = "yesterday" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			errs := Validate(r)
			if tt.valid {
				assert.Empty(t, errs)
			} else {
				assert.NotEmpty(t, errs)
			}
		})
	}
}

func TestValidateSkipRecord(t *testing.T) {
	reason := "only touched docs"
	r := Record{
		FromAgent:       "Claude",
		OwnerMode:       OwnerSingle,
		Status:          StatusDone,
		Summary:         "no handoff: only touched docs",
		NoHandoffReason: &reason,
		CreatedAt:       "2025-03-01T10:00:00.000Z",
	}

	assert.True(t, r.IsSkip())
	assert.False(t, r.IsOpen())
	assert.Empty(t, Validate(r), "skip records are exempt from target counts")

	r.ToAgents = []string{"Codex"}
	assert.NotEmpty(t, Validate(r), "skip records must not name targets")
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	ws := store.NewWorkspace(t.TempDir())
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := Append(ws, validRecord(), now)
	require.NoError(t, err)
	assert.Equal(t, "HO-20250301-001", first.ID)

	second, err := Append(ws, validRecord(), now)
	require.NoError(t, err)
	assert.Equal(t, "HO-20250301-002", second.ID)

	f := Load(ws)
	assert.Equal(t, 1, f.Version)
	require.Len(t, f.Handoffs, 2)
}

func TestAppendRejectsInvalidRecord(t *testing.T) {
	ws := store.NewWorkspace(t.TempDir())

	_, err := Append(ws, Record{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid handoff")
	assert.Empty(t, Load(ws).Handoffs, "nothing persisted on validation failure")
}

func TestAppendRecordsInitialStateChange(t *testing.T) {
	ws := store.NewWorkspace(t.TempDir())
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	rec, err := Append(ws, validRecord(), now)
	require.NoError(t, err)
	require.Len(t, rec.StateHistory, 1)
	assert.Equal(t, "", rec.StateHistory[0].From)
	assert.Equal(t, StatusQueued, rec.StateHistory[0].To)
}

func TestUpdateStatusKeepsAuditTrail(t *testing.T) {
	ws := store.NewWorkspace(t.TempDir())
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	rec, err := Append(ws, validRecord(), now)
	require.NoError(t, err)

	updated, err := UpdateStatus(ws, rec.ID, StatusInProgress, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, updated.Status)
	require.Len(t, updated.StateHistory, 2)
	assert.Equal(t, StatusQueued, updated.StateHistory[1].From)
	assert.Equal(t, StatusInProgress, updated.StateHistory[1].To)

	_, err = UpdateStatus(ws, "HO-19990101-001", StatusDone, now)
	assert.Error(t, err)
}

func TestOpenExcludesDoneAndSkip(t *testing.T) {
	ws := store.NewWorkspace(t.TempDir())
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	queued, err := Append(ws, validRecord(), now)
	require.NoError(t, err)

	done := validRecord()
	done.Status = StatusDone
	_, err = Append(ws, done, now)
	require.NoError(t, err)

	reason := "docs only"
	skip := validRecord()
	skip.ToAgents = nil
	skip.NoHandoffReason = &reason
	_, err = Append(ws, skip, now)
	require.NoError(t, err)

	open := Open(ws)
	require.Len(t, open, 1)
	assert.Equal(t, queued.ID, open[0].ID)
}

func TestLoadMissingOrCorruptFile(t *testing.T) {
	ws := store.NewWorkspace(t.TempDir())

	f := Load(ws)
	assert.Equal(t, 1, f.Version)
	assert.Empty(t, f.Handoffs)
}

func TestRenderSection(t *testing.T) {
	assert.Equal(t, "*No open handoffs*", RenderSection(nil))

	rec := validRecord()
	rec.ID = "HO-20250301-001"
	rec.Branch = "fix/login"
	body := RenderSection([]Record{rec})

	assert.Contains(t, body, "HO-20250301-001")
	assert.Contains(t, body, "Claude")
	assert.Contains(t, body, "Codex")
	assert.Contains(t, body, "[fix/login]")
}

func TestMarkPromptCopied(t *testing.T) {
	ws := store.NewWorkspace(t.TempDir())

	rec, err := Append(ws, validRecord(), time.Now())
	require.NoError(t, err)

	require.NoError(t, MarkPromptCopied(ws, rec.ID))
	assert.True(t, Load(ws).Handoffs[0].PromptCopied)

	assert.Error(t, MarkPromptCopied(ws, "HO-19990101-001"))
}
