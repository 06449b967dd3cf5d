package section

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vsmecore/pkg/domain"
)

const reportA = "report-a"

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newBoundStore(t *testing.T, backend domain.Backend, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s := New(backend, governanceSection(), opts...)
	s.Bind(context.Background(), reportA)
	s.Wait()
	return s
}

func (s *Store) loadSeqValue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSeq
}

func TestUnboundStoreIsInert(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, governanceSection())

	require.NoError(t, s.Load(context.Background()))
	assert.ErrorIs(t, s.SetField("femaleGovernanceMembers", 1), ErrNoReport)
	assert.ErrorIs(t, s.Save(context.Background()), ErrNoReport)

	st := s.State()
	assert.False(t, st.Dirty)
	assert.False(t, st.Loading)
	assert.False(t, st.Loaded)
	assert.Equal(t, governanceSection().Initial, st.Current)

	fetches, upserts := backend.calls()
	assert.Zero(t, fetches)
	assert.Zero(t, upserts)

	s.Bind(context.Background(), "")
	s.Wait()
	fetches, _ = backend.calls()
	assert.Zero(t, fetches)
}

func TestNewReportKeepsInitialShape(t *testing.T) {
	s := newBoundStore(t, newFakeBackend())

	st := s.State()
	assert.True(t, st.Loaded)
	assert.False(t, st.Dirty)
	assert.Nil(t, st.LastSavedAt)
	assert.NoError(t, st.LastError)
	if diff := cmp.Diff(governanceSection().Initial, st.Current); diff != "" {
		t.Fatalf("current mismatch (-want +got):\n%s", diff)
	}
}

func TestDerivedIndexRecomputes(t *testing.T) {
	s := newBoundStore(t, newFakeBackend())

	require.NoError(t, s.SetFields(domain.Fields{
		"femaleGovernanceMembers":      3,
		"maleGovernanceMembers":        7,
		"otherGenderGovernanceMembers": 0,
	}))

	v, ok := s.Get("genderDiversityIndex")
	require.True(t, ok)
	assert.Equal(t, 30.0, v)
	assert.True(t, s.Dirty())
}

func TestSetFieldsRejectsSchemaViolationsAtomically(t *testing.T) {
	s := newBoundStore(t, newFakeBackend())

	err := s.SetFields(domain.Fields{"femaleGovernanceMembers": 2, "genderDiversityIndex": 50})
	assert.ErrorIs(t, err, domain.ErrDerivedField)
	err = s.SetFields(domain.Fields{"femaleGovernanceMembers": 2, "unknown": 1})
	assert.ErrorIs(t, err, domain.ErrUnknownField)
	err = s.SetField("diversityPolicy", 12)
	assert.ErrorIs(t, err, domain.ErrFieldKind)

	assert.False(t, s.Dirty())
	v, _ := s.Get("femaleGovernanceMembers")
	assert.Nil(t, v)
}

func TestSaveSnapshotsByValue(t *testing.T) {
	backend := newFakeBackend()
	events := &eventLog{}
	s := newBoundStore(t, backend, WithListener(events.listener()))

	require.NoError(t, s.SetFields(domain.Fields{"femaleGovernanceMembers": 3, "maleGovernanceMembers": 7}))
	require.NoError(t, s.Save(context.Background()))

	st := s.State()
	assert.False(t, st.Dirty)
	require.NotNil(t, st.LastSavedAt)
	assert.Equal(t, fixedNow, *st.LastSavedAt)
	assert.True(t, st.Current.Equal(st.LastPersisted))

	require.NoError(t, s.SetField("femaleGovernanceMembers", 3))
	assert.False(t, s.Dirty(), "assigning the same value must not mark the record dirty")

	require.NoError(t, s.SetField("femaleGovernanceMembers", 4))
	st = s.State()
	assert.True(t, st.Dirty)
	assert.Equal(t, 3.0, st.LastPersisted["femaleGovernanceMembers"])
	assert.Equal(t, 4.0, st.Current["femaleGovernanceMembers"])

	assert.Equal(t, []EventKind{EventLoaded, EventSaved}, events.kinds())
}

func TestSaveWritesExternalNaming(t *testing.T) {
	backend := newFakeBackend()
	s := newBoundStore(t, backend)

	require.NoError(t, s.SetField("femaleGovernanceMembers", 1))
	require.NoError(t, s.Save(context.Background()))

	rec, ok := backend.get("bp2_governance_diversity", reportA)
	require.True(t, ok)
	assert.Equal(t, 1.0, rec.Fields["female_governance_members"])
	assert.Equal(t, 100.0, rec.Fields["gender_diversity_index"])
	assert.NotContains(t, rec.Fields, "femaleGovernanceMembers")
	assert.Equal(t, fixedNow, rec.UpdatedAt)
}

func TestFailedSaveKeepsEditsAndRetries(t *testing.T) {
	backend := newFakeBackend()
	rec := &fakeRecorder{}
	s := newBoundStore(t, backend, WithRecorder(rec))

	require.NoError(t, s.SetField("femaleGovernanceMembers", 5))
	before := s.Current()

	backend.setUpsertErr(errBackendDown)
	err := s.Save(context.Background())
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.ErrorIs(t, err, errBackendDown)
	assert.Equal(t, reportA, saveErr.ReportID)

	st := s.State()
	assert.True(t, st.Dirty)
	assert.False(t, st.Saving)
	assert.Equal(t, before, st.Current)
	assert.ErrorIs(t, st.LastError, errBackendDown)

	backend.setUpsertErr(nil)
	require.NoError(t, s.Save(context.Background()))
	st = s.State()
	assert.False(t, st.Dirty)
	assert.NoError(t, st.LastError)

	assert.Equal(t, []observation{
		{op: OpLoad, collection: "bp2_governance_diversity", success: true},
		{op: OpSave, collection: "bp2_governance_diversity", success: false},
		{op: OpSave, collection: "bp2_governance_diversity", success: true},
	}, rec.all())
}

func TestLoadFoundRecord(t *testing.T) {
	backend := newFakeBackend()
	updated := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	backend.put(domain.Record{
		ID:         "row-1",
		Collection: "bp2_governance_diversity",
		ReportID:   reportA,
		Fields: domain.Fields{
			"female_governance_members": 2.0,
			"male_governance_members":   2.0,
			"gender_diversity_index":    50.0,
			"retired_column":            "x",
		},
		UpdatedAt: updated,
	})

	s := newBoundStore(t, backend)
	st := s.State()
	assert.False(t, st.Dirty)
	assert.Equal(t, 2.0, st.Current["femaleGovernanceMembers"])
	assert.Equal(t, 50.0, st.Current["genderDiversityIndex"])
	assert.NotContains(t, st.Current, "retiredColumn")
	require.NotNil(t, st.LastSavedAt)
	assert.Equal(t, updated, *st.LastSavedAt)
}

func TestLoadIsIdempotent(t *testing.T) {
	backend := newFakeBackend()
	backend.put(domain.Record{
		Collection: "bp2_governance_diversity",
		ReportID:   reportA,
		Fields:     domain.Fields{"female_governance_members": 1.0},
	})
	s := newBoundStore(t, backend)

	first := s.Current()
	assert.False(t, s.Dirty())
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, first, s.Current())
	assert.False(t, s.Dirty())
}

func TestDirtyUntilSaved(t *testing.T) {
	s := newBoundStore(t, newFakeBackend())
	assert.False(t, s.Dirty())

	require.NoError(t, s.SetField("diversityPolicy", "board charter"))
	require.NoError(t, s.SetField("maleGovernanceMembers", 1))
	assert.True(t, s.Dirty())

	require.NoError(t, s.Save(context.Background()))
	assert.False(t, s.Dirty())
}

func TestLoadFailureLeavesStateIntact(t *testing.T) {
	backend := newFakeBackend()
	events := &eventLog{}
	s := newBoundStore(t, backend, WithListener(events.listener()))
	require.NoError(t, s.SetField("femaleGovernanceMembers", 9))
	before := s.State()

	backend.setFetchErr(errBackendDown)
	err := s.Load(context.Background())
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, errBackendDown)

	after := s.State()
	assert.Equal(t, before.Current, after.Current)
	assert.Equal(t, before.LastPersisted, after.LastPersisted)
	assert.False(t, after.Loading)
	assert.ErrorIs(t, after.LastError, errBackendDown)
	assert.Equal(t, []EventKind{EventLoaded, EventLoadFailed}, events.kinds())

	backend.setFetchErr(nil)
	require.NoError(t, s.Load(context.Background()))
	assert.NoError(t, s.State().LastError)
}

func TestLoadRejectsMalformedRecord(t *testing.T) {
	backend := newFakeBackend()
	s := newBoundStore(t, backend)
	before := s.Current()

	backend.put(domain.Record{
		Collection: "bp2_governance_diversity",
		ReportID:   reportA,
		Fields:     domain.Fields{"female_governance_members": "three"},
	})
	err := s.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrFieldKind)
	assert.Equal(t, before, s.Current())
}

func TestNewerLoadWins(t *testing.T) {
	backend := newFakeBackend()
	backend.put(domain.Record{
		Collection: "bp2_governance_diversity",
		ReportID:   reportA,
		Fields:     domain.Fields{"female_governance_members": 1.0},
	})
	s := newBoundStore(t, backend)

	started := make(chan struct{})
	release := make(chan struct{})
	backend.mu.Lock()
	backend.beforeFetch = func(call int, _ string) {
		if call == 2 {
			close(started)
			<-release
		}
	}
	backend.mu.Unlock()

	first := make(chan error, 1)
	go func() { first <- s.Load(context.Background()) }()
	<-started

	backend.put(domain.Record{
		Collection: "bp2_governance_diversity",
		ReportID:   reportA,
		Fields:     domain.Fields{"female_governance_members": 2.0},
	})
	second := make(chan error, 1)
	go func() { second <- s.Load(context.Background()) }()
	require.Eventually(t, func() bool { return s.loadSeqValue() == 3 }, time.Second, time.Millisecond)
	assert.True(t, s.State().Loading)

	close(release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	assert.Equal(t, 2.0, s.Current()["femaleGovernanceMembers"])
	assert.False(t, s.State().Loading)
}

func TestBindDiscardsResponseForPreviousReport(t *testing.T) {
	backend := newFakeBackend()
	backend.put(domain.Record{
		Collection: "bp2_governance_diversity",
		ReportID:   "old",
		Fields:     domain.Fields{"diversity_policy": "old policy"},
	})
	backend.put(domain.Record{
		Collection: "bp2_governance_diversity",
		ReportID:   "new",
		Fields:     domain.Fields{"diversity_policy": "new policy"},
	})

	started := make(chan struct{})
	release := make(chan struct{})
	backend.beforeFetch = func(_ int, reportID string) {
		if reportID == "old" {
			close(started)
			<-release
		}
	}

	s := New(backend, governanceSection())
	ctx := context.Background()
	s.Bind(ctx, "old")
	<-started
	s.Bind(ctx, "new")
	close(release)
	s.Wait()

	st := s.State()
	assert.Equal(t, "new", st.ReportID)
	assert.Equal(t, "new policy", st.Current["diversityPolicy"])
	assert.False(t, st.Dirty)
}

func TestUnbindDiscardsInFlightResponse(t *testing.T) {
	backend := newFakeBackend()
	updated := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	backend.put(domain.Record{
		Collection: "bp2_governance_diversity",
		ReportID:   "old",
		Fields:     domain.Fields{"diversity_policy": "old policy", "male_governance_members": 3.0},
		UpdatedAt:  updated,
	})

	started := make(chan struct{})
	release := make(chan struct{})
	backend.beforeFetch = func(_ int, reportID string) {
		if reportID == "old" {
			close(started)
			<-release
		}
	}

	s := New(backend, governanceSection())
	ctx := context.Background()
	s.Bind(ctx, "old")
	<-started
	s.Bind(ctx, "")
	close(release)
	s.Wait()

	st := s.State()
	assert.Empty(t, st.ReportID)
	assert.False(t, st.Loaded)
	assert.False(t, st.Loading)
	assert.False(t, st.Dirty)
	assert.Nil(t, st.LastSavedAt)
	assert.NoError(t, st.LastError)
	if diff := cmp.Diff(governanceSection().Initial, st.Current); diff != "" {
		t.Fatalf("current mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, governanceSection().Initial, st.LastPersisted)
	assert.ErrorIs(t, s.SetField("maleGovernanceMembers", 1), ErrNoReport)
}

func TestEditRejectedWhileBindLoadPending(t *testing.T) {
	backend := newFakeBackend()
	backend.put(domain.Record{
		Collection: "bp2_governance_diversity",
		ReportID:   reportA,
		Fields:     domain.Fields{"female_governance_members": 2.0},
	})

	started := make(chan struct{})
	release := make(chan struct{})
	backend.beforeFetch = func(int, string) {
		close(started)
		<-release
	}

	s := New(backend, governanceSection())
	s.Bind(context.Background(), reportA)
	assert.ErrorIs(t, s.SetField("maleGovernanceMembers", 9), ErrLoadInProgress)
	<-started
	assert.ErrorIs(t, s.SetField("maleGovernanceMembers", 9), ErrLoadInProgress)
	assert.False(t, s.Dirty())

	close(release)
	s.Wait()

	st := s.State()
	assert.True(t, st.Loaded)
	assert.False(t, st.Dirty)
	assert.Equal(t, 2.0, st.Current["femaleGovernanceMembers"])
	assert.Nil(t, st.Current["maleGovernanceMembers"])

	require.NoError(t, s.SetField("maleGovernanceMembers", 9))
	assert.True(t, s.Dirty())
	assert.Equal(t, 9.0, s.Current()["maleGovernanceMembers"])
}

func TestEditRejectedWhileReloadPending(t *testing.T) {
	backend := newFakeBackend()
	s := newBoundStore(t, backend)
	require.NoError(t, s.SetField("femaleGovernanceMembers", 1))

	started := make(chan struct{})
	release := make(chan struct{})
	backend.mu.Lock()
	backend.beforeFetch = func(int, string) {
		close(started)
		<-release
	}
	backend.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	<-started

	assert.ErrorIs(t, s.SetField("femaleGovernanceMembers", 5), ErrLoadInProgress)
	close(release)
	require.NoError(t, <-done)

	v, _ := s.Get("femaleGovernanceMembers")
	assert.Nil(t, v)
	assert.False(t, s.Dirty())
}

func TestSaveRejectedWhileSaving(t *testing.T) {
	backend := newFakeBackend()
	s := newBoundStore(t, backend)
	require.NoError(t, s.SetField("maleGovernanceMembers", 4))

	started := make(chan struct{})
	release := make(chan struct{})
	backend.mu.Lock()
	backend.beforeUpsert = func(int) {
		close(started)
		<-release
	}
	backend.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()
	<-started

	assert.True(t, s.State().Saving)
	assert.ErrorIs(t, s.Save(context.Background()), ErrSaveInProgress)

	close(release)
	require.NoError(t, <-done)
	_, upserts := backend.calls()
	assert.Equal(t, 1, upserts)
}

func TestSaveRejectedWhileLoading(t *testing.T) {
	backend := newFakeBackend()
	s := newBoundStore(t, backend)
	require.NoError(t, s.SetField("maleGovernanceMembers", 4))

	started := make(chan struct{})
	release := make(chan struct{})
	backend.mu.Lock()
	backend.beforeFetch = func(int, string) {
		close(started)
		<-release
	}
	backend.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	<-started

	assert.ErrorIs(t, s.Save(context.Background()), ErrLoadInProgress)
	close(release)
	require.NoError(t, <-done)
}

func TestEditDuringSaveStaysDirty(t *testing.T) {
	backend := newFakeBackend()
	s := newBoundStore(t, backend)
	require.NoError(t, s.SetField("femaleGovernanceMembers", 1))

	backend.mu.Lock()
	backend.beforeUpsert = func(int) {
		_ = s.SetField("femaleGovernanceMembers", 2)
	}
	backend.mu.Unlock()

	require.NoError(t, s.Save(context.Background()))
	st := s.State()
	assert.True(t, st.Dirty)
	assert.Equal(t, 1.0, st.LastPersisted["femaleGovernanceMembers"])
	assert.Equal(t, 2.0, st.Current["femaleGovernanceMembers"])
}

func TestLoadHonoursCancelledContext(t *testing.T) {
	backend := newFakeBackend()
	s := newBoundStore(t, backend)

	started := make(chan struct{})
	release := make(chan struct{})
	backend.mu.Lock()
	backend.beforeFetch = func(int, string) {
		close(started)
		<-release
	}
	backend.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Load(ctx)
	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, <-done)
}
