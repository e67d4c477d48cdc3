package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/bridge"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/event"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/fieldtree"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/metrics"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
)

func orderTree() *schema.ModelNode {
	return fieldtree.Build(&schema.ModelNode{
		Model: "sale.order",
		Fields: []schema.FieldDescriptor{
			{Name: "amount_total", String: "Total", Type: schema.FieldMonetary, Model: "sale.order"},
			{Name: "signed", String: "Signed", Type: schema.FieldBoolean, Model: "sale.order"},
			{Name: "attachment", String: "Attachment", Type: schema.FieldBinary, Model: "sale.order"},
			{Name: "partner_id", String: "Customer", Type: schema.FieldMany2One, Model: "sale.order", Relation: "res.partner",
				RelatedModel: &schema.ModelNode{Model: "res.partner", Fields: []schema.FieldDescriptor{
					{Name: "name", String: "Name", Type: schema.FieldChar, Model: "res.partner"},
					{Name: "email", String: "Email", Type: schema.FieldChar, Model: "res.partner"},
				}},
			},
		},
	})
}

type fakeConnector struct {
	mu           sync.Mutex
	cmds         []bridge.Command
	disconnected int
}

func (c *fakeConnector) Execute(cmd bridge.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmds = append(c.cmds, cmd)
	return nil
}

func (c *fakeConnector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected++
}

func (c *fakeConnector) commands() []bridge.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bridge.Command(nil), c.cmds...)
}

type recorder struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (r *recorder) Publish(_ context.Context, evt event.DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

func okLoader() Loader {
	return LoaderFunc(func(_ context.Context, id, user string) (Params, error) {
		return Params{
			TemplateID: id,
			Model:      "sale.order",
			Tree:       orderTree(),
			Editor:     Editor{Config: `{"document":{}}`, DocAPIJS: "http://docs/api.js"},
		}, nil
	})
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := NewManager(okLoader(), append([]Option{WithPublisher(rec)}, opts...)...)
	t.Cleanup(func() { m.CloseAll(context.Background(), ReasonShutdown) })
	return m, rec
}

func TestOpen(t *testing.T) {
	m, rec := newTestManager(t)
	s, err := m.Open(context.Background(), "tpl-1", "alice")
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "tpl-1", s.TemplateID())
	assert.Equal(t, "sale.order", s.Model())
	assert.Equal(t, "http://docs/api.js", s.Editor().DocAPIJS)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "alice", s.Info().User)
	assert.Equal(t, []string{event.TypeSessionOpened}, rec.types())

	got, err := m.Get(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	view, search := s.Visible()
	assert.Same(t, s.GroundTruth(), view)
	assert.Empty(t, search)
}

func TestOpen_FailureLeavesNothingBehind(t *testing.T) {
	cause := errors.New("document server down")
	mx := metrics.New(false)
	m := NewManager(LoaderFunc(func(context.Context, string, string) (Params, error) {
		return Params{}, cause
	}), WithMetrics(mx))

	s, err := m.Open(context.Background(), "tpl-1", "")
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrEditorUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.SessionInitErrors))
}

func TestOpen_MissingTreeIsUnavailable(t *testing.T) {
	m := NewManager(LoaderFunc(func(context.Context, string, string) (Params, error) {
		return Params{Model: "sale.order"}, nil
	}))
	_, err := m.Open(context.Background(), "tpl-1", "")
	assert.ErrorIs(t, err, ErrEditorUnavailable)
	assert.Equal(t, 0, m.Len())
}

func TestSearch(t *testing.T) {
	mx := metrics.New(false)
	m, _ := newTestManager(t, WithMetrics(mx))
	s, err := m.Open(context.Background(), "tpl-1", "")
	require.NoError(t, err)
	ctx := context.Background()

	view := s.Search(ctx, "name")
	require.NotNil(t, view)
	require.Len(t, view.Fields, 1)
	assert.Equal(t, "partner_id", view.Fields[0].Key)
	assert.True(t, view.Expanded)
	got, search := s.Visible()
	assert.Same(t, view, got)
	assert.Equal(t, "name", search)

	assert.Nil(t, s.Search(ctx, "zzz"))
	got, _ = s.Visible()
	assert.Nil(t, got)

	assert.Same(t, s.GroundTruth(), s.Search(ctx, ""))
	assert.Equal(t, uint64(3), filterSamples(t, mx))
}

func filterSamples(t *testing.T, mx *metrics.Metrics) uint64 {
	t.Helper()
	mfs, err := mx.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "doctemplate_field_filter_duration_seconds" {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func TestSearch_Options(t *testing.T) {
	m, _ := newTestManager(t, WithFilterOptions(fieldtree.CaseInsensitive()))
	s, err := m.Open(context.Background(), "tpl-1", "")
	require.NoError(t, err)

	assert.NotNil(t, s.Search(context.Background(), "EMAIL"))
	view := s.Search(context.Background(), "Customer", fieldtree.MatchOn(fieldtree.MatchLabel))
	require.NotNil(t, view)
	assert.Equal(t, "partner_id", view.Fields[0].Key)
}

func TestClick(t *testing.T) {
	m, rec := newTestManager(t)
	s, err := m.Open(context.Background(), "tpl-1", "")
	require.NoError(t, err)
	ctx := context.Background()

	// No connector yet: a silent no-op.
	ok, err := s.Click(ctx, "amount_total")
	require.NoError(t, err)
	assert.False(t, ok)

	conn := &fakeConnector{}
	require.NoError(t, s.AttachConnector(conn))
	assert.True(t, s.Connected())

	ok, err = s.Click(ctx, "partner_id email")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Click(ctx, "signed")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Click(ctx, "attachment")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Click(ctx, "partner_id phone")
	assert.ErrorIs(t, err, ErrUnknownField)

	cmds := conn.commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, bridge.KindTextForm, cmds[0].Kind)
	assert.Equal(t, "partner_id email", cmds[0].Form.Key)
	assert.Equal(t, "res.partner", cmds[0].Form.Tag)
	assert.Equal(t, bridge.KindCheckBoxForm, cmds[1].Kind)
	assert.Equal(t, 2, s.Info().Commands)

	assert.Equal(t, []string{
		event.TypeSessionOpened,
		event.TypeClickIgnored,
		event.TypeCommandDispatched,
		event.TypeCommandDispatched,
		event.TypeClickIgnored,
	}, rec.types())
}

func TestClicksChannel(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Open(context.Background(), "tpl-1", "")
	require.NoError(t, err)
	conn := &fakeConnector{}
	require.NoError(t, s.AttachConnector(conn))

	reply := make(chan bool, 1)
	s.Clicks() <- FieldClick{Key: "amount_total", Reply: reply}
	select {
	case ok := <-reply:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
	}

	// Unknown keys sent straight to the channel are dropped.
	s.Clicks() <- FieldClick{Key: "nope", Reply: reply}
	assert.False(t, <-reply)
	assert.Len(t, conn.commands(), 1)
}

func TestAttachConnector_ReplacesPrevious(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Open(context.Background(), "tpl-1", "")
	require.NoError(t, err)

	first, second := &fakeConnector{}, &fakeConnector{}
	require.NoError(t, s.AttachConnector(first))
	require.NoError(t, s.AttachConnector(second))
	assert.Equal(t, 1, first.disconnected)
	assert.Equal(t, 0, second.disconnected)
}

func TestClose(t *testing.T) {
	m, rec := newTestManager(t)
	s, err := m.Open(context.Background(), "tpl-1", "")
	require.NoError(t, err)
	conn := &fakeConnector{}
	require.NoError(t, s.AttachConnector(conn))
	ctx := context.Background()

	s.Close(ctx, ReasonScriptError)
	s.Close(ctx, ReasonClient)
	assert.ErrorIs(t, m.Close(ctx, s.ID(), ReasonClient), ErrNotFound)

	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed")
	}
	assert.Equal(t, 1, conn.disconnected)
	assert.False(t, s.Connected())
	assert.Equal(t, 0, m.Len())

	_, err = m.Get(ctx, s.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Click(ctx, "amount_total")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.AttachConnector(&fakeConnector{}), ErrClosed)

	types := rec.types()
	assert.Equal(t, []string{event.TypeSessionOpened, event.TypeSessionClosed}, types)

	var p event.SessionClosedPayload
	require.NoError(t, event.Decode(rec.events[1], &p))
	assert.Equal(t, ReasonScriptError, p.Reason)
}

func TestExpiry(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	m, rec := newTestManager(t, WithTimeouts(time.Hour, 10*time.Minute), WithClock(clock))
	ctx := context.Background()
	idle, err := m.Open(ctx, "tpl-1", "")
	require.NoError(t, err)
	busy, err := m.Open(ctx, "tpl-2", "")
	require.NoError(t, err)

	advance(8 * time.Minute)
	busy.Touch()
	advance(8 * time.Minute)

	_, err = m.Get(ctx, idle.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(ctx, busy.ID())
	assert.NoError(t, err)

	advance(time.Hour)
	assert.Equal(t, 1, m.Cleanup(ctx))
	assert.Equal(t, 0, m.Len())

	var reasons []string
	for _, evt := range rec.events {
		if evt.EventType != event.TypeSessionClosed {
			continue
		}
		var p event.SessionClosedPayload
		require.NoError(t, event.Decode(evt, &p))
		reasons = append(reasons, p.Reason)
	}
	assert.Equal(t, []string{ReasonIdle, ReasonExpired}, reasons)
}

func TestList(t *testing.T) {
	m, _ := newTestManager(t)
	a, err := m.Open(context.Background(), "tpl-1", "")
	require.NoError(t, err)
	_, err = m.Open(context.Background(), "tpl-2", "")
	require.NoError(t, err)

	infos := m.List()
	require.Len(t, infos, 2)
	ids := []string{infos[0].TemplateID, infos[1].TemplateID}
	assert.ElementsMatch(t, []string{"tpl-1", "tpl-2"}, ids)

	require.NoError(t, m.Close(context.Background(), a.ID(), ReasonClient))
	assert.Len(t, m.List(), 1)
	assert.ErrorIs(t, m.Close(context.Background(), a.ID(), ReasonClient), ErrNotFound)
}

func TestRun_ClosesOnShutdown(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Open(context.Background(), "tpl-1", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 0, m.Len())
}
