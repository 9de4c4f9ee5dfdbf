package trust_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/jmerrifield20/trustmesh/internal/credential"
	"github.com/jmerrifield20/trustmesh/internal/ledger"
	"github.com/jmerrifield20/trustmesh/internal/model"
	"github.com/jmerrifield20/trustmesh/internal/trust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const eps = 1e-9

var ctx = context.Background()

type recordingSink struct {
	mu     sync.Mutex
	events []trust.Event
}

func (s *recordingSink) Emit(ev trust.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) kinds() []trust.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trust.EventKind, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Kind
	}
	return out
}

// flakyLedger fails every Append once broken is set.
type flakyLedger struct {
	ledger.Ledger
	mu     sync.Mutex
	broken bool
}

func (l *flakyLedger) Append(ctx context.Context, payload any) (*ledger.Block, error) {
	l.mu.Lock()
	broken := l.broken
	l.mu.Unlock()
	if broken {
		return nil, errors.New("ledger disk full")
	}
	return l.Ledger.Append(ctx, payload)
}

func (l *flakyLedger) breakNow() {
	l.mu.Lock()
	l.broken = true
	l.mu.Unlock()
}

type fixture struct {
	engine *trust.Engine
	dir    *credential.Directory
	ledger ledger.Ledger
	sink   *recordingSink
}

func newFixture(t *testing.T, cfg trust.Config) *fixture {
	t.Helper()
	dir, err := credential.Open(ctx, credential.MemoryStore{}, zap.NewNop())
	require.NoError(t, err)
	l := ledger.New()
	sink := &recordingSink{}
	return &fixture{
		engine: trust.NewEngine(cfg, dir, l, zap.NewNop(), trust.WithSink(sink)),
		dir:    dir,
		ledger: l,
		sink:   sink,
	}
}

func (f *fixture) register(t *testing.T, id string) {
	t.Helper()
	_, err := f.engine.Register(ctx, id, "pem")
	require.NoError(t, err)
}

func (f *fixture) events(t *testing.T) []string {
	t.Helper()
	views, err := f.ledger.Export(ctx)
	require.NoError(t, err)
	out := make([]string, len(views))
	for i, v := range views {
		var p struct {
			Event string `json:"event"`
		}
		require.NoError(t, json.Unmarshal(v.Payload, &p))
		out[i] = p.Event
	}
	return out
}

func (f *fixture) score(t *testing.T, id string) float64 {
	t.Helper()
	s, ok := f.engine.TrustOf(id)
	require.True(t, ok, "device %s not tracked", id)
	return s
}

func TestRegister_InitialTrustAndLedger(t *testing.T) {
	f := newFixture(t, trust.Config{})

	cred, err := f.engine.Register(ctx, "Laptop_A", "pem")
	require.NoError(t, err)
	assert.Equal(t, "Laptop_A", cred.DeviceID)
	assert.InDelta(t, 0.5, f.score(t, "Laptop_A"), eps)
	assert.False(t, f.dir.IsRevoked("Laptop_A"))

	b, err := f.ledger.Get(ctx, 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"register","device_id":"Laptop_A","trust":0.5}`, string(b.Payload))
	assert.Equal(t, []trust.EventKind{trust.EventRegistered}, f.sink.kinds())
}

func TestRegister_ConfiguredInitialTrust(t *testing.T) {
	f := newFixture(t, trust.Config{InitialTrust: 0.8})
	f.register(t, "Phone_B")
	assert.InDelta(t, 0.8, f.score(t, "Phone_B"), eps)
}

func TestReceiveAlert_ScenarioA_BenignRecovery(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "Laptop_A")

	for i := 0; i < 3; i++ {
		out, err := f.engine.ReceiveAlert(ctx, model.Alert{DeviceID: "Laptop_A", Type: "benign"})
		require.NoError(t, err)
		assert.True(t, out.Accepted)
	}
	assert.InDelta(t, 0.65, f.score(t, "Laptop_A"), eps)
	assert.Equal(t, []string{"genesis", "register", "benign_alert", "benign_alert", "benign_alert"}, f.events(t))
}

func TestReceiveAlert_BenignClampsAtOne(t *testing.T) {
	f := newFixture(t, trust.Config{InitialTrust: 0.98})
	f.register(t, "Laptop_A")

	out, err := f.engine.ReceiveAlert(ctx, model.Alert{DeviceID: "Laptop_A", Type: "benign"})
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.InDelta(t, 1.0, f.score(t, "Laptop_A"), eps)
}

func TestReceiveAlert_ScenarioB_SoftRevocation(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "Attacker_PC")
	alert := model.Alert{DeviceID: "Attacker_PC", Type: "packet_drop"}

	out, err := f.engine.ReceiveAlert(ctx, alert)
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.InDelta(t, 0.2, f.score(t, "Attacker_PC"), eps)
	assert.False(t, f.dir.IsRevoked("Attacker_PC"))

	out, err = f.engine.ReceiveAlert(ctx, alert)
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, trust.ReasonTrustCollapsed, out.Reason)
	assert.InDelta(t, 0.0, f.score(t, "Attacker_PC"), eps)
	assert.True(t, f.dir.IsRevoked("Attacker_PC"))

	assert.Equal(t,
		[]string{"genesis", "register", "packet_drop_alert", "packet_drop_alert", "revoke"},
		f.events(t))

	// Further alerts bounce off the revoked credential without mutation.
	out, err = f.engine.ReceiveAlert(ctx, model.Alert{DeviceID: "Attacker_PC", Type: "benign"})
	require.NoError(t, err)
	assert.Equal(t, trust.Outcome{Reason: trust.ReasonRevokedDevice}, out)
	assert.InDelta(t, 0.0, f.score(t, "Attacker_PC"), eps)
}

func TestReceiveAlert_MaliciousTypes(t *testing.T) {
	for _, typ := range []string{"malicious", "scan", "malicious_scan", "ddos", "packet_drop"} {
		t.Run(typ, func(t *testing.T) {
			f := newFixture(t, trust.Config{})
			f.register(t, "d")
			out, err := f.engine.ReceiveAlert(ctx, model.Alert{DeviceID: "d", Type: typ})
			require.NoError(t, err)
			assert.True(t, out.Accepted)
			assert.InDelta(t, 0.2, f.score(t, "d"), eps)
			assert.Equal(t, typ+"_alert", f.events(t)[2])
		})
	}
}

func TestReceiveAlert_Rejections(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "Phone_B")
	before, _ := f.ledger.Len(ctx)

	tests := []struct {
		name  string
		alert model.Alert
		want  trust.Reason
	}{
		{"missing device id", model.Alert{Type: "benign"}, trust.ReasonUnknownDevice},
		{"unknown device", model.Alert{DeviceID: "ghost", Type: "benign"}, trust.ReasonUnknownDevice},
		{"unknown type", model.Alert{DeviceID: "Phone_B", Type: "weird"}, trust.ReasonUnknownAlertType},
		{"type is case sensitive", model.Alert{DeviceID: "Phone_B", Type: "Benign"}, trust.ReasonUnknownAlertType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := f.engine.ReceiveAlert(ctx, tc.alert)
			require.NoError(t, err)
			assert.False(t, out.Accepted)
			assert.Equal(t, tc.want, out.Reason)
		})
	}

	after, _ := f.ledger.Len(ctx)
	assert.Equal(t, before, after, "rejections must not touch the ledger")
	assert.InDelta(t, 0.5, f.score(t, "Phone_B"), eps)
}

func TestReceiveAlert_TrackedWithoutCredentialIsRejected(t *testing.T) {
	f := newFixture(t, trust.Config{})
	require.NoError(t, f.engine.AddDevice(ctx, "Sensor_9"))

	out, err := f.engine.ReceiveAlert(ctx, model.Alert{DeviceID: "Sensor_9", Type: "benign"})
	require.NoError(t, err)
	assert.Equal(t, trust.ReasonRevokedDevice, out.Reason)
}

func TestEvaluate_ScenarioC_ForwardingRate(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "Router_1")

	err := f.engine.EvaluateAndUpdate(ctx, "Router_1", model.Alert{
		DeviceID: "Router_1",
		Metrics:  model.Metrics{PacketsSent: 100, PacketsFailed: 80},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, f.score(t, "Router_1"), eps)
	// 0.1 is above the hard threshold; the soft threshold does not apply here.
	assert.False(t, f.dir.IsRevoked("Router_1"))

	b, err := f.ledger.Get(ctx, 2)
	require.NoError(t, err)
	var p map[string]any
	require.NoError(t, b.Decode(&p))
	assert.Equal(t, "trust_update", p["event"])
	assert.Equal(t, "forwarding_rate=0.20", p["reason"])
	assert.InDelta(t, 0.5, p["old"], eps)
	assert.InDelta(t, 0.1, p["new"], eps)
}

func TestEvaluate_ScenarioD_MalwareKeyword(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "IoT_Camera")

	err := f.engine.EvaluateAndUpdate(ctx, "IoT_Camera", model.Alert{
		DeviceID: "IoT_Camera",
		Type:     "status",
		Details:  map[string]any{"log": "Detected MalWare signature"},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, f.score(t, "IoT_Camera"), eps)

	var reasons []string
	for _, ev := range f.sink.events {
		if ev.Kind == trust.EventTrustAdjusted {
			reasons = append(reasons, ev.Reason)
		}
	}
	assert.Equal(t, []string{"malicious_keyword"}, reasons)
}

func TestEvaluate_SaturatedMetricsStillPenalise(t *testing.T) {
	f := newFixture(t, trust.Config{InitialTrust: 0.9})
	f.register(t, "Scanner_X")

	var alert model.Alert
	require.NoError(t, json.Unmarshal([]byte(`{
		"device_id": "Scanner_X",
		"type": "anomaly",
		"metrics": {"scan_count": 9223372036854775807, "packets_sent": 100, "packets_failed": 1e20}
	}`), &alert))
	require.NoError(t, f.engine.EvaluateAndUpdate(ctx, "Scanner_X", alert))

	var reasons []string
	for _, ev := range f.sink.events {
		if ev.Kind == trust.EventTrustAdjusted {
			reasons = append(reasons, ev.Reason)
		}
	}
	require.Len(t, reasons, 2)
	assert.Equal(t, "scan_count=9223372036854775807", reasons[0])
	assert.Contains(t, reasons[1], "forwarding_rate=-")
	assert.InDelta(t, 0.1, f.score(t, "Scanner_X"), eps)
}

func TestEvaluate_ChecksFireIndependently(t *testing.T) {
	f := newFixture(t, trust.Config{InitialTrust: 0.9})
	f.register(t, "d")

	err := f.engine.EvaluateAndUpdate(ctx, "d", model.Alert{
		Type:    "info",
		Details: "malicious payload",
		Metrics: model.Metrics{ScanCount: 3, PacketsSent: 10, PacketsFailed: 1},
	})
	require.NoError(t, err)
	// -0.4 keyword, +0.05 info, +0.05 forwarding 0.90.
	assert.InDelta(t, 0.6, f.score(t, "d"), eps)
	assert.Equal(t, []string{"genesis", "register", "trust_update", "trust_update", "trust_update"}, f.events(t))
}

func TestEvaluate_HardRevocation(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "Attacker_PC")

	err := f.engine.EvaluateAndUpdate(ctx, "Attacker_PC", model.Alert{
		Metrics: model.Metrics{ScanCount: 50, PacketsSent: 10, PacketsFailed: 10},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, f.score(t, "Attacker_PC"), eps)
	assert.True(t, f.dir.IsRevoked("Attacker_PC"))

	ev := f.events(t)
	assert.Equal(t, "revoke", ev[len(ev)-1])

	// A second collapse must not log a second revocation.
	require.NoError(t, f.engine.EvaluateAndUpdate(ctx, "Attacker_PC", model.Alert{Metrics: model.Metrics{ScanCount: 50}}))
	revokes := 0
	for _, e := range f.events(t) {
		if e == "revoke" {
			revokes++
		}
	}
	assert.Equal(t, 1, revokes)
}

func TestEvaluate_UnknownDevice(t *testing.T) {
	f := newFixture(t, trust.Config{})
	err := f.engine.EvaluateAndUpdate(ctx, "ghost", model.Alert{Metrics: model.Metrics{ScanCount: 99}})
	require.ErrorIs(t, err, trust.ErrUnknownDevice)

	n, _ := f.ledger.Len(ctx)
	assert.Equal(t, 1, n)
	_, ok := f.engine.TrustOf("ghost")
	assert.False(t, ok)
}

func TestAdjustTrust_Clamps(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "d")

	got, err := f.engine.AdjustTrust(ctx, "d", 5, "manual")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, eps)

	got, err = f.engine.AdjustTrust(ctx, "d", -7, "manual")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got, eps)

	_, err = f.engine.AdjustTrust(ctx, "ghost", 0.1, "manual")
	require.ErrorIs(t, err, trust.ErrUnknownDevice)
}

func TestTrustStaysClamped(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "d")
	rng := rand.New(rand.NewSource(7))
	types := []string{"benign", "scan", "ddos", "info", "heartbeat"}

	for i := 0; i < 300; i++ {
		switch rng.Intn(3) {
		case 0:
			_, err := f.engine.AdjustTrust(ctx, "d", rng.Float64()*2-1, "fuzz")
			require.NoError(t, err)
		case 1:
			_, err := f.engine.ReceiveAlert(ctx, model.Alert{DeviceID: "d", Type: types[rng.Intn(len(types))]})
			require.NoError(t, err)
		default:
			err := f.engine.EvaluateAndUpdate(ctx, "d", model.Alert{
				Type:    types[rng.Intn(len(types))],
				Metrics: model.Metrics{ScanCount: rng.Int63n(20), PacketsSent: 10, PacketsFailed: rng.Int63n(11)},
			})
			require.NoError(t, err)
		}
		s := f.score(t, "d")
		require.GreaterOrEqual(t, s, 0.0)
		require.LessOrEqual(t, s, 1.0)
	}

	ok, err := f.engine.VerifyLedger(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRevokeDevice_Idempotent(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "d")

	changed, err := f.engine.RevokeDevice(ctx, "d")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.engine.RevokeDevice(ctx, "d")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.engine.RevokeDevice(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, []string{"genesis", "register", "revoke"}, f.events(t))
}

func TestReRegisterClearsRevocation(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "d")
	_, err := f.engine.RevokeDevice(ctx, "d")
	require.NoError(t, err)

	f.register(t, "d")
	st, ok := f.engine.Status("d")
	require.True(t, ok)
	assert.False(t, st.Revoked)
	assert.InDelta(t, 0.5, st.Trust, eps)
}

func TestListDevices(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "c")
	f.register(t, "a")
	require.NoError(t, f.engine.AddDevice(ctx, "b"))
	_, err := f.engine.RevokeDevice(ctx, "c")
	require.NoError(t, err)

	got := f.engine.ListDevices()
	assert.Equal(t, []model.DeviceStatus{
		{DeviceID: "a", Trust: 0.5, Revoked: false},
		{DeviceID: "b", Trust: 0.5, Revoked: true}, // no credential: fail-closed
		{DeviceID: "c", Trust: 0.5, Revoked: true},
	}, got)
}

func TestLedgerFailurePropagates(t *testing.T) {
	dir, err := credential.Open(ctx, credential.MemoryStore{}, zap.NewNop())
	require.NoError(t, err)
	l := &flakyLedger{Ledger: ledger.New()}
	e := trust.NewEngine(trust.Config{}, dir, l, zap.NewNop())

	_, err = e.Register(ctx, "d", "pem")
	require.NoError(t, err)
	l.breakNow()

	_, err = e.ReceiveAlert(ctx, model.Alert{DeviceID: "d", Type: "scan"})
	require.Error(t, err)
	s, _ := e.TrustOf("d")
	assert.InDelta(t, 0.5, s, eps, "unlogged mutation must not become visible")

	_, err = e.AdjustTrust(ctx, "d", 0.1, "x")
	require.Error(t, err)

	err = e.EvaluateAndUpdate(ctx, "d", model.Alert{Metrics: model.Metrics{ScanCount: 10}})
	require.Error(t, err)
	s, _ = e.TrustOf("d")
	assert.InDelta(t, 0.5, s, eps)
}

func TestRegister_LedgerFailureRestoresCredential(t *testing.T) {
	dir, err := credential.Open(ctx, credential.MemoryStore{}, zap.NewNop())
	require.NoError(t, err)
	l := &flakyLedger{Ledger: ledger.New()}
	e := trust.NewEngine(trust.Config{}, dir, l, zap.NewNop())

	_, err = e.Register(ctx, "Attacker_PC", "pem")
	require.NoError(t, err)
	changed, err := e.RevokeDevice(ctx, "Attacker_PC")
	require.NoError(t, err)
	require.True(t, changed)
	before, _ := dir.Get("Attacker_PC")
	l.breakNow()

	_, err = e.Register(ctx, "Attacker_PC", "fresh-pem")
	require.Error(t, err)
	after, ok := dir.Get("Attacker_PC")
	require.True(t, ok)
	assert.Equal(t, *before, *after, "unlogged re-registration must not replace the credential")
	assert.True(t, dir.IsRevoked("Attacker_PC"))

	_, err = e.Register(ctx, "Phone_B", "pem")
	require.Error(t, err)
	assert.False(t, dir.Has("Phone_B"))
	_, tracked := e.TrustOf("Phone_B")
	assert.False(t, tracked)
}

func TestRestore_RevocationMissingFromLedger(t *testing.T) {
	dir, err := credential.Open(ctx, credential.MemoryStore{}, zap.NewNop())
	require.NoError(t, err)
	inner := ledger.New()
	l := &flakyLedger{Ledger: inner}
	e := trust.NewEngine(trust.Config{}, dir, l, zap.NewNop())

	_, err = e.Register(ctx, "IoT_Camera", "pem")
	require.NoError(t, err)
	l.breakNow()

	changed, err := e.RevokeDevice(ctx, "IoT_Camera")
	require.Error(t, err)
	assert.True(t, changed, "the directory revocation stands")

	core, logs := observer.New(zap.InfoLevel)
	fresh := trust.NewEngine(trust.Config{}, dir, inner, zap.New(core))
	_, err = fresh.Restore(ctx)
	require.NoError(t, err)

	st, ok := fresh.Status("IoT_Camera")
	require.True(t, ok)
	assert.True(t, st.Revoked)
	entries := logs.FilterMessage("trust state restored from ledger").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 1, entries[0].ContextMap()["revoked"])
}

type brokenStore struct{ credential.MemoryStore }

func (brokenStore) Save(context.Context, map[string]credential.Credential) error {
	return errors.New("read-only filesystem")
}

func TestDirectoryFailurePropagates(t *testing.T) {
	dir, err := credential.Open(ctx, brokenStore{}, zap.NewNop())
	require.NoError(t, err)
	e := trust.NewEngine(trust.Config{}, dir, ledger.New(), zap.NewNop())

	_, err = e.Register(ctx, "d", "pem")
	require.ErrorIs(t, err, credential.ErrPersistence)
	_, ok := e.TrustOf("d")
	assert.False(t, ok)
}

func TestConcurrentAdjustmentsAreLinearizable(t *testing.T) {
	f := newFixture(t, trust.Config{InitialTrust: 0.1})
	f.register(t, "d")
	f.register(t, "e")

	const workers = 40
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.engine.AdjustTrust(ctx, "d", 0.01, "tick")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.engine.ReceiveAlert(ctx, model.Alert{DeviceID: "e", Type: "benign"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.InDelta(t, 0.5, f.score(t, "d"), 1e-6)
	assert.InDelta(t, 1.0, f.score(t, "e"), 1e-6)

	n, err := f.ledger.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1+2+2*workers, n)
	ok, err := f.engine.VerifyLedger(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRestore(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "Laptop_A")
	f.register(t, "Attacker_PC")
	for i := 0; i < 2; i++ {
		_, err := f.engine.ReceiveAlert(ctx, model.Alert{DeviceID: "Attacker_PC", Type: "ddos"})
		require.NoError(t, err)
	}
	require.NoError(t, f.engine.EvaluateAndUpdate(ctx, "Laptop_A", model.Alert{Type: "heartbeat"}))
	_, err := f.engine.LogTestResult(ctx, model.TestResult{Test: "smoke", Status: "passed"})
	require.NoError(t, err)

	fresh := trust.NewEngine(trust.Config{}, f.dir, f.ledger, zap.NewNop())
	n, err := fresh.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, f.engine.ListDevices(), fresh.ListDevices())
}

func TestExportAndVerify(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "d")

	views, err := f.engine.Export(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, ledger.GenesisPrevHash, views[0].PrevHash)
	assert.Equal(t, views[0].Hash, views[1].PrevHash)

	ok, err := f.engine.VerifyLedger(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLogTestResult(t *testing.T) {
	f := newFixture(t, trust.Config{})
	b, err := f.engine.LogTestResult(ctx, model.TestResult{Test: "revocation", Status: "passed"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"test_result","test":"revocation","status":"passed"}`, string(b.Payload))
}

func TestSinkSeesDecisions(t *testing.T) {
	f := newFixture(t, trust.Config{})
	f.register(t, "d")
	_, _ = f.engine.ReceiveAlert(ctx, model.Alert{DeviceID: "d", Type: "scan"})
	_, _ = f.engine.ReceiveAlert(ctx, model.Alert{DeviceID: "d", Type: "scan"})
	_, _ = f.engine.ReceiveAlert(ctx, model.Alert{DeviceID: "d", Type: "scan"})

	assert.Equal(t, []trust.EventKind{
		trust.EventRegistered,
		trust.EventAlertAccepted,
		trust.EventAlertAccepted,
		trust.EventRevoked,
		trust.EventAlertRejected,
		trust.EventAlertRejected,
	}, f.sink.kinds())
}
