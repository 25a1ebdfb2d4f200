package decision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"quantagent/internal/analysis/visual"
	"quantagent/internal/gateway/provider"
)

type MockProvider struct {
	mock.Mock
	vision bool
}

func (m *MockProvider) ID() string           { return "mock" }
func (m *MockProvider) Enabled() bool        { return true }
func (m *MockProvider) SupportsVision() bool { return m.vision }
func (m *MockProvider) ExpectsJSON() bool    { return true }

func (m *MockProvider) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

func TestEngineDecide(t *testing.T) {
	mp := new(MockProvider)
	mp.On("Call", mock.Anything, mock.MatchedBy(func(p provider.ChatPayload) bool {
		return p.ExpectJSON && p.MaxTokens == 1000 &&
			p.System == SystemPrompt &&
			strings.Contains(p.User, "=== DECISION REQUIREMENTS ===")
	})).Return(`{"action":"LONG","confidence":0.7,"justification":"Trend and momentum align"}`, nil)

	eng := NewEngine(mp)
	b := testBundle()
	d, err := eng.Decide(context.Background(), b)
	assert.NoError(t, err)
	assert.Equal(t, ActionLong, d.Action)
	assert.Equal(t, b.Ref(), d.BundleRef)
	mp.AssertExpectations(t)
}

func TestEngineProviderFailure(t *testing.T) {
	mp := new(MockProvider)
	mp.On("Call", mock.Anything, mock.Anything).Return("", provider.ErrTimeout)

	eng := NewEngine(mp)
	_, err := eng.Decide(context.Background(), testBundle())
	assert.Error(t, err)

	var serr *SynthesisError
	assert.True(t, errors.As(err, &serr))
	assert.Equal(t, "mock", serr.Provider)
	assert.True(t, errors.Is(err, provider.ErrTimeout))
	mp.AssertExpectations(t)
}

func TestEngineEmptyCompletion(t *testing.T) {
	mp := new(MockProvider)
	mp.On("Call", mock.Anything, mock.Anything).Return("  \n", nil)

	eng := NewEngine(mp)
	_, err := eng.Decide(context.Background(), testBundle())

	var serr *SynthesisError
	assert.True(t, errors.As(err, &serr))
}

func TestEngineUnparseableCompletion(t *testing.T) {
	mp := new(MockProvider)
	mp.On("Call", mock.Anything, mock.Anything).Return("cannot help with that", nil)

	eng := NewEngine(mp)
	_, err := eng.Decide(context.Background(), testBundle())

	var perr *ParseError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, "cannot help with that", perr.Raw)
}

func TestEngineAttachesChartForVision(t *testing.T) {
	mp := &MockProvider{vision: true}
	mp.On("Call", mock.Anything, mock.MatchedBy(func(p provider.ChatPayload) bool {
		return len(p.Images) == 1 && strings.HasPrefix(p.Images[0].DataURI, "data:image/png;base64,")
	})).Return(`{"action":"NEUTRAL","confidence":0.5,"justification":"Range bound"}`, nil)

	b := testBundle()
	b.Pattern.Chart = &visual.Artifact{
		Bytes:       []byte("png-bytes"),
		Filename:    "btcusdt_4h.png",
		Description: "BTCUSDT 4h candlestick chart",
	}
	_, err := NewEngine(mp).Decide(context.Background(), b)
	assert.NoError(t, err)
	mp.AssertExpectations(t)
}

type recordingObserver struct {
	traces []Trace
}

func (r *recordingObserver) AfterSynthesis(_ context.Context, tr Trace) {
	r.traces = append(r.traces, tr)
}

func TestEngineNotifiesObserver(t *testing.T) {
	mp := new(MockProvider)
	mp.On("Call", mock.Anything, mock.Anything).Return(`{"action":"LONG","confidence":0.7,"justification":"Aligned"}`, nil)
	obs := &recordingObserver{}
	eng := NewEngine(mp)
	eng.Observer = obs

	b := testBundle()
	_, err := eng.Decide(context.Background(), b)
	assert.NoError(t, err)
	assert.Len(t, obs.traces, 1)
	tr := obs.traces[0]
	assert.Equal(t, StateStructured, tr.State)
	assert.Equal(t, b.Ref(), tr.BundleRef)
	assert.NotEmpty(t, tr.User)
	assert.NotZero(t, tr.Timestamp)
}

func TestEngineObserverSeesFailures(t *testing.T) {
	mp := new(MockProvider)
	mp.On("Call", mock.Anything, mock.Anything).Return("", provider.ErrTimeout)
	obs := &recordingObserver{}
	eng := NewEngine(mp)
	eng.Observer = obs

	_, err := eng.Decide(context.Background(), testBundle())
	assert.Error(t, err)
	assert.Len(t, obs.traces, 1)
	assert.Equal(t, StateFailed, obs.traces[0].State)
	assert.NotEmpty(t, obs.traces[0].Err)
}
