package timing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPage struct {
	payload string
	err     error
}

func (p scriptedPage) Evaluate(_ context.Context, expression string, res any, _ bool) error {
	if expression != Script {
		return errors.New("unexpected expression")
	}
	if p.err != nil {
		return p.err
	}
	return json.Unmarshal([]byte(p.payload), res)
}

func TestDeriveFullEntry(t *testing.T) {
	fp := 120.0
	fcp := 180.5
	m := Derive(RawTiming{
		Navigation: &RawNavigation{
			StartTime:                0,
			RequestStart:             10,
			ResponseEnd:              95,
			DomContentLoadedEventEnd: 410,
			LoadEventEnd:             900,
		},
		FirstPaint:           &fp,
		FirstContentfulPaint: &fcp,
	})
	require.NotNil(t, m)

	assert.InDelta(t, 410, *m.DomContentLoaded, 1e-9)
	assert.InDelta(t, 900, *m.LoadEvent, 1e-9)
	assert.InDelta(t, 85, *m.ResponseTime, 1e-9)
	assert.InDelta(t, 120, *m.FirstPaint, 1e-9)
	assert.InDelta(t, 180.5, *m.FirstContentfulPaint, 1e-9)

	// derived values do not alias the input
	fp = 0
	assert.InDelta(t, 120, *m.FirstPaint, 1e-9)
}

func TestDeriveMissingEntries(t *testing.T) {
	assert.Nil(t, Derive(RawTiming{}))

	fcp := 55.0
	m := Derive(RawTiming{FirstContentfulPaint: &fcp})
	require.NotNil(t, m)
	assert.Nil(t, m.DomContentLoaded)
	assert.Nil(t, m.LoadEvent)
	assert.Nil(t, m.ResponseTime)
	assert.Nil(t, m.FirstPaint)
	assert.InDelta(t, 55, *m.FirstContentfulPaint, 1e-9)

	m = Derive(RawTiming{Navigation: &RawNavigation{StartTime: 5, LoadEventEnd: 25, DomContentLoadedEventEnd: 15}})
	require.NotNil(t, m)
	assert.InDelta(t, 20, *m.LoadEvent, 1e-9)
	assert.Nil(t, m.FirstPaint)
}

func TestExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("nulls encode as null", func(t *testing.T) {
		page := scriptedPage{payload: `{"navigation":{"startTime":0,"requestStart":2,"responseEnd":12,"domContentLoadedEventEnd":30,"loadEventEnd":70},"firstPaint":null,"firstContentfulPaint":null}`}

		m, err := Extract(ctx, page)
		require.NoError(t, err)
		require.NotNil(t, m)

		data, err := json.Marshal(m)
		require.NoError(t, err)
		assert.JSONEq(t, `{"domContentLoaded":30,"loadEvent":70,"responseTime":10,"firstPaint":null,"firstContentfulPaint":null}`, string(data))
	})

	t.Run("no timing at all", func(t *testing.T) {
		m, err := Extract(ctx, scriptedPage{payload: `{"navigation":null,"firstPaint":null,"firstContentfulPaint":null}`})
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("evaluation failure", func(t *testing.T) {
		_, err := Extract(ctx, scriptedPage{err: errors.New("context canceled")})
		require.Error(t, err)
	})
}
