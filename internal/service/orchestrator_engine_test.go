package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/docconv/internal/convert"
	"github.com/iliyamo/docconv/internal/convert/convtest"
	"github.com/iliyamo/docconv/internal/ledger"
	"github.com/iliyamo/docconv/internal/plan"
)

func newEngineConverter(t *testing.T) (*Converter, *ledger.Ledger) {
	t.Helper()
	plans := plan.Default()
	clock := func() time.Time { return time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC) }
	l := ledger.New(ledger.NewMemoryStore(), plans, ledger.WithClock(clock))
	conv := NewConverter(convert.NewEngine(), l, plans, WithClock(clock))
	t.Cleanup(conv.Wait)
	return conv, l
}

func TestSubmitWithEnginePremiumFivePages(t *testing.T) {
	ctx := context.Background()
	conv, l := newEngineConverter(t)
	_, err := conv.SetPlan(ctx, 501, "PREMIUM")
	require.NoError(t, err)

	pdf := convtest.BuildPDF("one", "two", "three", "four", "five")
	res, err := conv.Submit(ctx, 501, "brochure.pdf", pdf)
	require.NoError(t, err)
	require.True(t, res.Completed, "reason=%s detail=%s", res.Reason, res.Detail)
	assert.Equal(t, 5, res.Pages)
	assert.Equal(t, "one\n\ntwo\n\nthree\n\nfour\n\nfive", res.Text)
	require.NotEmpty(t, res.Docx)
	assert.True(t, bytes.HasPrefix(res.Docx, []byte("PK")))

	used, err := l.UsageToday(ctx, 501)
	require.NoError(t, err)
	assert.Equal(t, 5, used)
}

func TestSubmitWithEngineRejectionsChargeNothing(t *testing.T) {
	ctx := context.Background()
	conv, l := newEngineConverter(t)

	res, err := conv.Submit(ctx, 502, "scan.pdf", convtest.BuildPDF(" ", "", "  "))
	require.NoError(t, err)
	assert.Equal(t, ReasonNoExtractableText, res.Reason)

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><text x="1" y="1">Hello</text></svg>`)
	res, err = conv.Submit(ctx, 502, "disguised.pdf", svg)
	require.NoError(t, err)
	assert.Equal(t, ReasonUnreadable, res.Reason)

	res, err = conv.Submit(ctx, 502, "notes.txt", convtest.BuildPDF("text"))
	require.NoError(t, err)
	assert.Equal(t, ReasonUnsupportedType, res.Reason)

	used, err := l.UsageToday(ctx, 502)
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestSubmitWithEngineConcurrentFreePlan(t *testing.T) {
	ctx := context.Background()
	conv, l := newEngineConverter(t)
	pdf := convtest.BuildPDF("a", "b", "c")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := conv.Submit(ctx, 503, "batch.pdf", pdf)
			if err != nil {
				t.Error(err)
				return
			}
			if res.Completed {
				mu.Lock()
				reserved += res.Pages
				mu.Unlock()
			} else if res.Reason != ReasonQuotaExceeded {
				t.Errorf("unexpected rejection %s", res.Reason)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 9, reserved)
	used, err := l.UsageToday(ctx, 503)
	require.NoError(t, err)
	assert.Equal(t, reserved, used)
}
