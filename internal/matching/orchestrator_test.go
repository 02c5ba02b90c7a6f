package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

func acmeInvoice() entity.InvoiceFields {
	return entity.InvoiceFields{
		InvoiceNumber: "INV-100",
		VendorName:    "ACME Corp",
		InvoiceAmount: amount("1000"),
	}
}

func acmeCandidates() []entity.CandidatePO {
	return []entity.CandidatePO{
		{PONumber: "PO-A", POLine: 1, VendorName: "Globex", LineAmount: dec("10")},
		{PONumber: "PO-B", POLine: 1, VendorName: "ACME Corp", LineAmount: dec("1000")},
	}
}

func staticOracle(reply string, err error) OracleFunc {
	return func(context.Context, string) (string, error) { return reply, err }
}

func TestFindBestMatch_OraclePath(t *testing.T) {
	var prompt string
	oracle := OracleFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return `{"best_match":{"po_number":"PO-A","po_line":1,"match_score":0.88},"reasoning":"oracle says so"}`, nil
	})
	cands := acmeCandidates()
	m := NewMatcher(oracle, DefaultConfig(), nil)

	res, err := m.FindBestMatch(context.Background(), acmeInvoice(), cands)
	require.NoError(t, err)
	assert.Equal(t, constants.MatchSourceOracle, res.Source)
	assert.Same(t, &cands[0], res.Candidate)
	assert.Equal(t, 0.88, res.Score)
	assert.Empty(t, res.FallbackReason)
	assert.Contains(t, prompt, "PO-B")
	assert.Contains(t, prompt, "INV-100")
}

func TestFindBestMatch_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		oracle Oracle
		reason string
	}{
		{"no oracle", nil, FallbackDisabled},
		{"transport error", staticOracle("", fmt.Errorf("%w: connection reset", common.ErrOracleTransport)), FallbackTransport},
		{"auth error", staticOracle("", fmt.Errorf("%w: 401", common.ErrOracleAuth)), FallbackAuth},
		{"malformed output", staticOracle("sorry, I cannot help", nil), FallbackParse},
		{"schema violation", staticOracle(`{"best_match":{"po_number":"PO-A","match_score":7}}`, nil), FallbackParse},
		{"scenario D unresolved", staticOracle("```json\n{\"best_match\":{\"po_number\":\"X9\"},\"reasoning\":\"?\"}\n```", nil), FallbackUnresolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := acmeCandidates()
			m := NewMatcher(tt.oracle, DefaultConfig(), nil)
			res, err := m.FindBestMatch(context.Background(), acmeInvoice(), cands)
			require.NoError(t, err)
			assert.Equal(t, constants.MatchSourceFallback, res.Source)
			assert.Equal(t, tt.reason, res.FallbackReason)
			assert.Same(t, &cands[1], res.Candidate)
			assert.Equal(t, 0.60, res.Score)
		})
	}
}

func TestFindBestMatch_OracleTimeout(t *testing.T) {
	var cancelled atomic.Bool
	oracle := OracleFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		cancelled.Store(true)
		return "", ctx.Err()
	})
	cfg := DefaultConfig()
	cfg.OracleTimeout = 20 * time.Millisecond
	m := NewMatcher(oracle, cfg, nil)

	res, err := m.FindBestMatch(context.Background(), acmeInvoice(), acmeCandidates())
	require.NoError(t, err)
	assert.Equal(t, constants.MatchSourceFallback, res.Source)
	assert.Equal(t, FallbackTimeout, res.FallbackReason)
	assert.Eventually(t, cancelled.Load, time.Second, 5*time.Millisecond)
}

func TestFindBestMatch_OracleIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	oracle := OracleFunc(func(context.Context, string) (string, error) {
		<-release
		return "", nil
	})
	cfg := DefaultConfig()
	cfg.OracleTimeout = 20 * time.Millisecond
	m := NewMatcher(oracle, cfg, nil)

	start := time.Now()
	res, err := m.FindBestMatch(context.Background(), acmeInvoice(), acmeCandidates())
	require.NoError(t, err)
	assert.Equal(t, FallbackTimeout, res.FallbackReason)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFindBestMatch_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	oracle := OracleFunc(func(ctx context.Context, _ string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	m := NewMatcher(oracle, DefaultConfig(), nil)

	go func() {
		<-started
		cancel()
	}()
	res, err := m.FindBestMatch(ctx, acmeInvoice(), acmeCandidates())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, common.ErrOracleParse))
	assert.Nil(t, res.Candidate)

	_, err = m.FindBestMatch(ctx, acmeInvoice(), acmeCandidates())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFindBestMatch_EmptyCandidates(t *testing.T) {
	t.Run("scenario E default rejects", func(t *testing.T) {
		m := NewMatcher(nil, DefaultConfig(), nil)
		_, err := m.FindBestMatch(context.Background(), acmeInvoice(), nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrInvalidInput))
	})

	t.Run("synthetic candidate when allowed", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AllowSyntheticCandidate = true
		m := NewMatcher(nil, cfg, nil)
		res, err := m.FindBestMatch(context.Background(), entity.InvoiceFields{VendorName: "ACME Corporation"}, nil)
		require.NoError(t, err)
		require.NotNil(t, res.Candidate)
		assert.Equal(t, "PO-2024-1001", res.Candidate.PONumber)
		assert.Equal(t, 0.30, res.Score)
	})
}

func TestFindBestMatch_InvalidInput(t *testing.T) {
	m := NewMatcher(staticOracle("", errors.New("must not be called")), DefaultConfig(), nil)
	tests := []struct {
		name  string
		inv   entity.InvoiceFields
		cands []entity.CandidatePO
	}{
		{"negative invoice amount", entity.InvoiceFields{InvoiceAmount: amount("-5")}, acmeCandidates()},
		{"negative line item", entity.InvoiceFields{LineItems: []entity.LineItem{{Amount: dec("-1")}}}, acmeCandidates()},
		{"bad invoice type", entity.InvoiceFields{InvoiceType: "PROFORMA"}, acmeCandidates()},
		{"missing po number", acmeInvoice(), []entity.CandidatePO{{POLine: 1}}},
		{"negative line amount", acmeInvoice(), []entity.CandidatePO{{PONumber: "P", LineAmount: dec("-3")}}},
		{"duplicate key", acmeInvoice(), []entity.CandidatePO{{PONumber: "P", POLine: 1}, {PONumber: "P", POLine: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.FindBestMatch(context.Background(), tt.inv, tt.cands)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrInvalidInput))
		})
	}
}

func TestFindBestMatch_PromptIsBounded(t *testing.T) {
	var prompt string
	oracle := OracleFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return "", errors.New("offline")
	})
	inv := acmeInvoice()
	for i := 0; i < 5; i++ {
		inv.LineItems = append(inv.LineItems, entity.LineItem{Description: fmt.Sprintf("item-%d", i), Quantity: dec("1"), Amount: dec("1")})
	}
	var cands []entity.CandidatePO
	for i := 0; i < 15; i++ {
		cands = append(cands, entity.CandidatePO{PONumber: fmt.Sprintf("PO-%02d", i), POLine: 7})
	}

	_, err := NewMatcher(oracle, DefaultConfig(), nil).FindBestMatch(context.Background(), inv, cands)
	require.NoError(t, err)
	assert.Contains(t, prompt, "item-2")
	assert.NotContains(t, prompt, "item-3")
	assert.Contains(t, prompt, "PO-09")
	assert.NotContains(t, prompt, "PO-10")
	assert.Equal(t, 10, strings.Count(prompt, `"po_line": 7`))
}

func TestFindBestMatch_Concurrent(t *testing.T) {
	m := NewMatcher(staticOracle(`{"best_match":{"po_number":"PO-B","match_score":0.9}}`, nil), DefaultConfig(), nil)
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func() {
			cands := acmeCandidates()
			res, err := m.FindBestMatch(context.Background(), acmeInvoice(), cands)
			if err == nil && res.Candidate != &cands[1] {
				err = errors.New("resolved to wrong candidate")
			}
			errs <- err
		}()
	}
	for i := 0; i < 16; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestValidateMatch(t *testing.T) {
	inv := acmeInvoice()
	cand := acmeCandidates()[1]

	t.Run("oracle opinion", func(t *testing.T) {
		m := NewMatcher(staticOracle("```json\n{\"is_valid\":true,\"confidence\":92,\"discrepancies\":[],\"recommendation\":\"approve\"}\n```", nil), DefaultConfig(), nil)
		v, err := m.ValidateMatch(context.Background(), inv, cand)
		require.NoError(t, err)
		assert.True(t, v.IsValid)
		assert.Equal(t, 92.0, v.Confidence)
		assert.Equal(t, "approve", v.Recommendation)
	})

	t.Run("oracle failure yields error recommendation", func(t *testing.T) {
		m := NewMatcher(staticOracle("", common.ErrOracleTransport), DefaultConfig(), nil)
		v, err := m.ValidateMatch(context.Background(), inv, cand)
		require.NoError(t, err)
		assert.False(t, v.IsValid)
		assert.Equal(t, 0.0, v.Confidence)
		assert.Equal(t, RecommendationError, v.Recommendation)
	})

	t.Run("bad reply yields error recommendation", func(t *testing.T) {
		m := NewMatcher(staticOracle(`{"is_valid":"yes"}`, nil), DefaultConfig(), nil)
		v, err := m.ValidateMatch(context.Background(), inv, cand)
		require.NoError(t, err)
		assert.Equal(t, RecommendationError, v.Recommendation)
	})

	t.Run("no oracle", func(t *testing.T) {
		v, err := NewMatcher(nil, DefaultConfig(), nil).ValidateMatch(context.Background(), inv, cand)
		require.NoError(t, err)
		assert.Equal(t, RecommendationError, v.Recommendation)
	})
}
