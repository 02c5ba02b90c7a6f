package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	invoices []*entity.Invoice
	err      error
}

func (f *fakeSubmitter) SubmitInvoice(_ context.Context, fields entity.InvoiceFields, text string) (*entity.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	inv := &entity.Invoice{ID: uuid.New(), Fields: fields, SourceText: text}
	f.invoices = append(f.invoices, inv)
	return inv, nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.invoices)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

const acmeInvoice = "Invoice Number: INV-42\nVendor: Acme Corp\nPO Number: PO-4500\nTotal: $1,000.00\n"

func TestIngestPath(t *testing.T) {
	dir := t.TempDir()
	sub := &fakeSubmitter{}
	var dispatched []uuid.UUID
	ing := NewFSIngestor(nil, sub, func(_ context.Context, id uuid.UUID) error {
		dispatched = append(dispatched, id)
		return nil
	}, quietLogger())

	p := writeFile(t, dir, "a.txt", acmeInvoice)
	res, err := ing.IngestPath(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
	assert.Len(t, res.HashHex, 64)
	require.Equal(t, 1, sub.count())
	assert.Equal(t, "INV-42", sub.invoices[0].Fields.InvoiceNumber)
	assert.Equal(t, []uuid.UUID{sub.invoices[0].ID}, dispatched)

	t.Run("same content is deduplicated", func(t *testing.T) {
		p2 := writeFile(t, dir, "copy.txt", acmeInvoice)
		res2, err := ing.IngestPath(context.Background(), p2)
		require.NoError(t, err)
		assert.True(t, res2.Deduplicated)
		assert.Equal(t, res.InvoiceID, res2.InvoiceID)
		assert.Equal(t, 1, sub.count())
		assert.Len(t, dispatched, 1)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		p := writeFile(t, dir, "scan.pdf", "%PDF")
		_, err := ing.IngestPath(context.Background(), p)
		require.Error(t, err)
	})

	t.Run("dispatch error is returned", func(t *testing.T) {
		boom := errors.New("queue full")
		ing := NewFSIngestor(nil, &fakeSubmitter{}, func(context.Context, uuid.UUID) error { return boom }, quietLogger())
		res, err := ing.IngestPath(context.Background(), writeFile(t, dir, "b.txt", "Vendor: Globex\n"))
		require.ErrorIs(t, err, boom)
		assert.NotEmpty(t, res.InvoiceID)
	})
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.txt", acmeInvoice)
	writeFile(t, dir, "nested/two.csv", "Vendor: Globex\nTotal: $50.00\n")
	writeFile(t, dir, "nested/dup.txt", acmeInvoice)
	writeFile(t, dir, ".hidden/three.txt", "Vendor: Initech\n")
	writeFile(t, dir, "ignored.png", "png")

	sub := &fakeSubmitter{}
	ing := NewFSIngestor(nil, sub, nil, quietLogger())

	results, stats, err := ing.IngestDirectory(context.Background(), dir, true)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(3), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Equal(t, uint32(0), stats.Failed)
	assert.Equal(t, 2, sub.count())

	t.Run("submit failures are counted", func(t *testing.T) {
		ing := NewFSIngestor(nil, &fakeSubmitter{err: errors.New("db down")}, nil, quietLogger())
		results, stats, err := ing.IngestDirectory(context.Background(), dir, false)
		require.NoError(t, err)
		assert.Equal(t, uint32(4), stats.Failed)
		for _, r := range results {
			assert.Contains(t, r.Err, "db down")
		}
	})

	t.Run("empty root", func(t *testing.T) {
		_, _, err := ing.IngestDirectory(context.Background(), " ", false)
		require.Error(t, err)
	})
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "existing.txt", acmeInvoice)

	sub := &fakeSubmitter{}
	ing := NewFSIngestor(nil, sub, nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: 20 * time.Millisecond}, ing)
	}()

	require.Eventually(t, func() bool { return sub.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	writeFile(t, dir, "new.txt", "Vendor: Globex\nTotal: $50.00\n")
	require.Eventually(t, func() bool { return sub.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, quietLogger())
	require.Error(t, err)
}
