package receipt

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zelyx-order-tracker/internal/model"
)

type fakeUploader struct {
	mu      sync.Mutex
	uploads []string
	appeals []string
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (u *fakeUploader) UploadReceipt(ctx context.Context, orderNumber string, file *model.ReceiptFile) error {
	return u.record(&u.uploads, orderNumber)
}

func (u *fakeUploader) AppealReceipt(ctx context.Context, orderNumber string, file *model.ReceiptFile) error {
	return u.record(&u.appeals, orderNumber)
}

func (u *fakeUploader) record(calls *[]string, orderNumber string) error {
	if u.block != nil {
		close(u.entered)
		<-u.block
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	*calls = append(*calls, orderNumber)
	return u.err
}

func slip() *model.ReceiptFile {
	return &model.ReceiptFile{Name: "slip.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
}

func TestSubmitWithoutFile(t *testing.T) {
	u := &fakeUploader{}
	f := NewFlow(u, Options{})

	assert.ErrorIs(t, f.Submit(t.Context(), "ORD-1", false), ErrNoFileSelected)
	assert.ErrorIs(t, f.SelectFile(nil), ErrNoFileSelected)
	assert.ErrorIs(t, f.SelectFile(&model.ReceiptFile{Name: "empty.png"}), ErrNoFileSelected)
	assert.Empty(t, u.uploads)
	assert.Equal(t, UploadIdle, f.State())
}

func TestSubmitSuccess(t *testing.T) {
	u := &fakeUploader{}
	var completed []bool
	f := NewFlow(u, Options{OnComplete: func(appeal bool) { completed = append(completed, appeal) }})

	require.NoError(t, f.SelectFile(slip()))
	require.NoError(t, f.Submit(t.Context(), "ORD-1001", false))

	assert.Equal(t, UploadSucceeded, f.State())
	assert.False(t, f.HasFile())
	assert.Equal(t, []string{"ORD-1001"}, u.uploads)
	assert.Equal(t, []bool{false}, completed)

	require.NoError(t, f.SelectFile(slip()))
	assert.Equal(t, UploadIdle, f.State())
	require.NoError(t, f.Submit(t.Context(), "ORD-1001", true))
	assert.Equal(t, []string{"ORD-1001"}, u.appeals)
	assert.Equal(t, []bool{false, true}, completed)
}

func TestSubmitFailureDoesNotRetry(t *testing.T) {
	u := &fakeUploader{err: errors.New("413 too large")}
	completed := 0
	f := NewFlow(u, Options{OnComplete: func(bool) { completed++ }})

	require.NoError(t, f.SelectFile(slip()))
	err := f.Submit(t.Context(), "ORD-1", false)
	require.Error(t, err)

	assert.Equal(t, UploadFailed, f.State())
	assert.EqualError(t, f.LastError(), "413 too large")
	assert.True(t, f.HasFile())
	assert.Len(t, u.uploads, 1)
	assert.Equal(t, 0, completed)

	u.err = nil
	require.NoError(t, f.Submit(t.Context(), "ORD-1", false))
	assert.Len(t, u.uploads, 2)
}

func TestSubmitWhileUploadingIsNoop(t *testing.T) {
	u := &fakeUploader{block: make(chan struct{}), entered: make(chan struct{})}
	f := NewFlow(u, Options{})
	require.NoError(t, f.SelectFile(slip()))

	done := make(chan error)
	go func() { done <- f.Submit(t.Context(), "ORD-1", false) }()
	<-u.entered

	assert.Equal(t, UploadUploading, f.State())
	assert.ErrorIs(t, f.Submit(t.Context(), "ORD-1", false), ErrUploadInProgress)
	assert.ErrorIs(t, f.SelectFile(slip()), ErrUploadInProgress)

	close(u.block)
	require.NoError(t, <-done)

	u.mu.Lock()
	assert.Len(t, u.uploads, 1)
	u.mu.Unlock()
}

func TestAppealLimit(t *testing.T) {
	u := &fakeUploader{}
	f := NewFlow(u, Options{MaxAppeals: 1})

	require.NoError(t, f.SelectFile(slip()))
	require.NoError(t, f.Submit(t.Context(), "ORD-1", true))

	require.NoError(t, f.SelectFile(slip()))
	assert.ErrorIs(t, f.Submit(t.Context(), "ORD-1", true), ErrAppealLimitReached)
	assert.Len(t, u.appeals, 1)

	// first uploads are not capped
	require.NoError(t, f.Submit(t.Context(), "ORD-1", false))
}
