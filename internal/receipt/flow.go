// Package receipt holds the customer's picked payment slip and submits it,
// either as a first upload or as an appeal after a decline.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"zelyx-order-tracker/internal/model"
)

var (
	ErrNoFileSelected     = errors.New("no receipt file selected")
	ErrUploadInProgress   = errors.New("receipt upload already in progress")
	ErrAppealLimitReached = errors.New("appeal limit reached")
)

type UploadState string

const (
	UploadIdle      UploadState = "idle"
	UploadUploading UploadState = "uploading"
	UploadSucceeded UploadState = "succeeded"
	UploadFailed    UploadState = "failed"
)

// Uploader is the part of the shop client the flow needs.
type Uploader interface {
	UploadReceipt(ctx context.Context, orderNumber string, file *model.ReceiptFile) error
	AppealReceipt(ctx context.Context, orderNumber string, file *model.ReceiptFile) error
}

type Options struct {
	MaxAppeals int // 0 = unlimited
	OnComplete func(appeal bool)
}

type Flow struct {
	uploader Uploader
	opts     Options

	mu      sync.Mutex
	file    *model.ReceiptFile
	state   UploadState
	lastErr error
	appeals int
}

func NewFlow(uploader Uploader, opts Options) *Flow {
	return &Flow{
		uploader: uploader,
		opts:     opts,
		state:    UploadIdle,
	}
}

// SelectFile replaces the picked file and resets the flow to idle. Only the
// presence of a file is checked.
func (f *Flow) SelectFile(file *model.ReceiptFile) error {
	if file == nil || len(file.Data) == 0 {
		return ErrNoFileSelected
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == UploadUploading {
		return ErrUploadInProgress
	}
	f.file = file
	f.state = UploadIdle
	f.lastErr = nil
	return nil
}

// Submit sends the picked file. It never retries on its own; a failed submit
// keeps the file so the customer can try again.
func (f *Flow) Submit(ctx context.Context, orderNumber string, appeal bool) error {
	f.mu.Lock()
	if f.state == UploadUploading {
		f.mu.Unlock()
		return ErrUploadInProgress
	}
	if f.file == nil {
		f.mu.Unlock()
		return ErrNoFileSelected
	}
	if appeal && f.opts.MaxAppeals > 0 && f.appeals >= f.opts.MaxAppeals {
		f.mu.Unlock()
		return ErrAppealLimitReached
	}
	file := f.file
	f.state = UploadUploading
	f.lastErr = nil
	f.mu.Unlock()

	var err error
	if appeal {
		err = f.uploader.AppealReceipt(ctx, orderNumber, file)
	} else {
		err = f.uploader.UploadReceipt(ctx, orderNumber, file)
	}

	f.mu.Lock()
	if err != nil {
		f.state = UploadFailed
		f.lastErr = err
		f.mu.Unlock()
		return fmt.Errorf("submit receipt: %w", err)
	}

	f.state = UploadSucceeded
	f.file = nil
	if appeal {
		f.appeals++
	}
	f.mu.Unlock()

	if f.opts.OnComplete != nil {
		f.opts.OnComplete(appeal)
	}
	return nil
}

func (f *Flow) State() UploadState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *Flow) HasFile() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file != nil
}
