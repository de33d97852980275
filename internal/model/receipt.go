package model

import "net/http"

// ReceiptFile is a payment receipt picked by the customer, held in memory
// until it is submitted.
type ReceiptFile struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f *ReceiptFile) MimeType() string {
	if f.ContentType != "" {
		return f.ContentType
	}
	return http.DetectContentType(f.Data)
}
