package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLead_HasContact(t *testing.T) {
	phone := "+15551234567"
	email := "a@b.com"
	empty := ""

	assert.True(t, Lead{PhoneE164: &phone}.HasContact())
	assert.True(t, Lead{Email: &email}.HasContact())
	assert.True(t, Lead{PhoneE164: &phone, Email: &email}.HasContact())
	assert.False(t, Lead{}.HasContact())
	assert.False(t, Lead{PhoneE164: &empty, Email: &empty}.HasContact())
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))

	p := StringPtr("x")
	assert.NotNil(t, p)
	assert.Equal(t, "x", *p)
}

func TestImportBatch_Defaults(t *testing.T) {
	b := ImportBatch{Status: BatchStatusReceived}
	assert.Equal(t, BatchStatusReceived, b.Status)
	assert.Zero(t, b.ProcessedCount)
	assert.Nil(t, b.UploadedBy)
}
