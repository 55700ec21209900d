package mailer

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSendComposesMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody string
	s := NewSMTP(Config{Host: "smtp.test", Port: 587, FromAddress: "noreply@photocomp.test", FromName: "PhotoComp"})
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, string(msg)
		return nil
	}

	err := s.Send(context.Background(), Message{To: "ada@example.com", Subject: "Welcome", BodyHTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.test:587", gotAddr)
	assert.Equal(t, "noreply@photocomp.test", gotFrom)
	assert.Equal(t, []string{"ada@example.com"}, gotTo)
	assert.Contains(t, gotBody, "From: PhotoComp <noreply@photocomp.test>\r\n")
	assert.Contains(t, gotBody, "Subject: Welcome\r\n")
	assert.Contains(t, gotBody, "<p>hi</p>")
}

func TestSMTPSendRequiresHost(t *testing.T) {
	err := NewSMTP(Config{}).Send(context.Background(), Message{To: "a@b.c"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSMTPSendRejectsHeaderInjection(t *testing.T) {
	s := NewSMTP(Config{Host: "smtp.test", Port: 25})
	err := s.Send(context.Background(), Message{To: "a@b.c\r\nBcc: x@y.z", Subject: "s"})
	assert.Error(t, err)
}
