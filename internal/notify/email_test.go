package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/smtp"
	"packwatch/internal/catalog"
	"packwatch/internal/components/telemetry"
	"sync"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type sentMail struct {
	mail *email.Email
	addr string
	auth smtp.Auth
}

func newTestEmailNotifier(tel telemetry.API, send func(sentMail) error) (*EmailNotifier, *[]sentMail) {
	var sent []sentMail
	notifier := NewEmailNotifier(EmailConfig{
		Smtp: SmtpConfig{
			Server:       "localhost",
			Port:         1025,
			EmailAddress: "packwatch@example.com",
			Password:     "secret",
		},
		Recipients: map[int64]string{1: "alice@example.com"},
	}, tel)
	notifier.send = func(mail *email.Email, addr string, auth smtp.Auth) error {
		s := sentMail{mail: mail, addr: addr, auth: auth}
		sent = append(sent, s)
		return send(s)
	}
	return notifier, &sent
}

func TestEmailNotifier(t *testing.T) {
	notifier, sent := newTestEmailNotifier(telemetry.NewRecorder(), func(sentMail) error { return nil })

	err := notifier.Notify(context.Background(), 1, []catalog.ChangeEvent{newPackB})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	require.Equal(t, "localhost:1025", mail.addr)
	require.NotNil(t, mail.auth)
	require.Equal(t, []string{"alice@example.com"}, mail.mail.To)
	require.Equal(t, "Pack Watch <packwatch@example.com>", mail.mail.From)
	require.Equal(t, "New pack: Pack B for 9.99 €", mail.mail.Subject)
	require.Contains(t, string(mail.mail.Text), "https://store.gaijin.net/b")
}

func TestEmailNotifierSubjectCountsEvents(t *testing.T) {
	notifier, sent := newTestEmailNotifier(telemetry.NewRecorder(), func(sentMail) error { return nil })

	err := notifier.Notify(context.Background(), 1, []catalog.ChangeEvent{newPackB, raisedPackA})
	require.NoError(t, err)
	require.Equal(t, "2 War Thunder pack updates", (*sent)[0].mail.Subject)
}

func TestEmailNotifierWithoutRecipient(t *testing.T) {
	notifier, sent := newTestEmailNotifier(telemetry.NewRecorder(), func(sentMail) error { return nil })

	err := notifier.Notify(context.Background(), 2, []catalog.ChangeEvent{newPackB})
	require.NoError(t, err)
	require.Empty(t, *sent)
}

func TestEmailNotifierRetriesWithoutAuth(t *testing.T) {
	notifier, sent := newTestEmailNotifier(telemetry.NewRecorder(), func(s sentMail) error {
		if s.auth != nil {
			return errors.New("smtp: server doesn't support AUTH")
		}
		return nil
	})

	err := notifier.Notify(context.Background(), 1, []catalog.ChangeEvent{newPackB})
	require.NoError(t, err)
	require.Len(t, *sent, 2)
	require.Nil(t, (*sent)[1].auth)
}

func TestEmailNotifierFailure(t *testing.T) {
	rec := telemetry.NewRecorder()
	notifier, _ := newTestEmailNotifier(rec, func(sentMail) error {
		return errors.New("connection refused")
	})

	err := notifier.Notify(context.Background(), 1, []catalog.ChangeEvent{newPackB})
	require.ErrorContains(t, err, "connection refused")
	require.True(t, rec.Has(telemetry.LevelBroken, report_email_send))
}

// silentSmtp accepts connections and never sends the greeting.
func silentSmtp(t *testing.T) *net.TCPAddr {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		listener.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			conn.Close()
		}
	})
	return listener.Addr().(*net.TCPAddr)
}

func TestEmailNotifierStuckServer(t *testing.T) {
	addr := silentSmtp(t)
	rec := telemetry.NewRecorder()
	notifier := NewEmailNotifier(EmailConfig{
		Smtp: SmtpConfig{
			Server:       addr.IP.String(),
			Port:         addr.Port,
			EmailAddress: "packwatch@example.com",
		},
		Recipients: map[int64]string{1: "alice@example.com"},
	}, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := notifier.Notify(ctx, 1, []catalog.ChangeEvent{newPackB})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
	require.True(t, rec.Has(telemetry.LevelBroken, report_email_send))
}

func TestEmailNotifierFakeSmtp(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a container")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	server, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "haravich/fake-smtp-server",
			ExposedPorts: []string{"1025/tcp", "1080/tcp"},
			WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, server.Terminate(context.Background()))
	})

	host, err := server.Host(ctx)
	require.NoError(t, err)
	smtpPort, err := server.MappedPort(ctx, "1025/tcp")
	require.NoError(t, err)
	webPort, err := server.MappedPort(ctx, "1080/tcp")
	require.NoError(t, err)

	notifier := NewEmailNotifier(EmailConfig{
		Smtp: SmtpConfig{
			Server:       host,
			Port:         smtpPort.Int(),
			EmailAddress: "packwatch@example.com",
			Password:     "default",
		},
		Recipients: map[int64]string{1: "alice@example.com"},
	}, telemetry.NewRecorder())

	err = notifier.Notify(ctx, 1, []catalog.ChangeEvent{newPackB})
	require.NoError(t, err)

	res, err := resty.New().R().
		Get(fmt.Sprintf("http://%s:%s/messages/1.plain", host, webPort.Port()))
	require.NoError(t, err)
	require.Contains(t, res.String(), "Pack B")
}
