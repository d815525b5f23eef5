package sender

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/pivot-calculator/internal/lib/smtp"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/storage"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect(ctx context.Context) (smtp.Client, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) From() string {
	return m.Called().String(0)
}

// fakeClient записывает письмо в буфер.
type fakeClient struct {
	from    string
	rcpt    []string
	body    bytes.Buffer
	rcptErr error
	quit    bool
	closed  bool
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (c *fakeClient) Mail(from string) error {
	c.from = from
	return nil
}

func (c *fakeClient) Rcpt(to string) error {
	if c.rcptErr != nil {
		return c.rcptErr
	}
	c.rcpt = append(c.rcpt, to)
	return nil
}

func (c *fakeClient) Data() (io.WriteCloser, error) {
	return nopWriteCloser{&c.body}, nil
}

func (c *fakeClient) Quit() error {
	c.quit = true
	return nil
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

const validEvent = `{"user_id":"user-1","order_id":"order_42","plan":"1m","amount":2999,"currency":"INR","end_date":"2026-11-17T10:00:00Z"}`

func TestSendPaymentReceipt_Success(t *testing.T) {
	repo := new(MockRepository)
	transport := new(MockTransport)
	client := &fakeClient{}

	repo.On("GetProfile", mock.Anything, "user-1").Return(&models.Profile{ID: "user-1", Email: "trader@example.com"}, nil)
	transport.On("From").Return("no-reply@example.com")
	transport.On("Connect", mock.Anything).Return(client, nil).Once()

	svc := NewSenderService(repo, newNoopLogger(), transport)
	require.NoError(t, svc.SendPaymentReceipt(context.Background(), []byte(validEvent)))

	assert.Equal(t, "no-reply@example.com", client.from)
	assert.Equal(t, []string{"trader@example.com"}, client.rcpt)
	assert.Contains(t, client.body.String(), "order_42")
	assert.Contains(t, client.body.String(), "17.11.2026")
	assert.True(t, client.quit)
	assert.True(t, client.closed)
	repo.AssertExpectations(t)
	transport.AssertExpectations(t)
}

func TestSendPaymentReceipt_Failures(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		setup           func(*MockRepository, *MockTransport)
		wantUndelivered bool
		wantMsg         string
	}{
		{
			name:            "invalid JSON",
			body:            `invalid json`,
			setup:           func(*MockRepository, *MockTransport) {},
			wantUndelivered: true,
			wantMsg:         "error unmarshalling message",
		},
		{
			name:            "event without order",
			body:            `{"user_id":"user-1"}`,
			setup:           func(*MockRepository, *MockTransport) {},
			wantUndelivered: true,
		},
		{
			name: "profile not found",
			body: validEvent,
			setup: func(r *MockRepository, _ *MockTransport) {
				r.On("GetProfile", mock.Anything, "user-1").Return(nil, storage.ErrProfileNotFound)
			},
			wantUndelivered: true,
		},
		{
			name: "repository error is retried",
			body: validEvent,
			setup: func(r *MockRepository, _ *MockTransport) {
				r.On("GetProfile", mock.Anything, "user-1").Return(nil, errors.New("db down"))
			},
			wantMsg: "db down",
		},
		{
			name: "SMTP connection error",
			body: validEvent,
			setup: func(r *MockRepository, tr *MockTransport) {
				r.On("GetProfile", mock.Anything, "user-1").Return(&models.Profile{ID: "user-1", Email: "trader@example.com"}, nil)
				tr.On("From").Return("no-reply@example.com")
				tr.On("Connect", mock.Anything).Return(nil, errors.New("connection error"))
			},
			wantMsg: "connection error",
		},
		{
			name: "recipient rejected",
			body: validEvent,
			setup: func(r *MockRepository, tr *MockTransport) {
				r.On("GetProfile", mock.Anything, "user-1").Return(&models.Profile{ID: "user-1", Email: "trader@example.com"}, nil)
				tr.On("From").Return("no-reply@example.com")
				tr.On("Connect", mock.Anything).Return(&fakeClient{rcptErr: errors.New("550 no such user")}, nil)
			},
			wantMsg: "550 no such user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			transport := new(MockTransport)
			tt.setup(repo, transport)

			svc := NewSenderService(repo, newNoopLogger(), transport)
			err := svc.SendPaymentReceipt(context.Background(), []byte(tt.body))

			require.Error(t, err)
			assert.Equal(t, tt.wantUndelivered, errors.Is(err, ErrUndeliverable))
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			repo.AssertExpectations(t)
		})
	}
}
