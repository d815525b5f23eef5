package paymentwebhook

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/pivot-calculator/internal/services/reconciler"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) HandleWebhook(ctx context.Context, body []byte, sig string) (*reconciler.Result, error) {
	args := m.Called(ctx, body, sig)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciler.Result), args.Error(1)
}

func TestWebhookHandler_AlwaysAcknowledges(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)

	tests := []struct {
		name        string
		result      *reconciler.Result
		err         error
		wantAnomaly bool
	}{
		{name: "activated", result: &reconciler.Result{Outcome: reconciler.OutcomeActivated}},
		{name: "duplicate", result: &reconciler.Result{Outcome: reconciler.OutcomeDuplicate}},
		{name: "signature mismatch", err: reconciler.ErrSignatureInvalid},
		{name: "malformed", err: reconciler.ErrMalformedEvent},
		{name: "unrecoverable", err: reconciler.ErrUnrecoverableEvent, wantAnomaly: true},
		{name: "store failure", err: errors.Join(reconciler.ErrTransient, errors.New("timeout"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			log := slog.New(slog.NewTextHandler(&logs, nil))

			svc := new(MockService)
			svc.On("HandleWebhook", mock.Anything, body, "sig-hex").Return(tt.result, tt.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
			req.Header.Set(HeaderSignature, "sig-hex")
			rr := httptest.NewRecorder()
			New(log, svc).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.JSONEq(t, `{"status":"OK"}`, rr.Body.String())
			assert.Equal(t, tt.wantAnomaly, bytes.Contains(logs.Bytes(), []byte("anomaly=manual_reconciliation")))
			svc.AssertExpectations(t)
		})
	}
}
