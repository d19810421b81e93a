package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ict-admin-api/internal/models"
	"github.com/noah-isme/ict-admin-api/internal/service"
)

type fakePaymentSrv struct {
	actorID string
	req     models.RecordPaymentRequest
	meta    service.PaymentMeta
	listID  string
}

func (f *fakePaymentSrv) Record(_ context.Context, actorID string, req models.RecordPaymentRequest, meta service.PaymentMeta) (*models.Payment, error) {
	f.actorID = actorID
	f.req = req
	f.meta = meta
	return &models.Payment{ID: "pay-1", EnrollmentID: req.EnrollmentID, Amount: req.Amount, ReceivedByID: actorID}, nil
}

func (f *fakePaymentSrv) ListForEnrollment(_ context.Context, enrollmentID string) ([]models.Payment, error) {
	f.listID = enrollmentID
	return []models.Payment{}, nil
}

func TestPaymentHandlerRecordStampsCaller(t *testing.T) {
	srv := &fakePaymentSrv{}
	handler := NewPaymentHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/payments", `{"enrollment_id":"enr-1","amount":2500,"method":"MPESA","reference_number":"QW12"}`)
	c.Request.Header.Set("User-Agent", "cashier-desk")
	withClaims(c, "finance-1")

	handler.Record(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "finance-1", srv.actorID)
	assert.Equal(t, "2500", srv.req.Amount.String())
	assert.Equal(t, models.PaymentMethodMpesa, srv.req.Method)
	assert.Equal(t, "cashier-desk", srv.meta.UserAgent)
}

func TestPaymentHandlerRecordRequiresAuth(t *testing.T) {
	handler := NewPaymentHandler(&fakePaymentSrv{})
	c, rec := newTestContext(http.MethodPost, "/payments", `{"enrollment_id":"enr-1","amount":2500,"method":"CASH"}`)

	handler.Record(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentHandlerListReturnsEmptyArray(t *testing.T) {
	srv := &fakePaymentSrv{}
	handler := NewPaymentHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/enrollments/enr-1/payments", "")
	c.Params = append(c.Params, ginParam("id", "enr-1"))

	handler.ListForEnrollment(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "enr-1", srv.listID)
	assert.Equal(t, "[]", string(decodeEnvelope(t, rec).Data))
}
