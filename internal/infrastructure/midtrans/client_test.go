package midtrans

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fixtureOrderID   = "LDR20260309AB12-1773049200"
	fixtureCode      = "200"
	fixtureGross     = "59000.00"
	fixtureServerKey = "SB-Mid-server-TEST"
	fixtureSignature = "529303b1aa94aa48fa03a46f16688d87b828ea25f87b1308a43dde767c03baffb18d500852c8e875745086b72f5499429f29bf3f0bfdb51ef74395eab68de9ef"
)

func TestSignatureKey_Fixture(t *testing.T) {
	assert.Equal(t, fixtureSignature, SignatureKey(fixtureOrderID, fixtureCode, fixtureGross, fixtureServerKey))
	require.NoError(t, VerifySignature(fixtureOrderID, fixtureCode, fixtureGross, fixtureServerKey, fixtureSignature))
}

func TestVerifySignature_SingleCharMutation(t *testing.T) {
	mutate := func(s string) string {
		b := []byte(s)
		if b[0] == 'x' {
			b[0] = 'y'
		} else {
			b[0] = 'x'
		}
		return string(b)
	}
	assert.Error(t, VerifySignature(mutate(fixtureOrderID), fixtureCode, fixtureGross, fixtureServerKey, fixtureSignature))
	assert.Error(t, VerifySignature(fixtureOrderID, mutate(fixtureCode), fixtureGross, fixtureServerKey, fixtureSignature))
	assert.Error(t, VerifySignature(fixtureOrderID, fixtureCode, mutate(fixtureGross), fixtureServerKey, fixtureSignature))
	assert.Error(t, VerifySignature(fixtureOrderID, fixtureCode, fixtureGross, mutate(fixtureServerKey), fixtureSignature))
	assert.Error(t, VerifySignature(fixtureOrderID, fixtureCode, fixtureGross, fixtureServerKey, mutate(fixtureSignature)))
	assert.Error(t, VerifySignature(fixtureOrderID, fixtureCode, fixtureGross, fixtureServerKey, ""))
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{ServerKey: fixtureServerKey, BaseURL: srv.URL, SnapURL: srv.URL + "/snap/v1/transactions"})
	require.NoError(t, err)
	return c
}

func TestClient_Status(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != fixtureServerKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v2/"+fixtureOrderID+"/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"order_id":           fixtureOrderID,
			"transaction_status": "settlement",
			"fraud_status":       "accept",
			"status_code":        "200",
			"gross_amount":       "59000.00",
			"payment_type":       "bank_transfer",
			"va_numbers":         []map[string]string{{"bank": "bca", "va_number": "12345678901"}},
		})
	})
	st, err := c.Status(context.Background(), fixtureOrderID)
	require.NoError(t, err)
	assert.Equal(t, "settlement", st.TransactionStatus)
	assert.Equal(t, "12345678901", st.VA())
	assert.NoError(t, st.CheckGrossAmount(59000))
}

func TestTransactionStatus_CheckGrossAmount(t *testing.T) {
	cases := []struct {
		gross string
		total int64
		ok    bool
	}{
		{"59000.00", 59000, true},
		{"59000", 59000, true},
		{" 59000.0 ", 59000, true},
		{"59000.40", 59000, false},
		{"1.00", 59000, false},
		{"", 59000, false},
		{"abc", 59000, false},
	}
	for _, c := range cases {
		err := TransactionStatus{GrossAmount: c.gross}.CheckGrossAmount(c.total)
		if c.ok {
			assert.NoError(t, err, c.gross)
		} else {
			assert.Error(t, err, c.gross)
		}
	}
}

func TestClient_StatusNotFoundInBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status_code":"404","status_message":"Transaction doesn't exist."}`))
	})
	_, err := c.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestClient_StatusServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	_, err := c.Status(context.Background(), fixtureOrderID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransactionNotFound)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_CreateSnap(t *testing.T) {
	var got SnapRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"tok-1","redirect_url":"https://snap/redirect/tok-1"}`))
	})
	req := SnapRequest{
		TransactionDetails: TransactionDetails{OrderID: fixtureOrderID, GrossAmount: 59000},
		ItemDetails: []SnapItem{
			{ID: "shirt", Name: "Kemeja", Price: 8000, Quantity: 3},
			{ID: "bedcover", Name: "Bed cover", Price: 35000, Quantity: 1},
		},
	}
	resp, err := c.CreateSnap(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", resp.Token)
	assert.Equal(t, fixtureOrderID, got.TransactionDetails.OrderID)

	req.TransactionDetails.GrossAmount = 60000
	_, err = c.CreateSnap(context.Background(), req)
	assert.Error(t, err)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
