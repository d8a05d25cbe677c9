package stripe

import (
	"testing"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"
)

const testSecret = "whsec_test_secret"

func signed(t *testing.T, payload string) (string, []byte) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload),
		Secret:  testSecret,
	})
	return sp.Header, sp.Payload
}

const checkoutEvent = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "customer": "cus_1",
    "customer_email": null,
    "customer_details": {"email": "jane@example.com"},
    "payment_intent": "pi_1",
    "payment_status": "paid",
    "amount_subtotal": 19700,
    "amount_total": 19700,
    "currency": "usd",
    "metadata": {"full_name": "Jane Q Doe"}
  }}
}`

func TestConstructEventVerifiesSignature(t *testing.T) {
	header, payload := signed(t, checkoutEvent)

	event, err := ConstructEvent(payload, header, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)

	_, err = ConstructEvent(payload, header, "whsec_other")
	assert.ErrorIs(t, err, domain.ErrWebhookValidationFailed)

	_, err = ConstructEvent(payload, "", testSecret)
	assert.ErrorIs(t, err, domain.ErrWebhookValidationFailed)

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = ' '
	_, err = ConstructEvent(tampered, header, testSecret)
	assert.ErrorIs(t, err, domain.ErrWebhookValidationFailed)
}

func TestToPaymentEventCheckoutSession(t *testing.T) {
	header, payload := signed(t, checkoutEvent)
	event, err := ConstructEvent(payload, header, testSecret)
	require.NoError(t, err)

	pe, ok, err := ToPaymentEvent(event)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, domain.EventCheckoutSessionCompleted, pe.Type)
	assert.Equal(t, "cs_test_1", pe.ObjectID)
	assert.Equal(t, "pi_1", pe.PaymentIntentID)
	assert.Equal(t, "cus_1", pe.CustomerID)
	assert.Equal(t, "jane@example.com", pe.Email)
	assert.Equal(t, "Jane Q Doe", pe.MetadataName())
	assert.Equal(t, int64(19700), pe.AmountTotal)
	assert.Equal(t, domain.PaymentStatusPaid, pe.PaymentStatus)
}

func TestToPaymentEventPaymentIntent(t *testing.T) {
	header, payload := signed(t, `{
	  "id": "evt_2",
	  "object": "event",
	  "type": "payment_intent.succeeded",
	  "data": {"object": {
	    "id": "pi_2", "object": "payment_intent", "customer": "cus_2",
	    "receipt_email": "bob@example.com", "amount": 4900, "currency": "eur",
	    "status": "succeeded", "metadata": {}
	  }}
	}`)
	event, err := ConstructEvent(payload, header, testSecret)
	require.NoError(t, err)

	pe, ok, err := ToPaymentEvent(event)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pi_2", pe.TransactionID())
	assert.Equal(t, "cus_2", pe.CustomerID)
	assert.Equal(t, "bob@example.com", pe.Email)
	assert.False(t, pe.IsCheckoutSession())
}

func TestToPaymentEventIgnoresOtherTypes(t *testing.T) {
	header, payload := signed(t, `{"id":"evt_3","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)
	event, err := ConstructEvent(payload, header, testSecret)
	require.NoError(t, err)

	pe, ok, err := ToPaymentEvent(event)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, pe)
	assert.False(t, IsSubscriptionEvent(event))
}

func TestSubscriptionCustomerID(t *testing.T) {
	header, payload := signed(t, `{"id":"evt_4","object":"event","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","object":"subscription","customer":"cus_9"}}}`)
	event, err := ConstructEvent(payload, header, testSecret)
	require.NoError(t, err)

	assert.True(t, IsSubscriptionEvent(event))
	id, err := SubscriptionCustomerID(event)
	require.NoError(t, err)
	assert.Equal(t, "cus_9", id)
}
