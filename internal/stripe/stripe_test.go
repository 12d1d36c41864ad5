package stripe

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

func TestConstructEvent(t *testing.T) {
	t.Parallel()

	const secret = "whsec_test"

	payload := func(apiVersion string) []byte {
		return []byte(fmt.Sprintf(
			`{"id":"evt_1","object":"event","type":"checkout.session.completed","api_version":%q,"data":{"object":{}}}`,
			apiVersion,
		))
	}

	type expected struct {
		err error
	}
	tests := map[string]struct {
		payload []byte
		secret  string
		ignore  bool
		exp     expected
	}{
		"pinned version": {
			payload: payload(stripe.APIVersion),
			secret:  secret,
		},
		"other version": {
			payload: payload("2020-08-27"),
			secret:  secret,
			exp:     expected{err: ErrAPIVersionMismatch},
		},
		"other version ignored": {
			payload: payload("2020-08-27"),
			secret:  secret,
			ignore:  true,
		},
		"wrong secret": {
			payload: payload(stripe.APIVersion),
			secret:  "whsec_other",
			exp:     expected{err: webhook.ErrNoValidSignature},
		},
	}

	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
				Payload:   test.payload,
				Secret:    test.secret,
				Timestamp: time.Now(),
			})

			s := New(nil, nil, nil, nil, nil, WebhookConfig{
				Secret:                   secret,
				IgnoreAPIVersionMismatch: test.ignore,
			})
			event, err := s.ConstructEvent(signed.Payload, signed.Header)
			if test.exp.err != nil {
				require.ErrorIs(t, err, test.exp.err)
				return
			}
			require.Nil(t, err)
			require.Equal(t, "evt_1", event.ID)
		})
	}
}

func TestMockConstructEvent(t *testing.T) {
	t.Parallel()

	m := NewMock()

	_, err := m.ConstructEvent([]byte(`{"id":"evt_1"}`), "")
	require.ErrorIs(t, err, errMissingSignature)

	_, err = m.ConstructEvent([]byte(`{"id":"evt_1","api_version":"2020-08-27"}`), "t=1,v1=abc")
	require.ErrorIs(t, err, ErrAPIVersionMismatch)

	event, err := m.ConstructEvent([]byte(`{"id":"evt_1"}`), "t=1,v1=abc")
	require.Nil(t, err)
	require.Equal(t, "evt_1", event.ID)
}
