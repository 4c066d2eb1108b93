package networking

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	client, err := NewHttpClientBuilder().Build()
	require.NoError(t, err)
	assert.Equal(t, HttpTimeout, client.Timeout)

	vt, ok := client.Transport.(*ValidatingTransport)
	require.True(t, ok)
	assert.False(t, vt.AllowHTTP)
}

func TestValidatingTransportRejectsHTTP(t *testing.T) {
	t.Parallel()

	client, err := NewHttpClientBuilder().Build()
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "http://example.com/token", nil)
	require.NoError(t, err)

	_, err = client.Transport.RoundTrip(req)
	assert.ErrorContains(t, err, "not HTTPS")
}

func TestPrivateIPsAllowHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	client, err := NewHttpClientBuilder().WithPrivateIPs(true).Build()
	require.NoError(t, err)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAddressReferencesPrivateIP(t *testing.T) {
	t.Parallel()

	assert.Error(t, addressReferencesPrivateIP("127.0.0.1:443"))
	assert.Error(t, addressReferencesPrivateIP("10.0.0.1:443"))
	assert.Error(t, addressReferencesPrivateIP("192.168.1.5:8080"))
	assert.NoError(t, addressReferencesPrivateIP("93.184.216.34:443"))
}

func TestBuildWithMissingCABundle(t *testing.T) {
	t.Parallel()

	_, err := NewHttpClientBuilder().WithCABundle("/nonexistent/ca.pem").Build()
	assert.ErrorContains(t, err, "CA certificate bundle")
}
