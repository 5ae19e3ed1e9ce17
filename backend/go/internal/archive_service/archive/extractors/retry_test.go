package extractors

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedDoer struct {
	calls     int
	responses []func() (*http.Response, error)
}

func (d *scriptedDoer) Do(*http.Request) (*http.Response, error) {
	i := d.calls
	d.calls++
	if i >= len(d.responses) {
		i = len(d.responses) - 1
	}
	return d.responses[i]()
}

func status(code int) func() (*http.Response, error) {
	return func() (*http.Response, error) {
		return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader("body"))}, nil
	}
}

func failure() (*http.Response, error) {
	return nil, errors.New("connection reset")
}

func TestWithRetries_RecoversFromTransientFailures(t *testing.T) {
	d := &scriptedDoer{responses: []func() (*http.Response, error){failure, status(503), status(200)}}
	doer := WithRetries(d, 2, 0)

	resp, err := doer.Do(httptest.NewRequest(http.MethodGet, "http://example.test", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, d.calls)
}

func TestWithRetries_GivesUp(t *testing.T) {
	d := &scriptedDoer{responses: []func() (*http.Response, error){failure}}
	doer := WithRetries(d, 2, 0)

	_, err := doer.Do(httptest.NewRequest(http.MethodGet, "http://example.test", nil))
	assert.Error(t, err)
	assert.Equal(t, 3, d.calls)
}

func TestWithRetries_LastServerErrorIsReturned(t *testing.T) {
	d := &scriptedDoer{responses: []func() (*http.Response, error){status(502)}}
	resp, err := WithRetries(d, 1, 0).Do(httptest.NewRequest(http.MethodGet, "http://example.test", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, 2, d.calls)
}

func TestWithRetries_SkipsNonGet(t *testing.T) {
	d := &scriptedDoer{responses: []func() (*http.Response, error){failure}}
	_, err := WithRetries(d, 3, 0).Do(httptest.NewRequest(http.MethodPost, "http://example.test", nil))
	assert.Error(t, err)
	assert.Equal(t, 1, d.calls)
}

func TestWithRetries_Disabled(t *testing.T) {
	d := &scriptedDoer{}
	assert.Same(t, Doer(d), WithRetries(d, 0, 0))
}
