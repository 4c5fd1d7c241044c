package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quoteRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

func bindQuery(t *testing.T, target string, req interface{}) []ValidationError {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	return ReadAndValidateRequest(c, req)
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	req := &quoteRequest{}
	assert.Nil(t, bindQuery(t, "/?symbol=BANKNIFTY", req))
	assert.Equal(t, "BANKNIFTY", req.Symbol)
	assert.Equal(t, 50, req.Limit)
}

func TestReadAndValidateRequestErrors(t *testing.T) {
	errs := bindQuery(t, "/?symbol=NIFTY%2050&limit=900", &quoteRequest{})
	require.Len(t, errs, 2)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "ERR_SYMBOL", byField["symbol"].Code)
	assert.Equal(t, "ERR_LTE", byField["limit"].Code)
	assert.Equal(t, "500", byField["limit"].Params["max"])

	errs = bindQuery(t, "/", &quoteRequest{})
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "symbol is required", errs[0].Message)
}

func TestReadAndValidateRequestBindError(t *testing.T) {
	errs := bindQuery(t, "/?symbol=NIFTY&limit=abc", &quoteRequest{})
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BAD_REQUEST", errs[0].Code)
}
