package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/voucher"
)

const maxBodySize = 64 << 10

// requestError is a client error answered with 400.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

var errUnauthorized = errors.New("unauthorized")

// statusOf maps an error to its HTTP status and client-facing message.
func statusOf(err error) (int, string) {
	var (
		reqErr   *requestError
		notFound *checkout.ProductNotFoundError
		stockErr *checkout.InsufficientStockError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, cart.ErrNotFound):
		return http.StatusNotFound, "cart not found"
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest, "cart is empty"
	case errors.As(err, &notFound):
		return http.StatusUnprocessableEntity, notFound.Error()
	case errors.As(err, &stockErr):
		return http.StatusUnprocessableEntity, stockErr.Error()
	case errors.Is(err, voucher.ErrInvalidVoucher):
		return http.StatusUnprocessableEntity, "invalid voucher code"
	case errors.Is(err, voucher.ErrVoucherExpired):
		return http.StatusUnprocessableEntity, "voucher expired"
	case errors.Is(err, voucher.ErrUsageLimitReached):
		return http.StatusUnprocessableEntity, "voucher usage limit reached"
	case errors.Is(err, checkout.ErrLoyaltyUnavailable):
		return http.StatusUnprocessableEntity, "loyalty balance unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// fail writes the error response for err. Server errors are logged.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusOf(err)
	if code >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, code, msg)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(code)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

func writeJSON(w http.ResponseWriter, code int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

// decodeBody decodes a JSON object body, calling field for every key.
func decodeBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(data) > maxBodySize {
		return badRequest("request body too large")
	}
	if len(data) == 0 {
		return badRequest("request body is required")
	}
	if err := jx.DecodeBytes(data).Obj(field); err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			return reqErr
		}
		return badRequest("malformed request body")
	}
	return nil
}
