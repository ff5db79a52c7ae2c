package handlers

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/pix-panel/internal/domain"
)

var registerOnce sync.Once

// RegisterValidators installs custom validation rules on gin's binding
// engine. It is safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterStructValidation(validateWithdrawalBody, CreateWithdrawalRequest{})
	})
}

// validateWithdrawalBody checks the PIX key against its declared type.
func validateWithdrawalBody(sl validator.StructLevel) {
	req := sl.Current().Interface().(CreateWithdrawalRequest)
	if req.PixKey != "" && !domain.ValidPixKey(req.PixKeyType, req.PixKey) {
		sl.ReportError(req.PixKey, "PixKey", "pix_key", "pixkey", req.PixKeyType)
	}
}

// isPixKeyError reports whether err came from validateWithdrawalBody.
func isPixKeyError(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() == "pixkey" {
			return true
		}
	}
	return false
}
