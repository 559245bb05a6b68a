package middleware

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationConfig struct {
	CustomValidators    map[string]validator.Func
	CustomErrorMessages map[string]string
}

// DefaultValidationConfig registers the kiosk binding tags: kioskcode for an appointment
// code of codeLength digits and birthdate for a DD/MM/YYYY or YYYY-MM-DD date.
func DefaultValidationConfig(codeLength int) ValidationConfig {
	return ValidationConfig{
		CustomValidators: map[string]validator.Func{
			"kioskcode": KioskCode(codeLength),
			"birthdate": BirthDate,
		},
		CustomErrorMessages: map[string]string{
			"required":  "Ce champ est obligatoire",
			"kioskcode": fmt.Sprintf("Veuillez saisir un code à %d chiffres.", codeLength),
			"birthdate": "Date de naissance invalide (JJ/MM/AAAA)",
			"max":       "Valeur trop longue",
		},
	}
}

func KioskCode(length int) validator.Func {
	return func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if len(code) != length {
			return false
		}
		for i := 0; i < len(code); i++ {
			if code[i] < '0' || code[i] > '9' {
				return false
			}
		}
		return true
	}
}

func BirthDate(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, layout := range []string{"02/01/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return !t.After(time.Now())
		}
	}
	return false
}

// Validation installs the custom tags on gin's validator and renders binding failures
// attached with c.Error as a field list.
func Validation(config ValidationConfig) gin.HandlerFunc {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		for tag, fn := range config.CustomValidators {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(err)
			}
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	}

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		var validationErrors []ValidationError
		for _, err := range c.Errors {
			errs, ok := err.Err.(validator.ValidationErrors)
			if !ok {
				continue
			}
			for _, e := range errs {
				msg := config.CustomErrorMessages[e.Tag()]
				if msg == "" {
					msg = e.Error()
				}
				validationErrors = append(validationErrors, ValidationError{
					Field:   e.Field(),
					Message: msg,
				})
			}
		}

		if len(validationErrors) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"status": "error",
				"code":   http.StatusBadRequest,
				"error":  "validation",
				"errors": validationErrors,
			})
		}
	}
}
