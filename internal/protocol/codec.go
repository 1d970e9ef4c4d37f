package protocol

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/models"
	"advisory-canvas/internal/security"
)

// Codec encodes outbound payloads and decodes and validates inbound ones.
type Codec struct {
	validate *validator.Validate
}

// NewCodec creates a codec with the domain validation tags registered.
func NewCodec() *Codec {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "ticker", security.IsTicker)
	mustRegister(v, "period", security.IsPeriod)
	mustRegister(v, "identifier", security.IsIdentifier)
	v.RegisterStructValidation(validateShapeGeometry, SerializedShape{})
	return &Codec{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn func(string) bool) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("protocol: register %s validation: %v", tag, err))
	}
}

func validateShapeGeometry(sl validator.StructLevel) {
	shape := sl.Current().Interface().(SerializedShape)
	if !models.ShapeType(shape.Type).Valid() {
		// Reported by the oneof tag.
		return
	}
	if err := checkGeometry(shape); err != nil {
		var vErr *errors.ValidationError
		if errors.As(err, &vErr) {
			sl.ReportError(shape.Points, vErr.Field, vErr.Field, "geometry", vErr.Message)
		}
	}
}

// Encode marshals a payload.
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}
	return data, nil
}

// Decode unmarshals data into v and validates it. Every failure is returned
// as a *errors.MessageError so callers can drop the message uniformly.
func (c *Codec) Decode(msgType string, data []byte, v interface{}) error {
	if len(data) == 0 {
		return errors.NewMessageError(msgType, "empty payload", nil)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewMessageError(msgType, "invalid json", err)
	}
	if err := c.validate.Struct(v); err != nil {
		return errors.NewMessageError(msgType, "validation failed", err)
	}
	return nil
}

// ValidateShape checks a local shape against the rules receivers apply to
// its wire form.
func (c *Codec) ValidateShape(s *models.Shape) error {
	if s == nil {
		return errors.NewValidationError("shape", nil, "shape is nil")
	}
	if err := c.validate.Struct(SerializeShape(s)); err != nil {
		return errors.NewValidationError("shape", s.ID, err.Error())
	}
	return nil
}

var defaultCodec = NewCodec()

// Encode marshals a payload with the default codec.
func Encode(v interface{}) ([]byte, error) {
	return defaultCodec.Encode(v)
}

// Decode decodes and validates a payload with the default codec.
func Decode(msgType string, data []byte, v interface{}) error {
	return defaultCodec.Decode(msgType, data, v)
}

// ValidateShape validates a local shape with the default codec.
func ValidateShape(s *models.Shape) error {
	return defaultCodec.ValidateShape(s)
}
