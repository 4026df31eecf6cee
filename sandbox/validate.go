package sandbox

import (
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	tagName = "validate"
)

var defaultValidator = &argValidator{}

type argValidator struct {
	once     sync.Once
	validate *validator.Validate
}

// Validate 参数验证，支持结构体、结构体指针以及它们组成的切片。
func (v *argValidator) Validate(obj interface{}) error {
	if obj == nil {
		return nil
	}
	value := reflect.ValueOf(obj)
	switch value.Kind() {
	case reflect.Ptr:
		if value.IsNil() {
			return nil
		}
		return v.Validate(value.Elem().Interface())
	case reflect.Slice, reflect.Array:
		for i := 0; i < value.Len(); i++ {
			if err := v.Validate(value.Index(i).Interface()); err != nil {
				return err
			}
		}
	case reflect.Struct:
		v.lazyInit()
		if err := v.validate.Struct(obj); err != nil {
			return err
		}
	}

	return nil
}

// lazyInit 延迟初始化
func (v *argValidator) lazyInit() {
	v.once.Do(func() {
		v.validate = validator.New()
		v.validate.SetTagName(tagName)
	})
}

// validateArgument 校验 obj，失败时返回 KindInvalidArgument 错误。
func validateArgument(op string, obj interface{}) error {
	if err := defaultValidator.Validate(obj); err != nil {
		return invalidArgument(op, "invalid "+op+" argument", err)
	}
	return nil
}
