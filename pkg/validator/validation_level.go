package validator

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

// ValidationFunc 自定义标签的验证函数，返回 false 即产生一条违规
type ValidationFunc func(fl FieldLevel) bool

// FieldLevel 自定义验证函数能看到的字段信息
//
// 示例：
//
//	v.RegisterValidation("notblank", func(fl FieldLevel) bool {
//	    return strings.TrimSpace(fl.Field().String()) != ""
//	})
type FieldLevel interface {
	Field() reflect.Value
	Param() string
	// Tag 当前执行的标签名，同一函数注册到多个标签时用来区分
	Tag() string
	// FieldName 字段的 json 名
	FieldName() string
	StructFieldName() string

	// Parent 直接包含该字段的结构体；Var 验证方法参数与 getter 返回值时无效
	Parent() reflect.Value
	// Top 被验证的顶层对象
	Top() reflect.Value

	// Sibling 同一结构体中名为 name 的字段，用于 "password == confirm" 一类的比较
	Sibling(name string) (reflect.Value, bool)
}

// adapt 把 ValidationFunc 转换为 go-playground 的验证函数
func adapt(fn ValidationFunc) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return fn(fieldLevel{fl})
	}
}

type fieldLevel struct {
	fl validator.FieldLevel
}

func (w fieldLevel) Field() reflect.Value { return w.fl.Field() }
func (w fieldLevel) Param() string { return w.fl.Param() }
func (w fieldLevel) Tag() string { return w.fl.GetTag() }
func (w fieldLevel) FieldName() string { return w.fl.FieldName() }
func (w fieldLevel) StructFieldName() string { return w.fl.StructFieldName() }
func (w fieldLevel) Parent() reflect.Value { return w.fl.Parent() }
func (w fieldLevel) Top() reflect.Value { return w.fl.Top() }

func (w fieldLevel) Sibling(name string) (reflect.Value, bool) {
	parent := w.fl.Parent()
	if !parent.IsValid() {
		return reflect.Value{}, false
	}
	field, _, _, found := w.fl.GetStructFieldOKAdvanced2(parent, name)
	return field, found
}
