package main

import (
	"reflect"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"katydid-mvc-binding/pkg/binding/validate"
	"katydid-mvc-binding/pkg/validator"
)

var goodColors = []string{"red", "orange", "yellow"}

// ColorForm 颜色表单
// 字段违规与类型级违规都进入绑定结果，由控制器决定如何响应
type ColorForm struct {
	Color string `form:"color" json:"color" validate:"notblank" mvc:"binding"`
}

// TypeTags 类型级约束也参与 MVC 绑定
func (ColorForm) TypeTags() reflect.StructTag {
	return `validated:"all"`
}

// CustomValidation 空白交给字段约束处理
func (f *ColorForm) CustomValidation(scene validator.ValidateScene, report validator.FuncReportError) {
	if strings.TrimSpace(f.Color) != "" && !IsGoodColor(f.Color) {
		report("", "goodcolor", "")
	}
}

func (f *ColorForm) GetErrorMessage(fieldName, tag, param string) string {
	switch tag {
	case "notblank", "required":
		return fieldName + " must not be blank"
	case "goodcolor":
		return "That is not a good color"
	}
	return ""
}

// IsGoodColor 不区分大小写
func IsGoodColor(color string) bool {
	color = strings.ToLower(color)
	for _, c := range goodColors {
		if c == color {
			return true
		}
	}
	return false
}

// registerValidations 注册表单用到的自定义标签
func registerValidations(v *validator.Validator) error {
	return v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.String {
			return true
		}
		return strings.TrimSpace(field.String()) != ""
	})
}

// ColorEjb 处理已通过验证的表单的后端服务
type ColorEjb struct {
	logger *zap.Logger
	calls  atomic.Int64
}

func newColorEjb(logger *zap.Logger) *ColorEjb {
	return &ColorEjb{logger: logger.Named("ejb")}
}

// DoEjbStuff 参数必须非空且级联验证通过
func (e *ColorEjb) DoEjbStuff(form *ColorForm) {
	e.calls.Add(1)
	e.logger.Info("color form received", zap.String("color", form.Color))
}

func (*ColorEjb) ParamTags() map[string][]reflect.StructTag {
	return map[string][]reflect.StructTag{
		"DoEjbStuff": {`validate:"required" valid:""`},
	}
}

// colorEjbProxy 容器注入的包装对象，注解在 ColorEjb 上
type colorEjbProxy struct {
	validate.ProxyOf[ColorEjb]
	*ColorEjb
}
