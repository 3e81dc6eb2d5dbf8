package validate

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// testViolation 测试用违规
type testViolation struct {
	path    Path
	invalid any
	root    any
	leaf    any
	message string
}

func (v *testViolation) Error() string { return v.message }
func (v *testViolation) PropertyPath() Path { return v.path }
func (v *testViolation) InvalidValue() any { return v.invalid }
func (v *testViolation) RootBean() any { return v.root }
func (v *testViolation) LeafBean() any { return v.leaf }

// colorFormModel 访问器风格的表单：注解在 getter/setter 上
type colorFormModel struct {
	colorInput string
}

func (f *colorFormModel) ColorInput() string { return f.colorInput }
func (f *colorFormModel) SetColorInput(c string) { f.colorInput = c }

func (*colorFormModel) MethodTags() map[string]reflect.StructTag {
	return map[string]reflect.StructTag{
		"ColorInput":    `mvc:"binding" validate:"required"`,
		"SetColorInput": `form:"color"`,
	}
}

// fieldsOnlyForm 范围 fields_only，无显式绑定标记
type fieldsOnlyForm struct {
	Name string `query:"name" validate:"required"`
}

func (fieldsOnlyForm) TypeTags() reflect.StructTag { return `validated:"fields_only"` }

// typeOnlyForm 范围 type_only，无显式绑定标记
type typeOnlyForm struct {
	Name string `query:"name" validate:"required"`
}

func (typeOnlyForm) TypeTags() reflect.StructTag { return `validated:"type_only" goodname:""` }

// allForm 范围标记不带值，即默认的 all
type allForm struct {
	Color string `form:"color"`
}

func (allForm) TypeTags() reflect.StructTag { return `validated:""` }

// explicitForm 类型声明 type_only，但字段有显式绑定标记
type explicitForm struct {
	Color string `form:"color" mvc:"binding"`
}

func (explicitForm) TypeTags() reflect.StructTag { return `validated:"type_only"` }

// plainForm 没有任何标记
type plainForm struct {
	Page int `query:"page" validate:"min=1"`
}

// registeredBean 只通过注册表声明类型注解
type registeredBean struct {
	Code string `path:"code"`
}

// beanProxy 生成的代理类型：自身没有任何注解
type beanProxy struct {
	ProxyOf[registeredBean]
	target *registeredBean
}

// mismatchedBean getter 与 setter 类型不一致
type mismatchedBean struct {
	size int `cookie:"size"`
}

func (b *mismatchedBean) Size() int { return b.size }
func (b *mismatchedBean) SetSize(s string) {}
func (*mismatchedBean) MethodTags() map[string]reflect.StructTag {
	return map[string]reflect.StructTag{"Size": `mvc:"binding"`}
}

// colorController 方法参数上的注解
type colorController struct{}

func (c *colorController) Process(color string, count int) string { return color }
func (c *colorController) Submit(form *allForm) string { return "" }

func (*colorController) ParamTags() map[string][]reflect.StructTag {
	return map[string][]reflect.StructTag{
		"Process": {`query:"color" mvc:"binding" validate:"required"`, `query:"count"`},
		"Submit":  {`valid:""`},
	}
}

var (
	stringType = reflect.TypeOf("")
	intType    = reflect.TypeOf(0)
)

// newTestResolver 使用独立注册表与可观察日志
func newTestResolver(t *testing.T) (*Resolver, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.WarnLevel)
	catalog := NewCatalog()
	catalog.SetLogger(zap.New(core))
	catalog.AnnotateType(reflect.TypeOf(registeredBean{}), `validated:"all"`)

	r, err := NewResolver(WithLogger(zap.New(core)), WithCatalog(catalog))
	require.NoError(t, err)
	return r, logs
}

// formDefaults 通过值接收者声明注解，嵌入为 nil 指针时零值实例调用会 panic
type formDefaults struct {
	scope string
}

func (d formDefaults) TypeTags() reflect.StructTag {
	return reflect.StructTag(`validated:"` + d.scope + `"`)
}

func (d formDefaults) MethodTags() map[string]reflect.StructTag {
	return map[string]reflect.StructTag{"Color": reflect.StructTag(`mvc:"` + d.scope + `"`)}
}

func (d formDefaults) ParamTags() map[string][]reflect.StructTag {
	return map[string][]reflect.StructTag{"Apply": {reflect.StructTag(`query:"` + d.scope + `"`)}}
}

func (d formDefaults) Apply(color string) {}

// embeddedDefaultsForm 注解方法经由 nil 指针提升
type embeddedDefaultsForm struct {
	*formDefaults
	Color string `form:"color"`
}
