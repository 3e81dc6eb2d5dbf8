package validate

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type accessorBean struct {
	Name    string
	enabled bool
	count   int
}

func (b accessorBean) GetName() string { return b.Name }
func (b *accessorBean) SetName(n string) { b.Name = n }
func (b accessorBean) IsEnabled() bool { return b.enabled }
func (b *accessorBean) Count() int { return b.count }
func (b *accessorBean) GetCount() int { return b.count }
func (b *accessorBean) SetCount(c int) error {
	b.count = c
	return nil
}

func (b *accessorBean) SetOnly(s string) {}

func TestCollectAccessors(t *testing.T) {
	info := buildTypeInfo(reflect.TypeOf(accessorBean{}))

	name, ok := info.accessors("name")
	require.True(t, ok)
	assert.Equal(t, accessorPair{getter: "GetName", setter: "SetName"}, name)

	enabled, ok := info.accessors("Enabled")
	require.True(t, ok)
	assert.Equal(t, "IsEnabled", enabled.getter)
	assert.Empty(t, enabled.setter)

	// X() 优先于 GetX()；返回 error 的 setter 也算
	count, ok := info.accessors("count")
	require.True(t, ok)
	assert.Equal(t, accessorPair{getter: "Count", setter: "SetCount"}, count)

	only, ok := info.accessors("Only")
	require.True(t, ok)
	assert.Empty(t, only.getter)
	assert.Equal(t, "SetOnly", only.setter)

	_, ok = info.accessors("missing")
	assert.False(t, ok)

	_, ok = info.field("Name")
	assert.True(t, ok)
	_, ok = info.field("Missing")
	assert.False(t, ok)
}

func TestCollectAccessors_Mismatch(t *testing.T) {
	info := buildTypeInfo(reflect.TypeOf(mismatchedBean{}))

	pair, ok := info.accessors("size")
	require.True(t, ok)
	assert.ErrorIs(t, pair.err, ErrIntrospection)
	assert.Equal(t, "Size", pair.getter)
	assert.Empty(t, pair.setter)
}

func TestRealType(t *testing.T) {
	assert.Equal(t, reflect.TypeOf(plainForm{}), RealType(reflect.TypeOf(&plainForm{})))
	assert.Equal(t, reflect.TypeOf(registeredBean{}), RealType(reflect.TypeOf(&beanProxy{})))
	assert.Equal(t, reflect.TypeOf(registeredBean{}), RealType(reflect.TypeOf(beanProxy{})))
	assert.Nil(t, RealType(nil))
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	typ := reflect.TypeOf(colorController{})

	c.AnnotateType(reflect.TypeOf(&colorController{}), `validated:"type_only"`)
	c.AnnotateMethod(typ, "Process", `mvc:"binding"`)
	c.AnnotateParams(typ, "Process", `cookie:"color"`)

	assert.True(t, c.TypeAnnotations(typ).Has("validated"))
	assert.True(t, c.MethodAnnotations(typ, "Process").Has("mvc"))
	assert.False(t, c.MethodAnnotations(typ, "Submit").Has("mvc"))

	// 接口声明在前，注册的在后
	params := c.ParamAnnotations(typ, "Process", 0)
	assert.Equal(t, "query", params[0].Key)
	assert.True(t, params.Has("cookie"))
	assert.Empty(t, c.ParamAnnotations(typ, "Process", 5))

	// 接口声明的方法注解
	getter := c.MethodAnnotations(reflect.TypeOf(colorFormModel{}), "ColorInput")
	assert.True(t, getter.Has("mvc"))
}

func TestCatalog_TaggerPanicsOnZeroValue(t *testing.T) {
	c := NewCatalog()
	typ := reflect.TypeOf(embeddedDefaultsForm{})
	c.AnnotateMethod(typ, "Color", `form:"color"`)

	assert.NotPanics(t, func() {
		assert.Empty(t, c.TypeAnnotations(typ))
		assert.Empty(t, c.ParamAnnotations(typ, "Apply", 0))

		// 注册的注解不受影响
		anns := c.MethodAnnotations(typ, "Color")
		assert.False(t, anns.Has("mvc"))
		assert.True(t, anns.Has("form"))
	})
}
