package validate

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ============================================================================
// 注解来源接口
// ============================================================================

// TypeTagger 声明类型级注解
//
// 示例：
//
//	func (ColorForm) TypeTags() reflect.StructTag {
//	    return `validated:"all"`
//	}
type TypeTagger interface {
	TypeTags() reflect.StructTag
}

// MethodTagger 声明方法级注解（访问器 getter/setter 等）
// 返回格式：map[方法名]tag
//
// 示例：
//
//	func (*ColorForm) MethodTags() map[string]reflect.StructTag {
//	    return map[string]reflect.StructTag{
//	        "ColorInput":    `mvc:"binding" validate:"required"`,
//	        "SetColorInput": `form:"color"`,
//	    }
//	}
type MethodTagger interface {
	MethodTags() map[string]reflect.StructTag
}

// ParamTagger 声明方法参数注解
// 返回格式：map[方法名][参数下标]tag
type ParamTagger interface {
	ParamTags() map[string][]reflect.StructTag
}

// Proxy 代理/生成类型的能力标记
// 依赖注入等场景下运行时对象是包装类型，注解声明在被代理的真实类型上，
// 实现该接口即告知解析器去真实类型上查找注解
type Proxy interface {
	ProxiedType() reflect.Type
}

// ProxyOf 可嵌入的代理标记
//
// 示例：
//
//	type colorFormProxy struct {
//	    validate.ProxyOf[ColorForm]
//	    *ColorForm
//	}
type ProxyOf[T any] struct{}

// ProxiedType 实现 Proxy 接口
func (ProxyOf[T]) ProxiedType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// RealType 返回承载注解的真实类型
// 指针会被解引用；实现了 Proxy 的类型解包一层
func RealType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	t = indirectType(t)

	if proxied := proxiedType(t); proxied != nil {
		return indirectType(proxied)
	}
	return t
}

func proxiedType(t reflect.Type) reflect.Type {
	p, ok := instanceOf[Proxy](t)
	if !ok {
		return nil
	}
	return safeProxiedType(p)
}

// safeProxiedType ProxiedType 的实现可能访问零值实例的字段，panic 时按非代理类型处理
func safeProxiedType(p Proxy) (t reflect.Type) {
	defer func() {
		if recover() != nil {
			t = nil
		}
	}()
	return p.ProxiedType()
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// ============================================================================
// Catalog 注解注册表
// ============================================================================

// methodKey 方法注解的索引键
type methodKey struct {
	typ    reflect.Type
	method string
}

// Catalog 为无法修改源码的类型补充注解
// 查找时与接口声明的注解合并，注册的注解排在后面
// 线程安全：读多写少，使用读写锁
type Catalog struct {
	mu      sync.RWMutex
	types   map[reflect.Type]Annotations
	methods map[methodKey]Annotations
	params  map[methodKey][]Annotations

	logger atomic.Pointer[zap.Logger]
}

// NewCatalog 创建空注册表
func NewCatalog() *Catalog {
	return &Catalog{
		types:   make(map[reflect.Type]Annotations),
		methods: make(map[methodKey]Annotations),
		params:  make(map[methodKey][]Annotations),
	}
}

// SetLogger 指定日志器，未指定时使用 zap.L()
func (c *Catalog) SetLogger(logger *zap.Logger) {
	c.logger.Store(logger)
}

func (c *Catalog) log() *zap.Logger {
	if l := c.logger.Load(); l != nil {
		return l
	}
	return zap.L()
}

// AnnotateType 注册类型级注解，t 为指针时按其元素类型注册
func (c *Catalog) AnnotateType(t reflect.Type, tag reflect.StructTag) {
	t = indirectType(t)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[t] = c.types[t].Merge(ParseTag(tag))
}

// AnnotateMethod 注册方法级注解
func (c *Catalog) AnnotateMethod(t reflect.Type, method string, tag reflect.StructTag) {
	key := methodKey{typ: indirectType(t), method: method}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods[key] = c.methods[key].Merge(ParseTag(tag))
}

// AnnotateParams 注册方法参数注解，按参数下标依次对应
func (c *Catalog) AnnotateParams(t reflect.Type, method string, tags ...reflect.StructTag) {
	key := methodKey{typ: indirectType(t), method: method}
	parsed := make([]Annotations, len(tags))
	for i, tag := range tags {
		parsed[i] = ParseTag(tag)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params[key] = parsed
}

// TypeAnnotations 返回类型级注解（接口声明 + 注册）
func (c *Catalog) TypeAnnotations(t reflect.Type) Annotations {
	t = indirectType(t)
	var declared Annotations
	if tagger, ok := instanceOf[TypeTagger](t); ok {
		c.callTagger(t, "TypeTags", func() {
			declared = ParseTag(tagger.TypeTags())
		})
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return declared.Merge(c.types[t])
}

// MethodAnnotations 返回方法级注解（接口声明 + 注册）
func (c *Catalog) MethodAnnotations(t reflect.Type, method string) Annotations {
	t = indirectType(t)
	var declared Annotations
	if tagger, ok := instanceOf[MethodTagger](t); ok {
		c.callTagger(t, "MethodTags", func() {
			if tag, exists := tagger.MethodTags()[method]; exists {
				declared = ParseTag(tag)
			}
		})
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return declared.Merge(c.methods[methodKey{typ: t, method: method}])
}

// ParamAnnotations 返回方法第 index 个参数的注解（接口声明 + 注册）
func (c *Catalog) ParamAnnotations(t reflect.Type, method string, index int) Annotations {
	t = indirectType(t)
	var declared Annotations
	if tagger, ok := instanceOf[ParamTagger](t); ok {
		c.callTagger(t, "ParamTags", func() {
			if tags := tagger.ParamTags()[method]; index >= 0 && index < len(tags) {
				declared = ParseTag(tags[index])
			}
		})
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	var registered Annotations
	if params := c.params[methodKey{typ: t, method: method}]; index >= 0 && index < len(params) {
		registered = params[index]
	}
	return declared.Merge(registered)
}

// callTagger 在零值实例上调用注解方法
// 嵌入的 nil 指针等会让方法 panic，此时按没有声明注解处理并记录警告
func (c *Catalog) callTagger(t reflect.Type, method string, call func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log().Warn("annotation method panicked on zero value",
				zap.Stringer("type", t),
				zap.String("method", method),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	call()
}

// instanceOf 用类型的零值实例做接口断言，值接收者和指针接收者方法都能命中
func instanceOf[I any](t reflect.Type) (I, bool) {
	var zero I
	if t == nil {
		return zero, false
	}
	iface := reflect.TypeOf((*I)(nil)).Elem()

	if reflect.PointerTo(t).Implements(iface) {
		inst, ok := reflect.New(t).Interface().(I)
		return inst, ok
	}
	return zero, false
}
