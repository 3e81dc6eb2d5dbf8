package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// ErrNilViolation 传入的违规为 nil
var ErrNilViolation = errors.New("nil constraint violation")

// Resolver 把约束违规映射回引起它的字段、访问器或方法参数，并判断是否由 MVC 绑定结果处理
//
// 路径形状与处理方式：
//   - 形状 A：最后一个节点是属性。合并字段、getter、setter 上的注解；
//     有 MVC 绑定标记，或叶子对象类型声明了 fields_only/all 范围时，归 MVC 绑定结果
//   - 形状 B：最后一个节点是参数且路径长度为 2。读取该参数自身的注解，永远不归 MVC 绑定结果
//   - 形状 C：最后一个节点是对象且路径长度为 3（方法参数值上的类型级约束）。读取类型级注解；
//     有 MVC 绑定标记，或类型声明了 type_only/all 范围时，归 MVC 绑定结果
//   - 其他形状：记录警告，返回空注解集合且不归 MVC 绑定结果
//
// 线程安全：可在多个 goroutine 中并发使用
type Resolver struct {
	logger    *zap.Logger
	catalog   *Catalog
	tags      TagConfig
	inspector *introspector
}

// Option Resolver 配置项
type Option func(*resolverOptions)

type resolverOptions struct {
	logger    *zap.Logger
	catalog   *Catalog
	tags      TagConfig
	cacheSize int
}

// WithLogger 指定日志器，默认使用 zap.L()
func WithLogger(logger *zap.Logger) Option {
	return func(o *resolverOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCatalog 指定注解注册表，默认使用 DefaultCatalog()
func WithCatalog(catalog *Catalog) Option {
	return func(o *resolverOptions) {
		if catalog != nil {
			o.catalog = catalog
		}
	}
}

// WithTags 指定 tag 键，未设置的键使用默认值
func WithTags(tags TagConfig) Option {
	return func(o *resolverOptions) {
		o.tags = tags
	}
}

// WithCacheSize 指定类型信息缓存容量
func WithCacheSize(size int) Option {
	return func(o *resolverOptions) {
		o.cacheSize = size
	}
}

var (
	defaultCatalog = NewCatalog()

	defaultResolver *Resolver
	once            sync.Once
)

// DefaultCatalog 全局注解注册表
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Default 获取默认解析器（单例）
func Default() *Resolver {
	once.Do(func() {
		r, err := NewResolver()
		if err != nil {
			panic(err)
		}
		defaultResolver = r
	})
	return defaultResolver
}

// GetMetadata 使用默认解析器解析违规元数据
func GetMetadata(violation ConstraintViolation) (*ConstraintViolationMetadata, error) {
	return Default().Metadata(violation)
}

// NewResolver 创建解析器
func NewResolver(opts ...Option) (*Resolver, error) {
	o := &resolverOptions{
		catalog:   defaultCatalog,
		tags:      DefaultTagConfig(),
		cacheSize: DefaultTypeCacheSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.L()
	}

	in, err := newIntrospector(o.cacheSize)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		logger:    o.logger.Named("validate"),
		catalog:   o.catalog,
		tags:      o.tags.withDefaults(),
		inspector: in,
	}, nil
}

// Catalog 解析器使用的注解注册表
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Tags 解析器使用的 tag 键
func (r *Resolver) Tags() TagConfig {
	return r.tags
}

// ClearTypeCache 清除类型信息缓存
func (r *Resolver) ClearTypeCache() {
	r.inspector.purge()
}

// TypeCacheLen 缓存的类型数量
func (r *Resolver) TypeCacheLen() int {
	return r.inspector.len()
}

// violatedObject 解析结果
type violatedObject struct {
	annotations Annotations
	mvcBound    bool
}

// Metadata 解析违规元数据
// 只有形状 B 中描述的方法在根对象上找不到时返回错误（包装 ErrMethodNotFound），其余情况降级为空结果
func (r *Resolver) Metadata(violation ConstraintViolation) (*ConstraintViolationMetadata, error) {
	if violation == nil {
		return nil, ErrNilViolation
	}

	obj, err := r.violatedObject(violation)
	if err != nil {
		return nil, err
	}
	return newMetadata(violation, obj.annotations, obj.mvcBound, r.tags), nil
}

func (r *Resolver) violatedObject(violation ConstraintViolation) (violatedObject, error) {
	path := violation.PropertyPath()
	last, ok := path.Last()
	if !ok {
		return r.unresolved(path), nil
	}

	switch last.Kind {
	case NodeProperty:
		return r.propertyObject(violation, last), nil

	case NodeParameter:
		if len(path) == 2 && path[0].Kind == NodeMethod {
			anns, err := r.parameterAnnotations(violation.RootBean(), path[0], last)
			if err != nil {
				return violatedObject{}, err
			}
			return violatedObject{annotations: anns}, nil
		}

	case NodeBean:
		if len(path) == 3 {
			return r.beanObject(violation), nil
		}

	case NodeMethod, NodeOther:
	}

	return r.unresolved(path), nil
}

func (r *Resolver) unresolved(path Path) violatedObject {
	r.logger.Warn("could not read annotations for path",
		zap.String("path", path.String()),
		zap.Int("nodes", len(path)),
	)
	return violatedObject{annotations: Annotations{}}
}

// propertyObject 形状 A
func (r *Resolver) propertyObject(violation ConstraintViolation, node Node) violatedObject {
	leaf := violation.LeafBean()
	if leaf == nil {
		r.logger.Warn("property violation without leaf bean", zap.String("property", node.Name))
		return violatedObject{annotations: Annotations{}}
	}

	leafType := RealType(reflect.TypeOf(leaf))
	anns := r.propertyAnnotations(leafType, node.Name)

	scope, ok := r.scopeOf(leafType)
	bound := anns.Has(r.tags.MvcBinding) || (ok && scope.CoversFields())

	return violatedObject{annotations: anns, mvcBound: bound}
}

// propertyAnnotations 字段 + getter + setter 注解合并
func (r *Resolver) propertyAnnotations(t reflect.Type, property string) Annotations {
	info := r.inspector.inspect(t)

	fieldAnns, ok := info.field(property)
	if !ok {
		// 字段不存在是正常情况（只有访问器的属性）
		fieldAnns, _ = info.field(exportedName(property))
	}

	return fieldAnns.Merge(r.accessorAnnotations(info, property))
}

// accessorAnnotations getter 与 setter 上的注解
// setter 类型不匹配时记录警告，只使用 getter 的注解
func (r *Resolver) accessorAnnotations(info *typeInfo, property string) Annotations {
	pair, ok := info.accessors(property)
	if !ok {
		return Annotations{}
	}
	if pair.err != nil {
		r.logger.Warn("unable to introspect read and write methods",
			zap.String("property", property),
			zap.Stringer("type", info.typ),
			zap.Error(pair.err),
		)
	}

	var anns Annotations
	if pair.getter != "" {
		anns = anns.Merge(r.catalog.MethodAnnotations(info.typ, pair.getter))
	}
	if pair.setter != "" {
		anns = anns.Merge(r.catalog.MethodAnnotations(info.typ, pair.setter))
	}
	return anns.Merge()
}

// parameterAnnotations 形状 B：在根对象的运行时类型上按方法名与参数类型精确查找方法
func (r *Resolver) parameterAnnotations(root any, methodNode, paramNode Node) (Annotations, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: %s on nil root bean", ErrMethodNotFound, methodNode.Name)
	}

	rootType := reflect.TypeOf(root)
	method, ok := lookupMethod(rootType, methodNode.Name, methodNode.ParameterTypes)
	if !ok {
		return nil, fmt.Errorf("%w: %s%s on %s",
			ErrMethodNotFound, methodNode.Name, signature(methodNode.ParameterTypes), rootType)
	}

	index := paramNode.Index
	if index < 0 || index >= method.Type.NumIn()-1 {
		return nil, fmt.Errorf("%w: parameter index %d out of range for %s on %s",
			ErrMethodNotFound, index, method.Name, rootType)
	}

	anns := r.catalog.ParamAnnotations(rootType, method.Name, index)
	if realType := RealType(rootType); realType != indirectType(rootType) {
		anns = anns.Merge(r.catalog.ParamAnnotations(realType, method.Name, index))
	}
	return anns, nil
}

// beanObject 形状 C
func (r *Resolver) beanObject(violation ConstraintViolation) violatedObject {
	invalid := violation.InvalidValue()
	if invalid == nil {
		r.logger.Warn("bean violation without invalid value",
			zap.String("path", violation.PropertyPath().String()))
		return violatedObject{annotations: Annotations{}}
	}

	invalidType := RealType(reflect.TypeOf(invalid))
	anns := r.catalog.TypeAnnotations(invalidType)

	scope, ok := r.scopeOf(invalidType)
	bound := anns.Has(r.tags.MvcBinding) || (ok && scope.CoversType())

	return violatedObject{annotations: anns, mvcBound: bound}
}

// scopeOf 类型级范围标记；标记值无法识别时记录警告并视为没有标记
func (r *Resolver) scopeOf(t reflect.Type) (Scope, bool) {
	a, ok := r.catalog.TypeAnnotations(t).Get(r.tags.Validated)
	if !ok {
		return 0, false
	}
	scope, err := ParseScope(a.Value)
	if err != nil {
		r.logger.Warn("ignoring validation scope marker",
			zap.Stringer("type", t),
			zap.Error(err),
		)
		return 0, false
	}
	return scope, true
}

// lookupMethod 精确匹配方法名与参数类型（不含接收者）
// 值类型找不到时再在指针类型上查找，指针接收者的方法只在指针类型的方法集中
func lookupMethod(t reflect.Type, name string, params []reflect.Type) (reflect.Method, bool) {
	candidates := []reflect.Type{t}
	if t.Kind() != reflect.Pointer {
		candidates = append(candidates, reflect.PointerTo(t))
	}

	for _, c := range candidates {
		m, ok := c.MethodByName(name)
		if !ok || m.Type.NumIn()-1 != len(params) {
			continue
		}
		match := true
		for i, p := range params {
			if m.Type.In(i+1) != p {
				match = false
				break
			}
		}
		if match {
			return m, true
		}
	}
	return reflect.Method{}, false
}

func signature(params []reflect.Type) string {
	s := "("
	for i, p := range params {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprint(p)
	}
	return s + ")"
}
