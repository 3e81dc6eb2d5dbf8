package validator

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"katydid-mvc-binding/pkg/binding/validate"
)

// ValidateScene 验证场景标识符，使用位运算支持场景组合验证
//
// 使用示例：
//
//	const (
//	    SceneCreate ValidateScene = 1 << 0  // 0b0001 创建场景
//	    SceneUpdate ValidateScene = 1 << 1  // 0b0010 更新场景
//	)
//
//	// 场景组合：创建和更新都需要的规则
//	SceneCreateUpdate := SceneCreate | SceneUpdate
type ValidateScene int64

// 预定义的通用验证场景常量
const (
	SceneNone ValidateScene = 0  // 无场景
	SceneAll  ValidateScene = -1 // 所有场景(111...111)
)

// 验证器配置常量
const (
	// maxNestedDepth 最大嵌套验证深度，防止无限递归导致栈溢出
	maxNestedDepth = 100

	// ruleTagKey 约束规则的 tag 键，与 go-playground/validator 默认一致
	ruleTagKey = "validate"
	// cascadeTagKey 方法参数上的级联验证标记
	cascadeTagKey = "valid"
)

// ErrArgumentCount 方法参数验证时实参个数与方法声明不一致
var ErrArgumentCount = errors.New("argument count does not match method signature")

// ============================================================================
// 核心验证接口
// ============================================================================

// RuleValidator 规则验证器接口 - 场景化的字段验证规则
// 实现该接口的类型不再使用 struct tag 中的 validate 规则
//
// 示例：
//
//	func (u *User) RuleValidation() map[ValidateScene]map[string]string {
//	    return map[ValidateScene]map[string]string{
//	        SceneCreate: {"Username": "required,min=3", "Email": "required,email"},
//	        SceneUpdate: {"Username": "omitempty,min=3", "Email": "omitempty,email"},
//	    }
//	}
type RuleValidator interface {
	// RuleValidation 返回场景化的验证规则映射
	// 返回格式：map[场景标识][字段名]规则字符串
	RuleValidation() map[ValidateScene]map[string]string
}

// CustomValidator 自定义验证器接口 - 跨字段验证和类型级约束
//
// 示例：
//
//	func (f *ColorForm) CustomValidation(scene ValidateScene, report FuncReportError) {
//	    // 类型级约束：namespace 为空
//	    if !isGoodColor(f.Color) {
//	        report("", "goodcolor", "")
//	    }
//	    // 跨字段约束：namespace 为相对字段路径
//	    if f.Password != f.ConfirmPassword {
//	        report("ConfirmPassword", "eqfield", "Password")
//	    }
//	}
type CustomValidator interface {
	CustomValidation(scene ValidateScene, report FuncReportError)
}

// FuncReportError 错误报告函数类型
//
// 参数：
//   - namespace: 相对当前对象的字段路径（如 "Profile.Email"），为空表示对象本身（类型级约束）
//   - tag: 验证标签（如："required", "goodcolor"）
//   - param: 验证参数
type FuncReportError func(namespace, tag, param string)

// ErrorMessageProvider 自定义错误消息
// 由违规所在的对象实现，返回空字符串时使用默认消息；类型级约束的 fieldName 为空
type ErrorMessageProvider interface {
	GetErrorMessage(fieldName, tag, param string) string
}

// Validator 验证器，把 go-playground/validator 的结果转换为带属性路径的约束违规
//
// 特性：
//   - 场景化规则（RuleValidator）、struct tag 规则、getter 规则（validate.MethodTagger）
//   - 跨字段/类型级约束（CustomValidator）
//   - 方法参数验证（ValidateParameters），支持对标记了 valid 的参数级联验证
//   - 类型信息缓存，避免重复的接口检查
type Validator struct {
	// validate 底层验证器实例（go-playground/validator）
	validate *validator.Validate
	// typeCache 类型信息缓存，key: reflect.Type, value: *typeCache
	typeCache *sync.Map
	// catalog 读取方法与参数注解
	catalog *validate.Catalog
	logger  *zap.Logger
}

// typeCache 类型信息缓存结构，用于避免重复的类型断言和反射操作
type typeCache struct {
	isRuleValidator   bool
	isCustomValidator bool
	validationRules   map[ValidateScene]map[string]string
	// getterRules getter 方法名 => 规则
	getterRules map[string]string
}

var (
	defaultValidator *Validator
	once             sync.Once
)

// Option Validator 配置项
type Option func(*Validator)

// WithLogger 指定日志器，默认使用 zap.L()
func WithLogger(logger *zap.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithCatalog 指定注解注册表，默认使用 validate.DefaultCatalog()
func WithCatalog(catalog *validate.Catalog) Option {
	return func(v *Validator) {
		if catalog != nil {
			v.catalog = catalog
		}
	}
}

// Default 获取默认验证器实例（单例）
func Default() *Validator {
	once.Do(func() {
		defaultValidator = New()
	})
	return defaultValidator
}

// Validate 使用默认验证器验证对象
func Validate(obj any, scene ValidateScene) []*FieldError {
	return Default().Validate(obj, scene)
}

// ValidateParameters 使用默认验证器验证方法参数
func ValidateParameters(root any, method string, scene ValidateScene, args ...any) ([]*FieldError, error) {
	return Default().ValidateParameters(root, method, scene, args...)
}

// New 创建新的验证器实例
func New(opts ...Option) *Validator {
	v := validator.New()

	// 使用 json tag 作为错误中的字段名，属性路径仍使用结构体字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	val := &Validator{
		validate:  v,
		typeCache: &sync.Map{},
		catalog:   validate.DefaultCatalog(),
		logger:    zap.L(),
	}
	for _, opt := range opts {
		opt(val)
	}
	val.logger = val.logger.Named("validator")
	return val
}

// walkState 一次验证调用的共享状态
type walkState struct {
	ctx  *ValidationContext
	root any
}

// Validate 验证对象，返回带属性路径的违规列表，nil 表示验证通过
//
// 验证流程（每个嵌套对象都执行）：
//  1. 字段规则：RuleValidator 的场景规则，或 struct tag（由最外层的 validate.Struct 一次覆盖）
//  2. getter 规则：validate.MethodTagger 中 getter 方法的 validate 注解
//  3. 递归验证嵌套的结构体字段、结构体切片元素
//  4. CustomValidator 跨字段/类型级约束
func (v *Validator) Validate(obj any, scene ValidateScene) []*FieldError {
	if obj == nil {
		return []*FieldError{
			NewFieldError("struct", "required", "").
				WithMessage("validation target cannot be nil"),
		}
	}

	ctx := acquireValidationContext(scene)
	defer releaseValidationContext(ctx)

	st := &walkState{ctx: ctx, root: obj}
	v.validateBean(st, reflect.ValueOf(obj), validate.Path{}, false, 0)

	result := v.buildValidationResult(ctx)
	v.logger.Debug("bean validated",
		zap.Stringer("type", reflect.TypeOf(obj)),
		zap.Int("violations", len(result)),
	)
	return result
}

// ValidateNested 在路径前缀 prefix 下级联验证 obj，违规的根对象为 root
// 用于验证作为方法参数传入的对象，例如请求绑定后的表单：prefix 为 [方法, 参数]
func (v *Validator) ValidateNested(root any, prefix validate.Path, obj any, scene ValidateScene) []*FieldError {
	if obj == nil {
		return nil
	}

	ctx := acquireValidationContext(scene)
	defer releaseValidationContext(ctx)

	st := &walkState{ctx: ctx, root: root}
	v.validateBean(st, reflect.ValueOf(obj), prefix, false, 0)
	return v.buildValidationResult(ctx)
}

// ValidateParameters 验证一次方法调用的参数
//
// 参数注解来自 validate.ParamTagger 或注册表：
//   - validate：参数值的约束规则，违规路径为 [方法, 参数]
//   - valid：对参数值级联验证，违规路径为 [方法, 参数, 属性...] 或 [方法, 参数, 对象]
//
// 方法不存在时返回包装了 validate.ErrMethodNotFound 的错误，实参个数不一致时返回 ErrArgumentCount
func (v *Validator) ValidateParameters(root any, method string, scene ValidateScene, args ...any) ([]*FieldError, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: %s on nil root", validate.ErrMethodNotFound, method)
	}

	rootType := reflect.TypeOf(root)
	m, ok := rootType.MethodByName(method)
	if !ok && rootType.Kind() != reflect.Pointer {
		m, ok = reflect.PointerTo(rootType).MethodByName(method)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", validate.ErrMethodNotFound, method, rootType)
	}

	// 第 0 个入参是接收者
	numParams := m.Type.NumIn() - 1
	if numParams != len(args) {
		return nil, fmt.Errorf("%w: %s.%s expects %d, got %d", ErrArgumentCount, rootType, method, numParams, len(args))
	}
	paramTypes := make([]reflect.Type, numParams)
	for i := range paramTypes {
		paramTypes[i] = m.Type.In(i + 1)
	}
	methodNode := validate.MethodNode(method, paramTypes...)

	ctx := acquireValidationContext(scene)
	defer releaseValidationContext(ctx)
	st := &walkState{ctx: ctx, root: root}

	for i, arg := range args {
		anns := v.catalog.ParamAnnotations(rootType, method, i)
		if realType := validate.RealType(rootType); realType != indirect(rootType) {
			anns = anns.Merge(v.catalog.ParamAnnotations(realType, method, i))
		}
		prefix := validate.Path{methodNode, validate.ParameterNode(i)}

		if rule, ok := anns.Get(ruleTagKey); ok && rule.Value != "" {
			if err := v.validate.Var(arg, rule.Value); err != nil {
				v.addVarErrors(st, err, prefix, root, "arg"+strconv.Itoa(i))
			}
		}

		if anns.Has(cascadeTagKey) && arg != nil {
			v.validateBean(st, reflect.ValueOf(arg), prefix, false, 0)
		}
	}

	result := v.buildValidationResult(ctx)
	v.logger.Debug("parameters validated",
		zap.Stringer("type", rootType),
		zap.String("method", method),
		zap.Int("violations", len(result)),
	)
	return result, nil
}

// validateBean 验证一个对象及其嵌套对象
//
// 参数：
//
//	val: 对象的反射值（结构体或结构体指针）
//	prefix: 从根对象到该对象的路径
//	covered: 祖先对象已经执行过 validate.Struct，struct tag 规则无需重复验证
//	depth: 当前递归深度
func (v *Validator) validateBean(st *walkState, val reflect.Value, prefix validate.Path, covered bool, depth int) {
	if depth > maxNestedDepth {
		st.ctx.AddError(NewFieldError("struct", "nest_depth", strconv.Itoa(maxNestedDepth)).
			WithMessage(fmt.Sprintf("nested validation depth exceeds maximum limit %d", maxNestedDepth)).
			WithPath(prefix, st.root, nil))
		return
	}

	structVal := indirectValue(val)
	if !structVal.IsValid() || structVal.Kind() != reflect.Struct || !val.CanInterface() {
		return
	}
	// 统一使用指针，值接收者与指针接收者的接口都能识别
	val = addressable(val)
	obj := val.Interface()
	cache := v.getOrCacheTypeInfo(obj)

	// 步骤1: 字段规则
	ranStruct := false
	if cache.isRuleValidator {
		v.validateFieldsByRules(st, obj, structVal, cache.validationRules, prefix)
	} else if !covered {
		v.validateFieldsByTags(st, obj, prefix)
		ranStruct = true
	}

	// 步骤2: getter 规则
	if len(cache.getterRules) > 0 {
		v.validateGetters(st, val, cache.getterRules, prefix)
	}

	// 步骤3: 嵌套结构
	v.validateNestedStructs(st, structVal, prefix, covered || ranStruct, depth)

	// 步骤4: 跨字段/类型级约束
	if cache.isCustomValidator {
		v.validateStructRules(st, obj, prefix)
	}
}

// validateFieldsByRules 通过 RuleValidator 的场景规则验证字段
func (v *Validator) validateFieldsByRules(st *walkState, obj any, structVal reflect.Value, rules map[ValidateScene]map[string]string, prefix validate.Path) {
	// 匹配当前场景的规则（位运算）
	matchedRules := make(map[string]string)
	for scene, sceneRules := range rules {
		if scene&st.ctx.Scene != 0 {
			for fieldName, rule := range sceneRules {
				matchedRules[fieldName] = rule
			}
		}
	}

	for _, fieldName := range sortedKeys(matchedRules) {
		rule := matchedRules[fieldName]
		if rule == "" {
			continue
		}

		field, structField, ok := fieldByNameOrJSON(structVal, fieldName)
		if !ok || !field.CanInterface() {
			continue
		}

		if err := v.validate.Var(field.Interface(), rule); err != nil {
			v.addVarErrors(st, err, prefix.Append(validate.PropertyNode(structField.Name)), obj, jsonName(structField))
		}
	}
}

// validateFieldsByTags 通过 struct tag 验证字段，go-playground 会自动深入嵌套结构体
func (v *Validator) validateFieldsByTags(st *walkState, obj any, prefix validate.Path) {
	err := v.validate.Struct(obj)
	if err == nil {
		return
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		st.ctx.AddError(NewFieldError("struct", "invalid", "").
			WithMessage(err.Error()).
			WithPath(prefix, st.root, obj))
		return
	}

	for _, e := range validationErrors {
		nodes := validate.ParseNamespace(e.StructNamespace())
		path := prefix.Append(nodes...)
		leaf, _ := resolvePath(obj, nodes)
		st.ctx.AddError(v.withMessage(newViolation(e, path, st.root, leaf)))
	}
}

// validateGetters 验证 getter 方法的返回值
func (v *Validator) validateGetters(st *walkState, val reflect.Value, rules map[string]string, prefix validate.Path) {
	receiver := addressable(val)
	obj := receiver.Interface()

	for _, getter := range sortedKeys(rules) {
		rule := rules[getter]
		m := receiver.MethodByName(getter)
		if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
			v.logger.Warn("skipping getter rule on non-getter method",
				zap.Stringer("type", receiver.Type()),
				zap.String("method", getter),
			)
			continue
		}

		value := m.Call(nil)[0].Interface()
		if err := v.validate.Var(value, rule); err != nil {
			property := validate.PropertyName(getter)
			v.addVarErrors(st, err, prefix.Append(validate.PropertyNode(property)), obj, property)
		}
	}
}

// validateNestedStructs 递归验证嵌套结构体字段以及结构体切片/数组元素
func (v *Validator) validateNestedStructs(st *walkState, structVal reflect.Value, prefix validate.Path, covered bool, depth int) {
	typ := structVal.Type()
	for i := 0; i < structVal.NumField(); i++ {
		field := structVal.Field(i)
		fieldType := typ.Field(i)

		// 跳过不可访问的字段（私有字段）
		if !fieldType.IsExported() || !field.CanInterface() {
			continue
		}

		node := validate.PropertyNode(fieldType.Name)
		elem := indirectValue(field)
		if !elem.IsValid() {
			continue
		}

		switch elem.Kind() {
		case reflect.Struct:
			v.validateBean(st, field, prefix.Append(node), covered, depth+1)

		case reflect.Slice, reflect.Array:
			// 只有带 dive 的字段元素会被外层 validate.Struct 覆盖
			itemCovered := covered && hasDive(fieldType.Tag.Get(ruleTagKey))
			for j := 0; j < elem.Len(); j++ {
				item := elem.Index(j)
				if itemElem := indirectValue(item); itemElem.IsValid() && itemElem.Kind() == reflect.Struct {
					v.validateBean(st, item, prefix.Append(node.WithSubscript(strconv.Itoa(j))), itemCovered, depth+1)
				}
			}
		}
	}
}

// validateStructRules 执行 CustomValidator 的跨字段/类型级约束
func (v *Validator) validateStructRules(st *walkState, obj any, prefix validate.Path) {
	customValidator, ok := obj.(CustomValidator)
	if !ok {
		return
	}

	report := func(namespace, tag, param string) {
		if namespace == "" {
			// 类型级约束：违规的值是对象本身
			fe := NewFieldError("", tag, param).
				WithValue(obj).
				WithPath(prefix.Append(validate.BeanNode()), st.root, obj)
			st.ctx.AddError(v.withMessage(fe))
			return
		}

		nodes := validate.ParseNamespace("_." + namespace)
		leaf, value := resolvePath(obj, nodes)
		last, _ := nodes.Last()
		fe := NewFieldError(last.Name, tag, param).
			WithValue(value).
			WithPath(prefix.Append(nodes...), st.root, leaf)
		st.ctx.AddError(v.withMessage(fe))
	}

	customValidator.CustomValidation(st.ctx.Scene, report)
}

// addVarErrors 把 validate.Var 的错误转换为违规，Var 的错误不含命名空间，路径由调用方给出
func (v *Validator) addVarErrors(st *walkState, err error, path validate.Path, leaf any, name string) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		st.ctx.AddError(NewFieldError(name, "invalid", "").
			WithMessage(err.Error()).
			WithPath(path, st.root, leaf))
		return
	}

	for _, e := range validationErrors {
		fe := newViolation(e, path, st.root, leaf)
		fe.FieldName = name
		fe.JsonName = name
		st.ctx.AddError(v.withMessage(fe))
	}
}

// withMessage 违规所在对象实现了 ErrorMessageProvider 时使用自定义消息
func (v *Validator) withMessage(fe *FieldError) *FieldError {
	provider, ok := fe.leaf.(ErrorMessageProvider)
	if !ok {
		return fe
	}
	if msg := provider.GetErrorMessage(fe.JsonName, fe.Tag, fe.Param); msg != "" {
		fe.Message = msg
	}
	return fe
}

// buildValidationResult 构建验证结果，复制一份错误列表以便归还上下文
func (v *Validator) buildValidationResult(ctx *ValidationContext) []*FieldError {
	if ctx.HasErrors() {
		result := make([]*FieldError, len(ctx.Errors))
		copy(result, ctx.Errors)
		return result
	}

	if len(ctx.Message) != 0 {
		return []*FieldError{
			NewFieldError("", "", "").WithMessage(ctx.Message),
		}
	}

	return nil
}

// RegisterValidation 注册自定义验证标签
func (v *Validator) RegisterValidation(tag string, fn ValidationFunc) error {
	return v.validate.RegisterValidation(tag, adapt(fn))
}

// ClearTypeCache 清除类型缓存
func (v *Validator) ClearTypeCache() {
	v.typeCache = &sync.Map{}
}

// GetUnderlyingValidator 获取底层的 go-playground/validator 实例
func (v *Validator) GetUnderlyingValidator() *validator.Validate {
	return v.validate
}

// TypeCacheStats 缓存的类型数量
func (v *Validator) TypeCacheStats() (typeCacheCount int) {
	v.typeCache.Range(func(_, _ any) bool {
		typeCacheCount++
		return true
	})
	return typeCacheCount
}

// getOrCacheTypeInfo 获取或缓存类型信息
func (v *Validator) getOrCacheTypeInfo(obj any) *typeCache {
	typ := reflect.TypeOf(obj)
	if typ == nil {
		return &typeCache{}
	}

	if cached, ok := v.typeCache.Load(typ); ok {
		return cached.(*typeCache)
	}

	cache := &typeCache{}
	if ruleValidator, ok := obj.(RuleValidator); ok {
		cache.isRuleValidator = true
		cache.validationRules = ruleValidator.RuleValidation()
	}
	_, cache.isCustomValidator = obj.(CustomValidator)

	// getter 规则：方法注解中带 validate 键的方法
	realType := validate.RealType(typ)
	ptr := reflect.PointerTo(realType)
	for i := 0; i < ptr.NumMethod(); i++ {
		name := ptr.Method(i).Name
		if rule, ok := v.catalog.MethodAnnotations(realType, name).Get(ruleTagKey); ok && rule.Value != "" {
			if cache.getterRules == nil {
				cache.getterRules = make(map[string]string)
			}
			cache.getterRules[name] = rule.Value
		}
	}

	actual, _ := v.typeCache.LoadOrStore(typ, cache)
	return actual.(*typeCache)
}

// ============================================================================
// 反射辅助函数
// ============================================================================

// indirectValue 解引用指针与接口，nil 时返回零值
func indirectValue(val reflect.Value) reflect.Value {
	for val.IsValid() && (val.Kind() == reflect.Pointer || val.Kind() == reflect.Interface) {
		if val.IsNil() {
			return reflect.Value{}
		}
		val = val.Elem()
	}
	return val
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// addressable 返回可以调用指针接收者方法的值，非指针时复制一份
func addressable(val reflect.Value) reflect.Value {
	for val.Kind() == reflect.Interface && !val.IsNil() {
		val = val.Elem()
	}
	if val.Kind() == reflect.Pointer {
		return val
	}
	ptr := reflect.New(val.Type())
	ptr.Elem().Set(val)
	return ptr
}

// resolvePath 沿属性路径从 bean 出发，返回最后一个节点所在的对象和该节点的值
// 路径无法走通时对应返回 nil
func resolvePath(bean any, nodes validate.Path) (leaf any, value any) {
	cur := reflect.ValueOf(bean)
	leaf = bean

	for i, n := range nodes {
		if i > 0 {
			if !cur.IsValid() || !cur.CanInterface() {
				return nil, nil
			}
			leaf = cur.Interface()
		}

		structVal := indirectValue(cur)
		if !structVal.IsValid() || structVal.Kind() != reflect.Struct {
			return nil, nil
		}
		cur = structVal.FieldByName(n.Name)
		if !cur.IsValid() {
			return nil, nil
		}
		if n.HasSubscript {
			cur = subscript(cur, n.Subscript)
		}
	}

	if cur.IsValid() && cur.CanInterface() {
		value = cur.Interface()
	}
	return leaf, value
}

// subscript 按下标取切片/数组元素，或按键的字符串形式取 map 值
func subscript(val reflect.Value, key string) reflect.Value {
	val = indirectValue(val)
	if !val.IsValid() {
		return reflect.Value{}
	}

	switch val.Kind() {
	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= val.Len() {
			return reflect.Value{}
		}
		return val.Index(idx)
	case reflect.Map:
		iter := val.MapRange()
		for iter.Next() {
			if fmt.Sprint(iter.Key().Interface()) == key {
				return iter.Value()
			}
		}
	}
	return reflect.Value{}
}

// fieldByNameOrJSON 通过字段名或 json tag 查找字段
func fieldByNameOrJSON(structVal reflect.Value, name string) (reflect.Value, reflect.StructField, bool) {
	typ := structVal.Type()
	if sf, ok := typ.FieldByName(name); ok {
		return structVal.FieldByIndex(sf.Index), sf, true
	}
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if strings.SplitN(sf.Tag.Get("json"), ",", 2)[0] == name {
			return structVal.Field(i), sf, true
		}
	}
	return reflect.Value{}, reflect.StructField{}, false
}

// sortedKeys 按字典序返回键，保证违规顺序稳定
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// hasDive 规则中是否含有 dive
func hasDive(rule string) bool {
	for _, r := range strings.Split(rule, ",") {
		if strings.TrimSpace(r) == "dive" {
			return true
		}
	}
	return false
}

// jsonName 字段的 json 名，与 RegisterTagNameFunc 保持一致
func jsonName(sf reflect.StructField) string {
	name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return sf.Name
	}
	return name
}
