package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultTypeCacheSize 类型信息缓存默认容量
const DefaultTypeCacheSize = 1024

// ErrIntrospection getter 与 setter 类型不一致，setter 被忽略
var ErrIntrospection = errors.New("property introspection failed")

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// accessorPair 一个属性的 getter/setter 方法名
// err 非空表示存在类型不匹配的 setter，此时 setter 为空
type accessorPair struct {
	getter string
	setter string
	err    error
}

// typeInfo 类型的结构信息（只缓存与注册表无关的部分）
type typeInfo struct {
	typ reflect.Type
	// fields 直接声明的字段 tag 注解，key 为字段名
	fields map[string]Annotations
	// properties 访问器对，key 为导出形式的属性名
	properties map[string]accessorPair
}

// introspector 类型信息构建与缓存
// 性能优化：反射遍历方法集代价较高，按类型缓存，LRU 淘汰避免动态类型过多时无限增长
type introspector struct {
	cache *lru.Cache
}

func newIntrospector(size int) (*introspector, error) {
	if size <= 0 {
		size = DefaultTypeCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create type cache: %w", err)
	}
	return &introspector{cache: cache}, nil
}

// inspect 获取或构建类型信息，t 必须已经解包为真实的结构体类型
func (in *introspector) inspect(t reflect.Type) *typeInfo {
	if cached, ok := in.cache.Get(t); ok {
		return cached.(*typeInfo)
	}

	info := buildTypeInfo(t)
	in.cache.Add(t, info)
	return info
}

// purge 清空缓存
func (in *introspector) purge() {
	in.cache.Purge()
}

// len 缓存中的类型数量
func (in *introspector) len() int {
	return in.cache.Len()
}

func buildTypeInfo(t reflect.Type) *typeInfo {
	info := &typeInfo{
		typ:        t,
		fields:     make(map[string]Annotations),
		properties: make(map[string]accessorPair),
	}

	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Name == "_" {
				continue
			}
			info.fields[f.Name] = ParseTag(f.Tag)
		}
	}

	collectAccessors(t, info)
	return info
}

// collectAccessors 按 Go 访问器约定收集属性：
//   - getter：X()、GetX()，bool 属性还可以是 IsX()；无参数、单返回值
//   - setter：SetX(v)；单参数，无返回值或只返回 error
//
// 同一属性有多个 getter 时优先级为 X > GetX > IsX
func collectAccessors(t reflect.Type, info *typeInfo) {
	type candidate struct {
		name     string
		rank     int
		valueTyp reflect.Type
	}
	getters := make(map[string]candidate)
	setters := make(map[string]candidate)

	// 指针的方法集包含值接收者与指针接收者的全部方法
	ptr := reflect.PointerTo(t)
	for i := 0; i < ptr.NumMethod(); i++ {
		m := ptr.Method(i)
		mt := m.Type // 第 0 个入参是接收者

		switch {
		case mt.NumIn() == 1 && mt.NumOut() == 1:
			prop, rank := getterProperty(m.Name, mt.Out(0))
			if prop == "" {
				continue
			}
			if prev, ok := getters[prop]; !ok || rank < prev.rank {
				getters[prop] = candidate{name: m.Name, rank: rank, valueTyp: mt.Out(0)}
			}

		case mt.NumIn() == 2 && (mt.NumOut() == 0 || (mt.NumOut() == 1 && mt.Out(0) == errorType)):
			if prop, ok := strings.CutPrefix(m.Name, "Set"); ok && isExportedName(prop) {
				setters[prop] = candidate{name: m.Name, valueTyp: mt.In(1)}
			}
		}
	}

	for prop, g := range getters {
		pair := accessorPair{getter: g.name}
		if s, ok := setters[prop]; ok {
			if s.valueTyp == g.valueTyp {
				pair.setter = s.name
			} else {
				// 类型不一致的 setter 不算写方法，getter 照常保留
				pair.err = fmt.Errorf("%w: getter %s returns %s but setter %s accepts %s",
					ErrIntrospection, g.name, g.valueTyp, s.name, s.valueTyp)
			}
		}
		info.properties[prop] = pair
	}
	for prop, s := range setters {
		if _, ok := info.properties[prop]; !ok {
			info.properties[prop] = accessorPair{setter: s.name}
		}
	}
}

// getterProperty 由方法名推导属性名及优先级，不是 getter 时返回空
func getterProperty(method string, out reflect.Type) (string, int) {
	if prop, ok := strings.CutPrefix(method, "Get"); ok && isExportedName(prop) {
		return prop, 1
	}
	if prop, ok := strings.CutPrefix(method, "Is"); ok && isExportedName(prop) && out.Kind() == reflect.Bool {
		return prop, 2
	}
	if strings.HasPrefix(method, "Set") && isExportedName(method[3:]) {
		return "", 0
	}
	return method, 0
}

func isExportedName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

// exportedName 属性名首字母大写，路径中的 "colorInput" 对应访问器 ColorInput()/SetColorInput()
func exportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// field 直接声明的字段注解；字段不存在时 ok 为 false
func (ti *typeInfo) field(name string) (Annotations, bool) {
	anns, ok := ti.fields[name]
	return anns, ok
}

// accessors 属性的访问器对
func (ti *typeInfo) accessors(property string) (accessorPair, bool) {
	pair, ok := ti.properties[exportedName(property)]
	return pair, ok
}

// PropertyName 由 getter 方法名推导属性名（首字母小写）
// "ColorInput" => "colorInput"，"GetName" => "name"，"IsEnabled" => "enabled"，"URL" => "URL"
func PropertyName(getter string) string {
	prop := getter
	for _, prefix := range []string{"Get", "Is"} {
		if rest, ok := strings.CutPrefix(getter, prefix); ok && isExportedName(rest) {
			prop = rest
			break
		}
	}
	return decapitalize(prop)
}

// decapitalize 首字母小写；前两个字母都是大写时保持原样（缩写词）
func decapitalize(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	if next, _ := utf8.DecodeRuneInString(name[size:]); next != utf8.RuneError && unicode.IsUpper(r) && unicode.IsUpper(next) {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}
