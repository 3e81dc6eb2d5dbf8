package validate

import (
	"reflect"
	"strconv"
	"strings"
)

// Annotation 程序元素上的一个注解
// Go 没有注解语法，这里用 struct tag 的一个键值对来表示，如 `form:"color"` => {Key: "form", Value: "color"}
type Annotation struct {
	// Key 注解类型（tag 键）
	Key string `json:"key"`
	// Value 注解原始值（tag 值，未拆分）
	Value string `json:"value"`
}

// Name 返回注解值中逗号之前的部分
// 如 `form:"color,omitempty"` 的 Name 为 "color"
func (a Annotation) Name() string {
	name, _, _ := strings.Cut(a.Value, ",")
	return name
}

// String 以 tag 语法输出注解
func (a Annotation) String() string {
	return a.Key + ":" + strconv.Quote(a.Value)
}

// Annotations 去重且保持首次出现顺序的注解集合
type Annotations []Annotation

// Has 是否存在指定键的注解
func (as Annotations) Has(key string) bool {
	_, ok := as.Get(key)
	return ok
}

// Get 返回第一个指定键的注解
func (as Annotations) Get(key string) (Annotation, bool) {
	for _, a := range as {
		if a.Key == key {
			return a, true
		}
	}
	return Annotation{}, false
}

// Merge 合并多个注解集合，重复的键值对只保留一次
// 相同键但不同值的注解视为不同注解，都会保留（对应 getter 与 setter 上各有一个同类注解的情况）
func (as Annotations) Merge(others ...Annotations) Annotations {
	total := len(as)
	for _, o := range others {
		total += len(o)
	}
	if total == 0 {
		return Annotations{}
	}

	merged := make(Annotations, 0, total)
	seen := make(map[Annotation]struct{}, total)
	add := func(set Annotations) {
		for _, a := range set {
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			merged = append(merged, a)
		}
	}

	add(as)
	for _, o := range others {
		add(o)
	}
	return merged
}

// Strings 以 tag 语法输出所有注解，主要用于日志
func (as Annotations) Strings() []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.String()
	}
	return out
}

// ParseTag 解析 struct tag 中的所有键值对
// 语法与 reflect.StructTag 约定一致：`key:"value" key2:"value2"`，格式错误的剩余部分被忽略
func ParseTag(tag reflect.StructTag) Annotations {
	annotations := make(Annotations, 0, 4)
	s := string(tag)

	for s != "" {
		// 跳过前导空白
		i := 0
		for i < len(s) && s[i] == ' ' {
			i++
		}
		s = s[i:]
		if s == "" {
			break
		}

		// 键：直到冒号，不允许控制字符、空格、引号
		i = 0
		for i < len(s) && s[i] > ' ' && s[i] != ':' && s[i] != '"' && s[i] != 0x7f {
			i++
		}
		if i == 0 || i+1 >= len(s) || s[i] != ':' || s[i+1] != '"' {
			break
		}
		key := s[:i]
		s = s[i+1:]

		// 值：带引号的字符串，支持转义
		i = 1
		for i < len(s) && s[i] != '"' {
			if s[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(s) {
			break
		}
		quoted := s[:i+1]
		s = s[i+1:]

		value, err := strconv.Unquote(quoted)
		if err != nil {
			break
		}
		annotations = append(annotations, Annotation{Key: key, Value: value})
	}

	return annotations.Merge()
}
