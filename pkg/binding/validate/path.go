package validate

import (
	"reflect"
	"strconv"
	"strings"
)

// NodeKind 属性路径节点的类型
type NodeKind int

const (
	// NodeOther 无法归类的节点（返回值、容器元素等）
	NodeOther NodeKind = iota
	// NodeBean 对象本身（类型级约束）
	NodeBean
	// NodeProperty 对象的属性（字段或访问器）
	NodeProperty
	// NodeMethod 方法，携带方法名与参数类型
	NodeMethod
	// NodeParameter 方法参数，携带参数下标
	NodeParameter
)

// String 实现 fmt.Stringer
func (k NodeKind) String() string {
	switch k {
	case NodeBean:
		return "BEAN"
	case NodeProperty:
		return "PROPERTY"
	case NodeMethod:
		return "METHOD"
	case NodeParameter:
		return "PARAMETER"
	default:
		return "OTHER"
	}
}

// Node 属性路径上的一个节点
// 各字段是否有意义取决于 Kind：
//   - NodeProperty：Name 为属性名，Subscript 为进入下一节点前的下标/键（切片、map）
//   - NodeMethod：Name 为方法名，ParameterTypes 为声明的参数类型（不含接收者）
//   - NodeParameter：Name 为参数名（如 arg0），Index 为从 0 开始的参数下标
//   - NodeBean：无附加信息
type Node struct {
	Kind           NodeKind
	Name           string
	Index          int
	ParameterTypes []reflect.Type
	Subscript      string
	HasSubscript   bool
}

// PropertyNode 创建属性节点
func PropertyNode(name string) Node {
	return Node{Kind: NodeProperty, Name: name}
}

// BeanNode 创建对象节点
func BeanNode() Node {
	return Node{Kind: NodeBean}
}

// MethodNode 创建方法节点
func MethodNode(name string, parameterTypes ...reflect.Type) Node {
	return Node{Kind: NodeMethod, Name: name, ParameterTypes: parameterTypes}
}

// ParameterNode 创建参数节点
func ParameterNode(index int) Node {
	return Node{Kind: NodeParameter, Name: "arg" + strconv.Itoa(index), Index: index}
}

// WithSubscript 返回带下标的节点副本
func (n Node) WithSubscript(subscript string) Node {
	n.Subscript = subscript
	n.HasSubscript = true
	return n
}

// Path 从根对象到违规元素的有序节点序列
type Path []Node

// Last 返回最后一个节点
func (p Path) Last() (Node, bool) {
	if len(p) == 0 {
		return Node{}, false
	}
	return p[len(p)-1], true
}

// Append 返回追加节点后的新路径，不修改原路径
func (p Path) Append(nodes ...Node) Path {
	out := make(Path, 0, len(p)+len(nodes))
	out = append(out, p...)
	return append(out, nodes...)
}

// String 以点号连接各节点，如 "ProcessColor.arg0.Color"、"Items[0].Name"
// Bean 节点不输出名字
func (p Path) String() string {
	var b strings.Builder
	for _, n := range p {
		if n.Kind == NodeBean {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(n.Name)
		if n.HasSubscript {
			b.WriteByte('[')
			b.WriteString(n.Subscript)
			b.WriteByte(']')
		}
	}
	return b.String()
}

// ParseNamespace 把 go-playground/validator 的 StructNamespace 转换为属性路径
// 第一段是根类型名，不进入路径；"Items[0]" 会拆成属性 Items 与下标 0
//
// 示例：
//
//	"Order.Items[0].Name" => [Property Items[0], Property Name]
func ParseNamespace(namespace string) Path {
	if namespace == "" {
		return Path{}
	}

	segments := splitNamespace(namespace)
	if len(segments) <= 1 {
		return Path{}
	}

	path := make(Path, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		name, subscript, ok := cutSubscript(seg)
		node := PropertyNode(name)
		if ok {
			node = node.WithSubscript(subscript)
		}
		path = append(path, node)
	}
	return path
}

// splitNamespace 按点号切分，忽略方括号内的点号（map 键可能包含点号）
func splitNamespace(ns string) []string {
	segments := make([]string, 0, 4)
	depth, start := 0, 0
	for i := 0; i < len(ns); i++ {
		switch ns[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '.':
			if depth == 0 {
				segments = append(segments, ns[start:i])
				start = i + 1
			}
		}
	}
	return append(segments, ns[start:])
}

// cutSubscript "Items[0]" => ("Items", "0", true)
// 多维下标 "Grid[1][2]" 只保留第一个，其余被忽略
func cutSubscript(seg string) (name, subscript string, ok bool) {
	open := strings.IndexByte(seg, '[')
	if open < 0 || !strings.HasSuffix(seg, "]") {
		return seg, "", false
	}
	closing := strings.IndexByte(seg[open:], ']') + open
	return seg[:open], seg[open+1 : closing], true
}
