// Package funcname splits Go runtime function symbols into their parts.
//
// The runtime names functions as
//
//	example.com/shop/steps.iHaveGodogs
//	example.com/shop/steps.(*Steps).AddItem-fm
//	example.com/shop/steps.Steps.AddItem-fm
//	example.com/shop/steps.InitializeScenario.func1
//
// with dots in the last import path element escaped as %2e and type
// arguments elided as [...].
package funcname

import (
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

// Symbol is a parsed runtime function name.
type Symbol struct {
	// Package is the import path of the declaring package.
	Package string
	// Receiver is the receiver type name, empty for functions.
	Receiver string
	// Pointer reports a pointer receiver.
	Pointer bool
	// Name is the method or function name. For closures it is the
	// enclosing function.
	Name string
	// Local is the compiler generated suffix of a closure (func1, func1.2).
	Local string
}

var anonymous = regexp.MustCompile(`^(func|gowrap|deferwrap)?\d+$`)

// Parse splits a runtime function name. Names it cannot split come back
// with only Name set.
func Parse(name string) Symbol {
	name = strings.TrimSuffix(name, "-fm")
	name = strings.ReplaceAll(name, "[...]", "")

	slash := strings.LastIndex(name, "/")
	dot := strings.Index(name[slash+1:], ".")
	if dot < 0 {
		return Symbol{Name: name}
	}

	s := Symbol{Package: strings.ReplaceAll(name[:slash+1+dot], "%2e", ".")}
	rest := name[slash+1+dot+1:]

	if strings.HasPrefix(rest, "(") {
		end := strings.Index(rest, ")")
		if end < 0 {
			s.Name = rest
			return s
		}
		recv := rest[1:end]
		if strings.HasPrefix(recv, "*") {
			s.Pointer = true
			recv = recv[1:]
		}
		s.Receiver = recv
		rest = strings.TrimPrefix(rest[end+1:], ".")
	}

	parts := strings.Split(rest, ".")
	if s.Receiver == "" && len(parts) >= 2 && !anonymous.MatchString(parts[1]) {
		s.Receiver = parts[0]
		parts = parts[1:]
	}

	s.Name = parts[0]
	if len(parts) > 1 {
		s.Local = strings.Join(parts[1:], ".")
	}
	return s
}

// Anonymous reports whether a name segment is compiler generated, as the
// func1 in pkg.Outer.func1.
func Anonymous(segment string) bool {
	return anonymous.MatchString(segment)
}

// Of parses the runtime name of fn. It returns the zero Symbol when fn is
// not a function.
func Of(fn interface{}) Symbol {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return Symbol{}
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return Symbol{}
	}
	return Parse(f.Name())
}

// Closure reports whether the symbol is an anonymous function.
func (s Symbol) Closure() bool {
	return s.Local != ""
}

// Qualified returns pkg.Recv.Name, pkg.Name or, for closures,
// pkg.Name.func1.
func (s Symbol) Qualified() string {
	var b strings.Builder
	if s.Package != "" {
		b.WriteString(s.Package)
		b.WriteByte('.')
	}
	if s.Receiver != "" {
		b.WriteString(s.Receiver)
		b.WriteByte('.')
	}
	b.WriteString(s.Name)
	if s.Local != "" {
		b.WriteByte('.')
		b.WriteString(s.Local)
	}
	return b.String()
}

// Handle returns the name the way the go toolchain spells it:
// pkg.(*Recv).Name for pointer receivers, pkg.Recv.Name and pkg.Name
// otherwise.
func Handle(pkg, recv string, pointer bool, name string) string {
	switch {
	case recv == "":
		return pkg + "." + name
	case pointer:
		return pkg + ".(*" + recv + ")." + name
	default:
		return pkg + "." + recv + "." + name
	}
}

// Params describes the parameter types of fn, e.g. "*godog.DocString".
// Variadic parameters are spelled ...T.
func Params(fn interface{}) []string {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return nil
	}
	params := make([]string, 0, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)
		if t.IsVariadic() && i == t.NumIn()-1 {
			params = append(params, "..."+in.Elem().String())
			continue
		}
		params = append(params, in.String())
	}
	return params
}
