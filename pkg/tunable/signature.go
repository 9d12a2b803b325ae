package tunable

import "reflect"

// typeSignature derives a stable, human-readable identity for a type,
// stripping pointer indirection so *T and T agree.
func typeSignature(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}

// paramsTypeSignature resolves the identity of the params type argument of a
// TunableOp instantiation.
func paramsTypeSignature[P any]() string {
	return typeSignature(reflect.TypeOf((*P)(nil)).Elem())
}
