// File: internal/component/errors.go
// Brief: Declaration error taxonomy.

package component

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateComponent   = errors.New("duplicate component id")
	ErrUndeclaredDependency = errors.New("dependency on undeclared component")
	ErrUnknownComponent     = errors.New("unknown component")
	ErrInvalidStage         = errors.New("invalid stage")
	ErrInvalidDeclaration   = errors.New("invalid declaration")
)

// DeclarationError reports a malformed declaration together with the
// component ids involved. Kind is one of the Err* sentinels above.
type DeclarationError struct {
	Kind       error
	Components []string
	Msg        string
}

func (e *DeclarationError) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("declaration error")
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Components) > 0 {
		fmt.Fprintf(&b, " (components: %s)", strings.Join(e.Components, ", "))
	}
	return b.String()
}

func (e *DeclarationError) Unwrap() error { return e.Kind }

func declErr(kind error, components []string, format string, args ...any) error {
	return &DeclarationError{Kind: kind, Components: components, Msg: fmt.Sprintf(format, args...)}
}
